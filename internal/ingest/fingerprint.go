package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/401-Nick/lra-alerts/internal/models"
)

// Fingerprint computes the content hash used as the sole equality test
// between an incoming listing and stored state. It covers every canonical
// field and none of the derived bookkeeping fields, serialized in a fixed
// field order so that identical content always hashes identically.
//
// SHA-256 is wider than strictly needed, but a collision here would be a
// silently missed update (the diff engine never compares fields pairwise),
// so 256 bits buys that failure mode down to negligible.
func Fingerprint(l *models.Listing) string {
	var b strings.Builder

	writeField(&b, "id", l.ID)
	writeOptStr(&b, "parcelId", l.ParcelID)
	writeOptStr(&b, "address", l.Address)
	writeOptStr(&b, "neighborhood", l.Neighborhood)
	writeOptInt(&b, "ward", l.Ward)
	writeOptStr(&b, "zip", l.Zip)
	writeOptFloat(&b, "sqft", l.SqFt)
	writeOptStr(&b, "usage", l.Usage)
	writeOptStr(&b, "status", l.Status)
	writeOptStr(&b, "propertyType", l.PropertyType)
	writeOptFloat(&b, "lat", l.Lat)
	writeOptFloat(&b, "lng", l.Lng)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// writeField appends one key=value line. The "\x00" prefix on the value
// keeps an absent field distinct from a present-but-empty one.
func writeField(b *strings.Builder, key, value string) {
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteByte(0)
	b.WriteString(value)
	b.WriteByte('\n')
}

func writeOptStr(b *strings.Builder, key string, v *string) {
	if v == nil {
		b.WriteString(key)
		b.WriteByte('\n')
		return
	}
	writeField(b, key, *v)
}

func writeOptInt(b *strings.Builder, key string, v *int) {
	if v == nil {
		b.WriteString(key)
		b.WriteByte('\n')
		return
	}
	writeField(b, key, strconv.Itoa(*v))
}

func writeOptFloat(b *strings.Builder, key string, v *float64) {
	if v == nil {
		b.WriteString(key)
		b.WriteByte('\n')
		return
	}
	writeField(b, key, strconv.FormatFloat(*v, 'f', -1, 64))
}
