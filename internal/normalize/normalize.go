// Package normalize maps heterogeneous source attribute schemas into the
// canonical listing shape. It is pure: no I/O, and malformed input never
// aborts a record. Fields that cannot be interpreted degrade to nil.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"

	"github.com/401-Nick/lra-alerts/internal/models"
)

// geohashPrecision gives roughly street-level cells, which is as fine as
// the parcel centroids warrant.
const geohashPrecision = 9

// Record converts one raw source record into a canonical listing.
// Derived bookkeeping fields (fingerprint, removed flag, timestamps) are
// left for the ingest pipeline to fill in.
func Record(raw models.RawRecord) models.Listing {
	attrs := raw.Attributes
	if attrs == nil {
		attrs = map[string]interface{}{}
	}

	l := models.Listing{
		ParcelID:     asString(firstPresent(attrs, "parcelId")),
		Address:      asString(firstPresent(attrs, "address")),
		Neighborhood: asString(firstPresent(attrs, "neighborhood")),
		Ward:         asInt(firstPresent(attrs, "ward")),
		Zip:          NormalizeZip(firstPresent(attrs, "zip")),
		SqFt:         asFloat(firstPresent(attrs, "sqft")),
		Usage:        asString(firstPresent(attrs, "usage")),
		Status:       asString(firstPresent(attrs, "status")),
		PropertyType: asString(firstPresent(attrs, "propertyType")),
		Raw:          attrs,
	}

	l.ID = deriveID(l.ParcelID, firstPresent(attrs, "objectId"))

	if raw.Geometry != nil {
		lat, lng := raw.Geometry.Y, raw.Geometry.X
		l.Lat = &lat
		l.Lng = &lng
		gh := geohash.EncodeWithPrecision(lat, lng, geohashPrecision)
		l.Geohash = &gh
	}

	l.DeriveAddressFields()

	return l
}

// deriveID picks the stable listing identity: parcel identifier first,
// then the source object identifier, then a generated token. The token is
// random rather than sequential on purpose: its presence means the source
// record could not be identified, and that fact should not be guessable
// or collide across records in a run.
func deriveID(parcelID *string, objectID interface{}) string {
	if parcelID != nil {
		return *parcelID
	}
	if s := asString(objectID); s != nil {
		return *s
	}
	return "unidentified-" + uuid.NewString()
}

// NormalizeZip reduces any source ZIP representation to exactly five
// digits: non-digits stripped, short values left-padded with zeros, long
// values truncated to the leading five. Anything that strips to empty is
// nil.
func NormalizeZip(v interface{}) *string {
	s := stringify(v)
	if s == "" {
		return nil
	}

	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	z := digits.String()
	if z == "" {
		return nil
	}
	if len(z) > 5 {
		z = z[:5]
	}
	for len(z) < 5 {
		z = "0" + z
	}
	return &z
}

// asString returns the trimmed string form of a scalar, or nil for
// absent/empty values.
func asString(v interface{}) *string {
	s := stringify(v)
	if s == "" {
		return nil
	}
	return &s
}

// asFloat coerces a scalar to float64. Numeric source values are used
// as-is, strings are parsed, and anything unparsable is nil; bad numeric
// input never rejects the record.
func asFloat(v interface{}) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil
		}
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return &f
		}
		return nil
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return &f
		}
		return nil
	default:
		return nil
	}
}

// asInt is asFloat truncated to an integer, for fields like ward numbers.
func asInt(v interface{}) *int {
	f := asFloat(v)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

// stringify renders a scalar attribute as a trimmed string. Floats that
// carry integral values (common for identifiers in JSON payloads) drop
// their fractional part so "12345.0" and 12345 derive the same identity.
func stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		if s == math.Trunc(s) && !math.IsInf(s, 0) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return s.String()
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", s))
	}
}
