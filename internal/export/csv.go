// Package export produces the per-run CSV artifact of the full inventory
// and publishes it to an object store with a time-limited retrieval URL.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/401-Nick/lra-alerts/internal/models"
)

// csvHeader is the fixed column set. The trailing raw column carries the
// untouched source attributes as JSON so consumers can reach fields the
// canonical schema does not model.
var csvHeader = []string{
	"id", "parcel_id", "address", "neighborhood", "ward", "zip", "sqft",
	"usage", "status", "property_type", "lat", "lng", "geohash",
	"removed", "removed_at", "updated_at", "raw",
}

// BuildCSV renders one row per listing, removed ones included.
func BuildCSV(listings []models.Listing) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}

	for _, l := range listings {
		row, err := listingRow(l)
		if err != nil {
			return nil, err
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing csv row for %s: %w", l.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

func listingRow(l models.Listing) ([]string, error) {
	raw := ""
	if len(l.Raw) > 0 {
		encoded, err := json.Marshal(l.Raw)
		if err != nil {
			return nil, fmt.Errorf("encoding raw attributes for %s: %w", l.ID, err)
		}
		raw = string(encoded)
	}

	removedAt := ""
	if l.RemovedAt != nil {
		removedAt = l.RemovedAt.UTC().Format(time.RFC3339)
	}

	return []string{
		l.ID,
		strOrEmpty(l.ParcelID),
		strOrEmpty(l.Address),
		strOrEmpty(l.Neighborhood),
		intOrEmpty(l.Ward),
		strOrEmpty(l.Zip),
		floatOrEmpty(l.SqFt),
		strOrEmpty(l.Usage),
		strOrEmpty(l.Status),
		strOrEmpty(l.PropertyType),
		floatOrEmpty(l.Lat),
		floatOrEmpty(l.Lng),
		strOrEmpty(l.Geohash),
		strconv.FormatBool(l.Removed),
		removedAt,
		l.UpdatedAt.UTC().Format(time.RFC3339),
		raw,
	}, nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intOrEmpty(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func floatOrEmpty(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
