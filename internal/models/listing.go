package models

import (
	"strings"
	"time"
	"unicode"
)

// RawRecord is one feature as returned by the source feature service:
// an untyped attribute map plus an optional point geometry. The attribute
// schema varies by deployment and any key may be absent.
type RawRecord struct {
	Attributes map[string]interface{} `json:"attributes"`
	Geometry   *PointGeometry         `json:"geometry,omitempty"`
}

// PointGeometry is the x/y point shape the feature service attaches to a
// record. X is longitude, Y is latitude.
type PointGeometry struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Listing is the canonical property record for one LRA parcel.
// All source-derived fields are pointers so that "absent" survives
// normalization and storage without being confused with zero values.
type Listing struct {
	// ID is the stable identity used for diffing: the parcel identifier
	// when the source has one, else the source object identifier, else a
	// generated token. It never changes across ingests for the same parcel.
	ID string `json:"id"`

	ParcelID     *string  `json:"parcelId,omitempty"`
	Address      *string  `json:"address,omitempty"`
	Neighborhood *string  `json:"neighborhood,omitempty"`
	Ward         *int     `json:"ward,omitempty"`
	Zip          *string  `json:"zip,omitempty"`
	SqFt         *float64 `json:"sqft,omitempty"`
	Usage        *string  `json:"usage,omitempty"`
	Status       *string  `json:"status,omitempty"`
	PropertyType *string  `json:"propertyType,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lng          *float64 `json:"lng,omitempty"`

	// Raw keeps the untouched source attributes for CSV passthrough.
	// It never participates in fingerprinting.
	Raw map[string]interface{} `json:"raw,omitempty"`

	// Derived at write time.
	AddressLower    string     `json:"addressLower,omitempty"`
	AddressKeywords []string   `json:"addressKeywords,omitempty"`
	Geohash         *string    `json:"geohash,omitempty"`
	Removed         bool       `json:"removed"`
	RemovedAt       *time.Time `json:"removedAt,omitempty"`
	Fingerprint     string     `json:"fingerprint,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// DeriveAddressFields populates the lowercased address and the keyword
// token set used for prefix/contains search. Safe to call on a listing
// without an address.
func (l *Listing) DeriveAddressFields() {
	if l.Address == nil {
		l.AddressLower = ""
		l.AddressKeywords = nil
		return
	}
	l.AddressLower = strings.ToLower(strings.TrimSpace(*l.Address))
	l.AddressKeywords = tokenizeAddress(l.AddressLower)
}

// tokenizeAddress splits a lowercased address into unique alphanumeric
// tokens, preserving first-seen order.
func tokenizeAddress(addr string) []string {
	fields := strings.FieldsFunc(addr, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
