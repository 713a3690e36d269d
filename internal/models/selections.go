package models

import "time"

// Selections is the snapshot of distinct filterable values across all
// non-removed listings, recomputed wholesale after every ingest. The
// search frontend builds its filter menus from this document; no history
// is kept.
type Selections struct {
	Zips          []string `json:"zips"`
	Neighborhoods []string `json:"neighborhoods"`
	Wards         []string `json:"wards"`
	Usages        []string `json:"usages"`
	Statuses      []string `json:"statuses"`
	PropertyTypes []string `json:"propertyTypes"`
}

// Snapshot is the exports/current document: the selections snapshot
// plus the latest run summary and the location of the CSV artifact.
type Snapshot struct {
	Selections  Selections `json:"selections"`
	Summary     RunSummary `json:"summary"`
	CSVURL      string     `json:"csvUrl,omitempty"`
	GeneratedAt time.Time  `json:"generatedAt"`
}
