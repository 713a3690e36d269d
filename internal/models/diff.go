package models

import "time"

// DiffState is the minimal per-listing projection the diff engine needs
// from stored state: enough to decide added/changed/removed/unchanged
// without loading full documents.
type DiffState struct {
	Fingerprint string
	Removed     bool
}

// Diff is the three-way partition of one ingest run against stored state,
// plus the count of records that did not change. It is ephemeral: computed
// per run, handed to the writer and the alert dispatcher, never persisted.
type Diff struct {
	Added     []Listing
	Changed   []Listing
	Removed   []Listing
	Unchanged int
}

// Empty reports whether the diff carries no writes at all.
func (d *Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Removed) == 0
}

// WriteOpKind distinguishes the two durable write shapes a diff produces.
type WriteOpKind int

const (
	// OpUpsert overwrites the full canonical document for an added or
	// changed listing. Overwrite, not merge: stale fields from a previous
	// source schema must not survive.
	OpUpsert WriteOpKind = iota
	// OpMarkRemoved flags a listing as removed with a timestamp. Rows are
	// never deleted, so audit history and "removed" alerts keep working.
	OpMarkRemoved
)

// WriteOp is one planned durable write. For OpMarkRemoved only ID and
// RemovedAt are meaningful.
type WriteOp struct {
	Kind      WriteOpKind
	Listing   Listing
	RemovedAt time.Time
}

// RunSummary is what the ingest trigger reports back to its caller.
type RunSummary struct {
	Added     int    `json:"added"`
	Changed   int    `json:"changed"`
	Removed   int    `json:"removed"`
	Unchanged int    `json:"unchanged"`
	Total     int    `json:"total"`
	CSV       string `json:"csv,omitempty"`
}
