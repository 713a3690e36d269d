package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/401-Nick/lra-alerts/internal/database"
	"github.com/401-Nick/lra-alerts/internal/models"
)

// ListingRepository is the data access layer for the listings collection.
// Listings are keyed by canonical ID and never deleted; removal is a flag.
type ListingRepository interface {
	// DiffStates returns the minimal id -> (fingerprint, removed)
	// projection for every stored listing. Kept narrow on purpose: the
	// diff engine compares fingerprints only and must not pay for full
	// documents.
	DiffStates(ctx context.Context) (map[string]models.DiffState, error)

	// ListingsByID loads full listings for the given IDs.
	ListingsByID(ctx context.Context, ids []string) ([]models.Listing, error)

	// All returns every stored listing, removed ones included, ordered by
	// ID. Used by the CSV export.
	All(ctx context.Context) ([]models.Listing, error)

	// DistinctActive returns the distinct non-null values of one
	// filterable column across non-removed listings.
	DistinctActive(ctx context.Context, column string) ([]string, error)

	// WriteBatch commits one bounded operation slice atomically. Callers
	// (the batched writer) guarantee the slice is under the batch ceiling.
	WriteBatch(ctx context.Context, ops []models.WriteOp) error
}

// listingRepository is the pgx implementation of ListingRepository.
type listingRepository struct {
	db *database.Database
}

// NewListingRepository creates a new instance of ListingRepository.
func NewListingRepository(db *database.Database) ListingRepository {
	return &listingRepository{db: db}
}

// filterableColumns whitelists the columns DistinctActive may touch, since
// column names cannot be bound as query parameters.
var filterableColumns = map[string]bool{
	"zip":           true,
	"neighborhood":  true,
	"ward":          true,
	"usage":         true,
	"status":        true,
	"property_type": true,
}

const listingColumns = `
	id, parcel_id, address, neighborhood, ward, zip, sqft, usage, status,
	property_type, lat, lng, raw, address_lower, address_keywords, geohash,
	removed, removed_at, fingerprint, updated_at
`

func (r *listingRepository) DiffStates(ctx context.Context) (map[string]models.DiffState, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT id, fingerprint, removed FROM listings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query diff states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]models.DiffState)
	for rows.Next() {
		var (
			id    string
			state models.DiffState
		)
		if err := rows.Scan(&id, &state.Fingerprint, &state.Removed); err != nil {
			return nil, fmt.Errorf("failed to scan diff state row: %w", err)
		}
		states[id] = state
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating diff state rows: %w", err)
	}

	return states, nil
}

func (r *listingRepository) ListingsByID(ctx context.Context, ids []string) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ANY($1) ORDER BY id`

	rows, err := r.db.Pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings by id: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

func (r *listingRepository) All(ctx context.Context) ([]models.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings ORDER BY id`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query all listings: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

func (r *listingRepository) DistinctActive(ctx context.Context, column string) ([]string, error) {
	if !filterableColumns[column] {
		return nil, fmt.Errorf("column %q is not filterable", column)
	}

	query := fmt.Sprintf(
		`SELECT DISTINCT %q::text FROM listings WHERE NOT removed AND %q IS NOT NULL`,
		column, column,
	)

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query distinct %s values: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan distinct value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distinct values: %w", err)
	}

	return values, nil
}

const upsertListing = `
	INSERT INTO listings (
		id, parcel_id, address, neighborhood, ward, zip, sqft, usage, status,
		property_type, lat, lng, raw, address_lower, address_keywords, geohash,
		removed, removed_at, fingerprint, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, false, NULL, $17, $18
	)
	ON CONFLICT (id) DO UPDATE SET
		parcel_id = EXCLUDED.parcel_id,
		address = EXCLUDED.address,
		neighborhood = EXCLUDED.neighborhood,
		ward = EXCLUDED.ward,
		zip = EXCLUDED.zip,
		sqft = EXCLUDED.sqft,
		usage = EXCLUDED.usage,
		status = EXCLUDED.status,
		property_type = EXCLUDED.property_type,
		lat = EXCLUDED.lat,
		lng = EXCLUDED.lng,
		raw = EXCLUDED.raw,
		address_lower = EXCLUDED.address_lower,
		address_keywords = EXCLUDED.address_keywords,
		geohash = EXCLUDED.geohash,
		removed = false,
		removed_at = NULL,
		fingerprint = EXCLUDED.fingerprint,
		updated_at = EXCLUDED.updated_at
`

const markRemoved = `
	UPDATE listings
	SET removed = true, removed_at = $2, updated_at = $2
	WHERE id = $1
`

// WriteBatch queues every operation into one pgx batch and sends it inside
// a transaction, so the whole slice commits or rolls back as a unit. This
// is the atomicity boundary of an ingest run; the run itself spans several
// of these.
//
// Upserts overwrite every column. A listing flagged removed that comes
// back through an upsert has its removal flag and timestamp cleared: the
// policy here is that a reappearing property is live again and its old
// removal date is not preserved.
func (r *listingRepository) WriteBatch(ctx context.Context, ops []models.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, op := range ops {
		switch op.Kind {
		case models.OpUpsert:
			l := op.Listing
			batch.Queue(upsertListing,
				l.ID, l.ParcelID, l.Address, l.Neighborhood, l.Ward, l.Zip,
				l.SqFt, l.Usage, l.Status, l.PropertyType, l.Lat, l.Lng,
				l.Raw, l.AddressLower, l.AddressKeywords, l.Geohash,
				l.Fingerprint, l.UpdatedAt,
			)
		case models.OpMarkRemoved:
			batch.Queue(markRemoved, op.Listing.ID, op.RemovedAt)
		}
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("batch operation %d failed: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch results: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// scanListings drains rows into listing models.
func scanListings(rows pgx.Rows) ([]models.Listing, error) {
	var listings []models.Listing
	for rows.Next() {
		var l models.Listing
		err := rows.Scan(
			&l.ID, &l.ParcelID, &l.Address, &l.Neighborhood, &l.Ward, &l.Zip,
			&l.SqFt, &l.Usage, &l.Status, &l.PropertyType, &l.Lat, &l.Lng,
			&l.Raw, &l.AddressLower, &l.AddressKeywords, &l.Geohash,
			&l.Removed, &l.RemovedAt, &l.Fingerprint, &l.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing rows: %w", err)
	}

	if listings == nil {
		listings = []models.Listing{}
	}
	return listings, nil
}
