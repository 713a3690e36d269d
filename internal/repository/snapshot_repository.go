package repository

import (
	"context"
	"fmt"

	"github.com/401-Nick/lra-alerts/internal/database"
	"github.com/401-Nick/lra-alerts/internal/models"
)

// snapshotKey is the single row the exports snapshot lives under. The
// snapshot is overwritten wholesale each run; no history is kept.
const snapshotKey = "current"

// SnapshotRepository persists the exports/current document.
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
}

type snapshotRepository struct {
	db *database.Database
}

// NewSnapshotRepository creates a new instance of SnapshotRepository.
func NewSnapshotRepository(db *database.Database) SnapshotRepository {
	return &snapshotRepository{db: db}
}

func (r *snapshotRepository) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	query := `
		INSERT INTO exports (key, snapshot, generated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			snapshot = EXCLUDED.snapshot,
			generated_at = EXCLUDED.generated_at
	`

	_, err := r.db.Pool.Exec(ctx, query, snapshotKey, snap, snap.GeneratedAt)
	if err != nil {
		return fmt.Errorf("failed to save exports snapshot: %w", err)
	}
	return nil
}

func (r *snapshotRepository) LoadSnapshot(ctx context.Context) (*models.Snapshot, error) {
	var snap models.Snapshot
	err := r.db.Pool.QueryRow(ctx,
		`SELECT snapshot FROM exports WHERE key = $1`, snapshotKey,
	).Scan(&snap)
	if err != nil {
		return nil, fmt.Errorf("failed to load exports snapshot: %w", err)
	}
	return &snap, nil
}
