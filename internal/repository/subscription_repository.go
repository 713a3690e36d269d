package repository

import (
	"context"
	"fmt"

	"github.com/401-Nick/lra-alerts/internal/database"
	"github.com/401-Nick/lra-alerts/internal/models"
)

// SubscriptionRepository is the data access layer for alert subscriptions.
// The (user_id, type, value) triple is the identity; re-creating an
// existing triple overwrites it.
type SubscriptionRepository interface {
	// Upsert stores the subscription, idempotently.
	Upsert(ctx context.Context, sub models.Subscription) error

	// Delete removes the subscription triple. Deleting a triple that does
	// not exist is not an error.
	Delete(ctx context.Context, userID string, t models.SubscriptionType, value string) error

	// ListByUser returns every subscription a user owns.
	ListByUser(ctx context.Context, userID string) ([]models.Subscription, error)

	// FindSubscribers returns every subscription matching (type, value)
	// exactly.
	FindSubscribers(ctx context.Context, t models.SubscriptionType, value string) ([]models.Subscription, error)
}

type subscriptionRepository struct {
	db *database.Database
}

// NewSubscriptionRepository creates a new instance of SubscriptionRepository.
func NewSubscriptionRepository(db *database.Database) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, sub models.Subscription) error {
	query := `
		INSERT INTO subscriptions (key, user_id, type, value, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE SET created_at = EXCLUDED.created_at
	`

	_, err := r.db.Pool.Exec(ctx, query, sub.Key(), sub.UserID, string(sub.Type), sub.Value, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription %s: %w", sub.Key(), err)
	}
	return nil
}

func (r *subscriptionRepository) Delete(ctx context.Context, userID string, t models.SubscriptionType, value string) error {
	sub := models.Subscription{UserID: userID, Type: t, Value: value}

	_, err := r.db.Pool.Exec(ctx, `DELETE FROM subscriptions WHERE key = $1`, sub.Key())
	if err != nil {
		return fmt.Errorf("failed to delete subscription %s: %w", sub.Key(), err)
	}
	return nil
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	query := `
		SELECT user_id, type, value, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY type, value
	`
	return r.querySubscriptions(ctx, query, userID)
}

func (r *subscriptionRepository) FindSubscribers(ctx context.Context, t models.SubscriptionType, value string) ([]models.Subscription, error) {
	query := `
		SELECT user_id, type, value, created_at
		FROM subscriptions
		WHERE type = $1 AND value = $2
	`
	return r.querySubscriptions(ctx, query, string(t), value)
}

func (r *subscriptionRepository) querySubscriptions(ctx context.Context, query string, args ...interface{}) ([]models.Subscription, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var (
			sub models.Subscription
			t   string
		)
		if err := rows.Scan(&sub.UserID, &t, &sub.Value, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subscription row: %w", err)
		}
		sub.Type = models.SubscriptionType(t)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscription rows: %w", err)
	}

	if subs == nil {
		subs = []models.Subscription{}
	}
	return subs, nil
}
