package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/401-Nick/lra-alerts/internal/logger"
	"github.com/401-Nick/lra-alerts/internal/models"
	"github.com/401-Nick/lra-alerts/internal/normalize"
	"github.com/401-Nick/lra-alerts/internal/repository"
)

// Service-level errors
var (
	ErrInvalidSubscriptionType  = errors.New("invalid subscription type")
	ErrInvalidSubscriptionValue = errors.New("invalid subscription value")
)

// SubscriptionService defines the business logic for managing alert
// subscriptions.
type SubscriptionService interface {
	// Subscribe stores a subscription, idempotently. The same
	// (user, type, value) triple can be created any number of times.
	// Returns ErrInvalidSubscriptionType or ErrInvalidSubscriptionValue
	// for inputs that cannot identify a dimension value.
	Subscribe(ctx context.Context, userID string, t models.SubscriptionType, value string) (models.Subscription, error)

	// Unsubscribe deletes the triple. Unknown triples succeed silently.
	Unsubscribe(ctx context.Context, userID string, t models.SubscriptionType, value string) error

	// List returns every subscription the user owns.
	List(ctx context.Context, userID string) ([]models.Subscription, error)
}

type subscriptionService struct {
	repo repository.SubscriptionRepository
	log  *logger.Logger
}

// NewSubscriptionService creates a new instance of SubscriptionService.
func NewSubscriptionService(repo repository.SubscriptionRepository, log *logger.Logger) SubscriptionService {
	return &subscriptionService{
		repo: repo,
		log:  log,
	}
}

func (s *subscriptionService) Subscribe(ctx context.Context, userID string, t models.SubscriptionType, value string) (models.Subscription, error) {
	value, err := normalizeValue(t, value)
	if err != nil {
		return models.Subscription{}, err
	}

	sub := models.Subscription{
		UserID:    userID,
		Type:      t,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		s.log.Error("Failed to store subscription", err, map[string]interface{}{
			"user_id": userID,
			"type":    string(t),
			"value":   value,
		})
		return models.Subscription{}, fmt.Errorf("failed to store subscription: %w", err)
	}

	s.log.Info("Subscription stored", map[string]interface{}{
		"user_id": userID,
		"type":    string(t),
		"value":   value,
	})

	return sub, nil
}

func (s *subscriptionService) Unsubscribe(ctx context.Context, userID string, t models.SubscriptionType, value string) error {
	value, err := normalizeValue(t, value)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID, t, value); err != nil {
		s.log.Error("Failed to delete subscription", err, map[string]interface{}{
			"user_id": userID,
			"type":    string(t),
			"value":   value,
		})
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return nil
}

func (s *subscriptionService) List(ctx context.Context, userID string) ([]models.Subscription, error) {
	subs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		s.log.Error("Failed to list subscriptions", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// normalizeValue canonicalizes the dimension value so subscriptions match
// what the normalizer writes into listings: zips go through the 5-digit
// rule, wards must parse as integers, text dimensions are trimmed.
func normalizeValue(t models.SubscriptionType, value string) (string, error) {
	if !models.ValidSubscriptionType(t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSubscriptionType, t)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidSubscriptionValue)
	}

	switch t {
	case models.SubscriptionZip:
		zip := normalize.NormalizeZip(value)
		if zip == nil {
			return "", fmt.Errorf("%w: %q is not a usable ZIP", ErrInvalidSubscriptionValue, value)
		}
		return *zip, nil
	case models.SubscriptionWard:
		ward, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("%w: %q is not a ward number", ErrInvalidSubscriptionValue, value)
		}
		return strconv.Itoa(ward), nil
	default:
		return value, nil
	}
}
