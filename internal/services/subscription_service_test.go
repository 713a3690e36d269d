package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/401-Nick/lra-alerts/internal/logger"
	"github.com/401-Nick/lra-alerts/internal/models"
)

// MockSubscriptionRepository is a mock implementation of
// SubscriptionRepository for testing
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Upsert(ctx context.Context, sub models.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) Delete(ctx context.Context, userID string, t models.SubscriptionType, value string) error {
	args := m.Called(ctx, userID, t, value)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) FindSubscribers(ctx context.Context, t models.SubscriptionType, value string) ([]models.Subscription, error) {
	args := m.Called(ctx, t, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func TestSubscribe_Success(t *testing.T) {
	// Arrange
	mockRepo := new(MockSubscriptionRepository)
	service := NewSubscriptionService(mockRepo, logger.New("test"))
	ctx := context.Background()

	mockRepo.On("Upsert", ctx, mock.MatchedBy(func(sub models.Subscription) bool {
		return sub.UserID == "user-1" && sub.Type == models.SubscriptionZip && sub.Value == "63104"
	})).Return(nil)

	// Act
	sub, err := service.Subscribe(ctx, "user-1", models.SubscriptionZip, "63104")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "63104", sub.Value)
	assert.False(t, sub.CreatedAt.IsZero())
	mockRepo.AssertExpectations(t)
}

func TestSubscribe_NormalizesZipValue(t *testing.T) {
	// A zip subscription must match what the normalizer writes into
	// listings, so "63104-1234" stores as "63104".
	mockRepo := new(MockSubscriptionRepository)
	service := NewSubscriptionService(mockRepo, logger.New("test"))
	ctx := context.Background()

	mockRepo.On("Upsert", ctx, mock.MatchedBy(func(sub models.Subscription) bool {
		return sub.Value == "63104"
	})).Return(nil)

	sub, err := service.Subscribe(ctx, "user-1", models.SubscriptionZip, "63104-1234")

	require.NoError(t, err)
	assert.Equal(t, "63104", sub.Value)
	mockRepo.AssertExpectations(t)
}

func TestSubscribe_InvalidType(t *testing.T) {
	mockRepo := new(MockSubscriptionRepository)
	service := NewSubscriptionService(mockRepo, logger.New("test"))

	_, err := service.Subscribe(context.Background(), "user-1", "county", "St. Louis")

	assert.ErrorIs(t, err, ErrInvalidSubscriptionType)
	mockRepo.AssertNotCalled(t, "Upsert")
}

func TestSubscribe_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		sType models.SubscriptionType
		value string
	}{
		{name: "empty value", sType: models.SubscriptionParcel, value: "   "},
		{name: "unusable zip", sType: models.SubscriptionZip, value: "N/A"},
		{name: "non-numeric ward", sType: models.SubscriptionWard, value: "fourth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockSubscriptionRepository)
			service := NewSubscriptionService(mockRepo, logger.New("test"))

			_, err := service.Subscribe(context.Background(), "user-1", tt.sType, tt.value)

			assert.ErrorIs(t, err, ErrInvalidSubscriptionValue)
			mockRepo.AssertNotCalled(t, "Upsert")
		})
	}
}

func TestSubscribe_RepositoryFailure(t *testing.T) {
	mockRepo := new(MockSubscriptionRepository)
	service := NewSubscriptionService(mockRepo, logger.New("test"))
	ctx := context.Background()

	mockRepo.On("Upsert", ctx, mock.Anything).Return(errors.New("connection closed"))

	_, err := service.Subscribe(ctx, "user-1", models.SubscriptionWard, "4")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store subscription")
}

func TestUnsubscribe_Success(t *testing.T) {
	mockRepo := new(MockSubscriptionRepository)
	service := NewSubscriptionService(mockRepo, logger.New("test"))
	ctx := context.Background()

	mockRepo.On("Delete", ctx, "user-1", models.SubscriptionWard, "4").Return(nil)

	err := service.Unsubscribe(ctx, "user-1", models.SubscriptionWard, "04")

	require.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestList_Success(t *testing.T) {
	mockRepo := new(MockSubscriptionRepository)
	service := NewSubscriptionService(mockRepo, logger.New("test"))
	ctx := context.Background()

	expected := []models.Subscription{
		{UserID: "user-1", Type: models.SubscriptionZip, Value: "63104"},
		{UserID: "user-1", Type: models.SubscriptionWard, Value: "4"},
	}
	mockRepo.On("ListByUser", ctx, "user-1").Return(expected, nil)

	subs, err := service.List(ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, expected, subs)
	mockRepo.AssertExpectations(t)
}
