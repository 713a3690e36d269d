package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/401-Nick/lra-alerts/internal/middleware"
	"github.com/401-Nick/lra-alerts/internal/models"
	"github.com/401-Nick/lra-alerts/internal/services"
)

// MockSubscriptionService is a mock implementation of SubscriptionService
// for testing
type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) Subscribe(ctx context.Context, userID string, t models.SubscriptionType, value string) (models.Subscription, error) {
	args := m.Called(ctx, userID, t, value)
	return args.Get(0).(models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) Unsubscribe(ctx context.Context, userID string, t models.SubscriptionType, value string) error {
	args := m.Called(ctx, userID, t, value)
	return args.Error(0)
}

func (m *MockSubscriptionService) List(ctx context.Context, userID string) ([]models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Subscription), args.Error(1)
}

func setupSubscriptionRouter(service services.SubscriptionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.RequestID())
	handler := NewSubscriptionHandler(service)
	router.PUT("/api/v1/subscriptions", handler.Subscribe)
	router.DELETE("/api/v1/subscriptions", handler.Unsubscribe)
	router.GET("/api/v1/users/:userId/subscriptions", handler.List)
	return router
}

func subscriptionBody(userID, subType, value string) *bytes.Buffer {
	body, _ := json.Marshal(map[string]string{
		"userId": userID,
		"type":   subType,
		"value":  value,
	})
	return bytes.NewBuffer(body)
}

func TestSubscribeEndpoint_Success(t *testing.T) {
	// Arrange
	service := new(MockSubscriptionService)
	service.On("Subscribe", mock.Anything, "user-1", models.SubscriptionZip, "63104").
		Return(models.Subscription{UserID: "user-1", Type: models.SubscriptionZip, Value: "63104"}, nil)
	router := setupSubscriptionRouter(service)

	// Act
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/subscriptions", subscriptionBody("user-1", "zip", "63104"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// Assert
	require.Equal(t, http.StatusOK, w.Code)

	var sub models.Subscription
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, models.SubscriptionZip, sub.Type)
	service.AssertExpectations(t)
}

func TestSubscribeEndpoint_UnknownTypeRejected(t *testing.T) {
	service := new(MockSubscriptionService)
	router := setupSubscriptionRouter(service)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/subscriptions", subscriptionBody("user-1", "county", "St. Louis"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "Subscribe")
}

func TestSubscribeEndpoint_MissingFieldsRejected(t *testing.T) {
	service := new(MockSubscriptionService)
	router := setupSubscriptionRouter(service)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/subscriptions", bytes.NewBufferString(`{"userId":"user-1"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
}

func TestSubscribeEndpoint_InvalidValue(t *testing.T) {
	service := new(MockSubscriptionService)
	service.On("Subscribe", mock.Anything, "user-1", models.SubscriptionWard, "fourth").
		Return(models.Subscription{}, services.ErrInvalidSubscriptionValue)
	router := setupSubscriptionRouter(service)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/api/v1/subscriptions", subscriptionBody("user-1", "ward", "fourth"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnsubscribeEndpoint_Success(t *testing.T) {
	service := new(MockSubscriptionService)
	service.On("Unsubscribe", mock.Anything, "user-1", models.SubscriptionZip, "63104").Return(nil)
	router := setupSubscriptionRouter(service)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/subscriptions", subscriptionBody("user-1", "zip", "63104"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
	service.AssertExpectations(t)
}

func TestListEndpoint_Success(t *testing.T) {
	service := new(MockSubscriptionService)
	service.On("List", mock.Anything, "user-1").Return([]models.Subscription{
		{UserID: "user-1", Type: models.SubscriptionZip, Value: "63104"},
		{UserID: "user-1", Type: models.SubscriptionWard, Value: "4"},
	}, nil)
	router := setupSubscriptionRouter(service)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/subscriptions", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Subscriptions, 2)
	service.AssertExpectations(t)
}

func TestListEndpoint_EmptyList(t *testing.T) {
	service := new(MockSubscriptionService)
	service.On("List", mock.Anything, "user-2").Return([]models.Subscription{}, nil)
	router := setupSubscriptionRouter(service)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-2/subscriptions", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Zero(t, resp.Count)
}
