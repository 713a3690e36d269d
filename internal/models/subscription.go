package models

import (
	"fmt"
	"time"
)

// SubscriptionType is the dimension a user subscribes on.
type SubscriptionType string

const (
	SubscriptionZip          SubscriptionType = "zip"
	SubscriptionParcel       SubscriptionType = "parcel"
	SubscriptionWard         SubscriptionType = "ward"
	SubscriptionNeighborhood SubscriptionType = "neighborhood"
)

// ValidSubscriptionType reports whether t is one of the supported
// subscription dimensions.
func ValidSubscriptionType(t SubscriptionType) bool {
	switch t {
	case SubscriptionZip, SubscriptionParcel, SubscriptionWard, SubscriptionNeighborhood:
		return true
	}
	return false
}

// Subscription is a user's request to be alerted about inventory changes
// on one dimension value. Identity is the (UserID, Type, Value) triple;
// creating the same triple twice is an idempotent overwrite.
type Subscription struct {
	UserID    string           `json:"userId"`
	Type      SubscriptionType `json:"type"`
	Value     string           `json:"value"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Key returns the storage key for the subscription triple.
func (s *Subscription) Key() string {
	return fmt.Sprintf("%s_%s_%s", s.UserID, s.Type, s.Value)
}
