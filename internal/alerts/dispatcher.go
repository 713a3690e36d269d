// Package alerts resolves subscribers for a diff and delivers their
// notifications.
package alerts

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/401-Nick/lra-alerts/internal/logger"
	"github.com/401-Nick/lra-alerts/internal/models"
)

// Event is the change kind a notification describes.
type Event string

const (
	EventAdded   Event = "added"
	EventChanged Event = "changed"
	EventRemoved Event = "removed"
)

// subscriptionTypesFor maps an event to the subscription dimensions it
// checks. Policy: zip subscribers hear only about entry and exit of
// inventory, not attribute changes. Parcel, ward and neighborhood
// subscribers get all three events.
func subscriptionTypesFor(event Event) []models.SubscriptionType {
	if event == EventChanged {
		return []models.SubscriptionType{
			models.SubscriptionParcel,
			models.SubscriptionWard,
			models.SubscriptionNeighborhood,
		}
	}
	return []models.SubscriptionType{
		models.SubscriptionZip,
		models.SubscriptionParcel,
		models.SubscriptionWard,
		models.SubscriptionNeighborhood,
	}
}

// Notification is one message to one subscriber about one listing.
type Notification struct {
	UserID    string                  `json:"userId"`
	Event     Event                   `json:"event"`
	ListingID string                  `json:"listingId"`
	Type      models.SubscriptionType `json:"type"`
	Value     string                  `json:"value"`
	Message   string                  `json:"message"`
}

// Notifier delivers a single subscriber notification.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Broadcaster posts the once-per-run summary message to a shared channel.
type Broadcaster interface {
	Broadcast(ctx context.Context, message string) error
}

// SubscriptionSource looks up subscribers by exact (type, value) match.
type SubscriptionSource interface {
	FindSubscribers(ctx context.Context, t models.SubscriptionType, value string) ([]models.Subscription, error)
}

// Report aggregates how the fan-out settled.
type Report struct {
	Delivered int
	Failed    int
}

// Dispatcher fans diff events out to subscribers. Delivery is best-effort
// and unordered; each notification is attempted exactly once and one
// subscriber's failure never blocks another's delivery.
type Dispatcher struct {
	subs      SubscriptionSource
	notifier  Notifier
	broadcast Broadcaster
	log       *logger.Logger
}

// NewDispatcher creates a Dispatcher. broadcast may be nil when no shared
// channel is configured.
func NewDispatcher(subs SubscriptionSource, notifier Notifier, broadcast Broadcaster, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		subs:      subs,
		notifier:  notifier,
		broadcast: broadcast,
		log:       log,
	}
}

// Dispatch resolves interested subscribers for every record in the diff,
// launches one delivery task per notification, and waits for all of them
// to settle before returning the aggregate report.
func (d *Dispatcher) Dispatch(ctx context.Context, diff models.Diff) Report {
	notifications := d.resolve(ctx, diff)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report Report
	)

	for _, n := range notifications {
		wg.Add(1)
		go func(n Notification) {
			defer wg.Done()
			if err := d.notifier.Notify(ctx, n); err != nil {
				d.log.Error("Notification delivery failed", err, map[string]interface{}{
					"user_id":    n.UserID,
					"listing_id": n.ListingID,
					"event":      string(n.Event),
				})
				mu.Lock()
				report.Failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			report.Delivered++
			mu.Unlock()
		}(n)
	}

	wg.Wait()

	if d.broadcast != nil && !diff.Empty() {
		msg := fmt.Sprintf("LRA inventory updated: %d added, %d changed, %d removed",
			len(diff.Added), len(diff.Changed), len(diff.Removed))
		if err := d.broadcast.Broadcast(ctx, msg); err != nil {
			d.log.Error("Broadcast delivery failed", err, nil)
		}
	}

	return report
}

// resolve builds the full notification list for a diff. Subscription
// lookups are sequential (they share the store's connection pool); only
// delivery is concurrent.
func (d *Dispatcher) resolve(ctx context.Context, diff models.Diff) []Notification {
	var out []Notification
	for _, l := range diff.Added {
		out = append(out, d.resolveListing(ctx, EventAdded, l)...)
	}
	for _, l := range diff.Changed {
		out = append(out, d.resolveListing(ctx, EventChanged, l)...)
	}
	for _, l := range diff.Removed {
		out = append(out, d.resolveListing(ctx, EventRemoved, l)...)
	}
	return out
}

// resolveListing finds every subscriber interested in one listing event.
// Dimensions the listing has no value for are skipped.
func (d *Dispatcher) resolveListing(ctx context.Context, event Event, l models.Listing) []Notification {
	var out []Notification

	for _, subType := range subscriptionTypesFor(event) {
		value := dimensionValue(subType, l)
		if value == "" {
			continue
		}

		subs, err := d.subs.FindSubscribers(ctx, subType, value)
		if err != nil {
			d.log.Error("Subscriber lookup failed", err, map[string]interface{}{
				"type":  string(subType),
				"value": value,
			})
			continue
		}

		for _, sub := range subs {
			out = append(out, Notification{
				UserID:    sub.UserID,
				Event:     event,
				ListingID: l.ID,
				Type:      subType,
				Value:     value,
				Message:   describe(event, subType, value, l),
			})
		}
	}

	return out
}

// dimensionValue extracts the listing's value for a subscription
// dimension, or "" when absent.
func dimensionValue(t models.SubscriptionType, l models.Listing) string {
	switch t {
	case models.SubscriptionZip:
		if l.Zip != nil {
			return *l.Zip
		}
	case models.SubscriptionParcel:
		if l.ParcelID != nil {
			return *l.ParcelID
		}
	case models.SubscriptionWard:
		if l.Ward != nil {
			return strconv.Itoa(*l.Ward)
		}
	case models.SubscriptionNeighborhood:
		if l.Neighborhood != nil {
			return *l.Neighborhood
		}
	}
	return ""
}

// describe renders the human-readable message body for a notification.
func describe(event Event, t models.SubscriptionType, value string, l models.Listing) string {
	address := l.ID
	if l.Address != nil {
		address = *l.Address
	}

	var what string
	switch event {
	case EventAdded:
		what = "was added to the LRA inventory"
	case EventChanged:
		what = "was updated in the LRA inventory"
	case EventRemoved:
		what = "is no longer in the LRA inventory"
	}

	return fmt.Sprintf("%s %s (%s %s)", address, what, t, value)
}
