// Package events publishes bid lifecycle notifications to a message broker.
// Delivery is best effort: publish failures are logged by callers and never
// fail the operation that produced the event.
package events

import (
	"context"
	"time"
)

// Type names a lifecycle transition. It doubles as the AMQP message type.
type Type string

const (
	BidCreated Type = "bid.created"
	BidUpdated Type = "bid.updated"
	BidDeleted Type = "bid.deleted"
)

// Event is the JSON body published for each transition.
type Event struct {
	Type          Type      `json:"type"`
	BidID         int64     `json:"bidId"`
	Code          string    `json:"code,omitempty"`
	Status        string    `json:"status,omitempty"`
	CooperativeID *int64    `json:"cooperativeId,omitempty"`
	DistrictID    *int64    `json:"districtId,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Publisher sends events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
