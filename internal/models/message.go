// Package models defines data structures used throughout the application.
package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the carrier-reported state of a single message.
type DeliveryStatus string

const (
	DeliveryStatusQueued      DeliveryStatus = "queued"
	DeliveryStatusSending     DeliveryStatus = "sending"
	DeliveryStatusSent        DeliveryStatus = "sent"
	DeliveryStatusDelivered   DeliveryStatus = "delivered"
	DeliveryStatusFailed      DeliveryStatus = "failed"
	DeliveryStatusUndelivered DeliveryStatus = "undelivered"
)

var deliveryStatusRank = map[DeliveryStatus]int{
	DeliveryStatusQueued:      1,
	DeliveryStatusSending:     2,
	DeliveryStatusSent:        3,
	DeliveryStatusDelivered:   4,
	DeliveryStatusFailed:      4,
	DeliveryStatusUndelivered: 4,
}

// ParseDeliveryStatus accepts the carrier's status vocabulary. Carrier
// statuses outside the tracked set (accepted, scheduled, read, ...) map to
// their closest tracked equivalent.
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch s {
	case "accepted", "scheduled":
		return DeliveryStatusQueued, true
	case "read", "received":
		return DeliveryStatusDelivered, true
	case "canceled":
		return DeliveryStatusFailed, true
	}
	st := DeliveryStatus(s)
	_, ok := deliveryStatusRank[st]
	return st, ok
}

func (s DeliveryStatus) Valid() bool {
	_, ok := deliveryStatusRank[s]
	return ok
}

// IsTerminal reports whether no further transition is expected.
func (s DeliveryStatus) IsTerminal() bool {
	return deliveryStatusRank[s] == deliveryStatusRank[DeliveryStatusDelivered]
}

// IsFailure reports whether the message did not reach the handset.
func (s DeliveryStatus) IsFailure() bool {
	return s == DeliveryStatusFailed || s == DeliveryStatusUndelivered
}

// Supersedes reports whether s may replace current. A nil current (legacy
// rows without tracking) accepts anything. Statuses only move forward, and
// once a terminal status is stored it is final.
func (s DeliveryStatus) Supersedes(current *DeliveryStatus) bool {
	if current == nil {
		return true
	}
	if *current == s || current.IsTerminal() {
		return false
	}
	return deliveryStatusRank[s] > deliveryStatusRank[*current]
}

// Message is one dispatch attempt accepted by the carrier.
type Message struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	CustomerID           uuid.NullUUID   `db:"customer_id" json:"customer_id"`
	UserID               uuid.UUID       `db:"user_id" json:"user_id"`
	Body                 string          `db:"body" json:"body"`
	SentAt               time.Time       `db:"sent_at" json:"sent_at"`
	CarrierMessageID     string          `db:"carrier_message_id" json:"carrier_message_id"`
	DeliveryStatus       *DeliveryStatus `db:"delivery_status" json:"delivery_status,omitempty"`
	DeliveryErrorCode    sql.NullString  `db:"delivery_error_code" json:"-"`
	DeliveryErrorMessage sql.NullString  `db:"delivery_error_message" json:"-"`
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// DeliveryUpdate is the payload of one status callback.
type DeliveryUpdate struct {
	Status       DeliveryStatus
	ErrorCode    string
	ErrorMessage string
}
