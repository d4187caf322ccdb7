package models

import (
	"encoding/json"
	"strconv"
	"time"
)

const BillCreatedEventName = "bill.created"

// BillCreatedEvent is the snapshot of a committed bill sent to the broker
type BillCreatedEvent struct {
	BillID        int64       `json:"billId"`
	BillNumber    string      `json:"billNumber"`
	IssuedAt      string      `json:"issuedAt"`
	Subtotal      json.Number `json:"subtotal"`
	Tax           json.Number `json:"tax"`
	Total         json.Number `json:"total"`
	Currency      string      `json:"currency"`
	OccurredAtUTC time.Time   `json:"occurredAtUtc"`
	Source        string      `json:"source"`
}

// Envelope is the wire wrapper of every published event
type Envelope struct {
	EventName     string    `json:"eventName"`
	OccurredAtUTC time.Time `json:"occurredAtUtc"`
	Payload       any       `json:"payload"`
}

// NewBillCreatedEvent snapshots a persisted bill. It returns false for a bill without an id.
func NewBillCreatedEvent(bill *Bill, occurredAt time.Time, source string) (BillCreatedEvent, bool) {
	if bill == nil || !bill.IsPersisted() {
		return BillCreatedEvent{}, false
	}
	return BillCreatedEvent{
		BillID:        bill.ID,
		BillNumber:    bill.BillNumber,
		IssuedAt:      bill.IssuedAt.Format(DateLayout),
		Subtotal:      Amount(bill.Subtotal),
		Tax:           Amount(bill.Tax),
		Total:         Amount(bill.Total),
		Currency:      bill.Currency,
		OccurredAtUTC: occurredAt.UTC(),
		Source:        source,
	}, true
}

// Envelope wraps the event for the wire
func (e BillCreatedEvent) Envelope() Envelope {
	return Envelope{
		EventName:     BillCreatedEventName,
		OccurredAtUTC: e.OccurredAtUTC,
		Payload:       e,
	}
}

// IdempotencyKey identifies the event across republish attempts
func (e BillCreatedEvent) IdempotencyKey() string {
	return BillCreatedEventName + ":" + strconv.FormatInt(e.BillID, 10)
}
