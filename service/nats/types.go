package nats

import (
	"fmt"
	"time"

	"github.com/brojonat/xray/service/proton"
)

// SubjectPrefix is prepended to the primary user to form a publish subject.
const SubjectPrefix = "classified"

// TransactionEvent is a classified transaction as published to a sink.
// In JetStream it lands on "classified.{primary_user}".
type TransactionEvent struct {
	// Transaction identifiers
	Signature string `json:"signature"`
	Type      string `json:"type"`
	Source    string `json:"source"`

	// Participants
	PrimaryUser string `json:"primary_user"`
	Viewer      string `json:"viewer,omitempty"` // Address the actions are narrated for

	// Summary
	Fee         float64 `json:"fee"`
	ActionCount int     `json:"action_count"`

	// Timing information
	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`

	// Full canonical record
	Transaction proton.Transaction `json:"transaction"`
}

// FromTransaction wraps a classified transaction for publishing.
func FromTransaction(tx proton.Transaction, viewer string) *TransactionEvent {
	return &TransactionEvent{
		Signature:   tx.Signature,
		Type:        string(tx.Type),
		Source:      string(tx.Source),
		PrimaryUser: tx.PrimaryUser,
		Viewer:      viewer,
		Fee:         tx.Fee,
		ActionCount: len(tx.Actions),
		Timestamp:   time.UnixMilli(tx.Timestamp).UTC(),
		PublishedAt: time.Now().UTC(),
		Transaction: tx,
	}
}

// Subject returns the subject the event is published on.
func (e *TransactionEvent) Subject() string {
	return SubjectFor(e.PrimaryUser)
}

// SubjectFor returns the subject for events whose primary user is address.
func SubjectFor(address string) string {
	if address == "" {
		address = "unknown"
	}
	return fmt.Sprintf("%s.%s", SubjectPrefix, address)
}
