package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"supplyledger/pkg/domain"
)

// EventKind names a committed ledger mutation.
type EventKind string

const (
	EventParticipantRegistered    EventKind = "participant.registered"
	EventParticipantStatusChanged EventKind = "participant.status_changed"
	EventAssetCreated             EventKind = "asset.created"
	EventTransferProposed         EventKind = "transfer.proposed"
	EventTransferAccepted         EventKind = "transfer.accepted"
	EventTransferRejected         EventKind = "transfer.rejected"
)

// Event is an outbox entry written in the same transaction as the mutation
// it describes. Seq is gapless and strictly increasing.
type Event struct {
	Seq        uint64          `json:"seq"`
	Kind       EventKind       `json:"kind"`
	Subject    string          `json:"subject"`
	Actor      domain.Address  `json:"actor"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Receipt confirms that a mutation committed at position Seq.
type Receipt struct {
	Seq  uint64    `json:"seq"`
	Kind EventKind `json:"kind"`
	At   time.Time `json:"at"`
}

// Receipt returns the client-facing settlement marker of a committed event.
func (e Event) Receipt() Receipt {
	return Receipt{Seq: e.Seq, Kind: e.Kind, At: e.OccurredAt}
}

// NewEvent builds an event carrying the JSON form of record.
func NewEvent(kind EventKind, subject string, actor domain.Address, record any, at time.Time) (*Event, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &Event{
		Kind:       kind,
		Subject:    subject,
		Actor:      actor,
		Payload:    payload,
		OccurredAt: at,
	}, nil
}

// Subject helpers keep event keys uniform across producers and consumers.
func ParticipantSubject(a domain.Address) string { return "participant:" + a.String() }
func AssetSubject(id domain.AssetID) string      { return "asset:" + id.String() }
func TransferSubject(id domain.TransferID) string {
	return "transfer:" + id.String()
}

// Record appends an event for record inside tx and returns its receipt.
func Record(ctx context.Context, tx Tx, kind EventKind, subject string, actor domain.Address, record any, at time.Time) (Receipt, error) {
	e, err := NewEvent(kind, subject, actor, record, at)
	if err != nil {
		return Receipt{}, err
	}
	if err := tx.AppendEvent(ctx, e); err != nil {
		return Receipt{}, fmt.Errorf("append %s event: %w", kind, err)
	}
	return e.Receipt(), nil
}
