package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
)

// Status is the lifecycle state of a transfer.
type Status uint8

const (
	StatusPending Status = iota
	StatusAccepted
	StatusRejected
)

var statusNames = [...]string{"Pending", "Accepted", "Rejected"}

func (s Status) Valid() bool { return int(s) < len(statusNames) }

func (s Status) String() string {
	if !s.Valid() {
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
	return statusNames[s]
}

// IsTerminal reports whether the transfer can no longer change.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	for i, n := range statusNames {
		if strings.EqualFold(name, n) {
			*s = Status(i)
			return nil
		}
	}
	return dErrors.New(dErrors.CodeInvalidInput, "unknown transfer status: "+name)
}

// Transfer is a proposed movement of balance that settles only when the
// recipient accepts it.
//
// Invariants:
//   - Amount > 0; From != To
//   - Status moves Pending -> Accepted or Pending -> Rejected exactly once
//   - ResolvedAt is set iff Status is terminal
type Transfer struct {
	ID         domain.TransferID `json:"id"`
	AssetID    domain.AssetID    `json:"asset_id"`
	From       domain.Address    `json:"from"`
	To         domain.Address    `json:"to"`
	Amount     int64             `json:"amount"`
	Status     Status            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
}

// CanResolve checks that the transfer is still open.
func (t *Transfer) CanResolve() error {
	if t.Status != StatusPending {
		return dErrors.New(dErrors.CodeAlreadyResolved, "transfer is already "+t.Status.String())
	}
	return nil
}

// ApplyResolution moves the transfer into a terminal state. Call CanResolve first.
func (t *Transfer) ApplyResolution(s Status, now time.Time) {
	t.Status = s
	t.ResolvedAt = &now
}

// Involves reports whether addr is the sender or recipient.
func (t *Transfer) Involves(addr domain.Address) bool {
	return t.From == addr || t.To == addr
}

// ProposeRequest carries the caller-supplied fields of a proposal.
type ProposeRequest struct {
	Recipient domain.Address `json:"recipient"`
	AssetID   domain.AssetID `json:"asset_id"`
	Amount    int64          `json:"amount"`
}
