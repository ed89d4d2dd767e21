package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
)

// Status is the approval state of a participant.
//
// The wire encoding is the status name. The numeric encoding (0..3) used by
// the original client is accepted on input.
type Status uint8

const (
	StatusPending Status = iota
	StatusApproved
	StatusRejected
	StatusCanceled
)

var statusNames = [...]string{"Pending", "Approved", "Rejected", "Canceled"}

// ParseStatus accepts a status name (case-insensitive) or its numeric code.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for i, name := range statusNames {
		if strings.EqualFold(s, name) {
			return Status(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(statusNames) {
		return Status(n), nil
	}
	return 0, dErrors.New(dErrors.CodeInvalidInput, "unknown participant status: "+s)
}

func (s Status) Valid() bool { return int(s) < len(statusNames) }

func (s Status) String() string {
	if !s.Valid() {
		return "Status(" + strconv.Itoa(int(s)) + ")"
	}
	return statusNames[s]
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var text string
	switch v := raw.(type) {
	case string:
		text = v
	case float64:
		text = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return dErrors.New(dErrors.CodeInvalidInput, "participant status must be a name or number")
	}
	parsed, err := ParseStatus(text)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Participant is one registry record.
//
// Invariants:
//   - Address is unique and immutable once created
//   - Role is non-empty and fixed at request time
//   - Status is only changed by an administrator; records are never deleted
type Participant struct {
	ID        domain.ParticipantID `json:"id"`
	Address   domain.Address       `json:"address"`
	Role      string               `json:"role"`
	Status    Status               `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// MaxRoleLength bounds the free-form role label.
const MaxRoleLength = 64

// NewParticipant builds a Pending registration. The ID is assigned by the store.
func NewParticipant(addr domain.Address, role string, now time.Time) (*Participant, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "role is required")
	}
	if len(role) > MaxRoleLength {
		return nil, dErrors.New(dErrors.CodeValidation, "role must be 64 characters or less")
	}
	return &Participant{
		Address:   addr,
		Role:      role,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (p *Participant) IsApproved() bool {
	return p.Status == StatusApproved
}

// ApplyStatus records an administrative status change. Every transition is
// allowed so administrators can correct mistakes.
func (p *Participant) ApplyStatus(s Status, now time.Time) {
	p.Status = s
	p.UpdatedAt = now
}

// Filter narrows participant listings.
type Filter struct {
	Status *Status
}

func (f Filter) Match(p *Participant) bool {
	return f.Status == nil || p.Status == *f.Status
}
