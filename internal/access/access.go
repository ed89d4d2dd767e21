// Package access decides whether an identity may perform an operation.
//
// Administrators are fixed at startup from configuration. Every other
// decision reads registry state through the ledger.Reader passed in, which
// inside a unit of work is the same transaction as the guarded mutation.
package access

import (
	"context"
	"errors"
	"fmt"

	"supplyledger/internal/ledger"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/platform/sentinel"
)

// Level is the permission an operation requires.
type Level int

const (
	// Any admits every identity. Ownership checks stay with the caller.
	Any Level = iota
	ApprovedParticipant
	Administrator
)

func (l Level) String() string {
	switch l {
	case Administrator:
		return "administrator"
	case ApprovedParticipant:
		return "approved_participant"
	default:
		return "any"
	}
}

// Gate holds the administrator set.
type Gate struct {
	admins map[domain.Address]struct{}
}

func NewGate(admins ...domain.Address) *Gate {
	g := &Gate{admins: make(map[domain.Address]struct{}, len(admins))}
	for _, a := range admins {
		if !a.IsZero() {
			g.admins[a] = struct{}{}
		}
	}
	return g
}

// ParseAdmins builds a gate from textual addresses, rejecting malformed ones.
func ParseAdmins(raw []string) (*Gate, error) {
	admins := make([]domain.Address, 0, len(raw))
	for _, s := range raw {
		addr, err := domain.ParseAddress(s)
		if err != nil {
			return nil, fmt.Errorf("administrator %q: %w", s, err)
		}
		admins = append(admins, addr)
	}
	return NewGate(admins...), nil
}

func (g *Gate) IsAdministrator(identity domain.Address) bool {
	_, ok := g.admins[identity]
	return ok
}

// Administrators returns the configured set; order is unspecified.
func (g *Gate) Administrators() []domain.Address {
	out := make([]domain.Address, 0, len(g.admins))
	for a := range g.admins {
		out = append(out, a)
	}
	return out
}

// IsApproved reports whether identity may act as an approved participant.
// Administrators are implicitly approved.
func (g *Gate) IsApproved(ctx context.Context, r ledger.Reader, identity domain.Address) (bool, error) {
	if g.IsAdministrator(identity) {
		return true, nil
	}
	p, err := r.FindParticipant(ctx, identity)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.IsApproved(), nil
}

// Authorize returns an unauthorized error unless identity holds level.
func (g *Gate) Authorize(ctx context.Context, r ledger.Reader, identity domain.Address, level Level) error {
	if identity.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	switch level {
	case Any:
		return nil
	case Administrator:
		if g.IsAdministrator(identity) {
			return nil
		}
		return dErrors.New(dErrors.CodeUnauthorized, "administrator role required")
	case ApprovedParticipant:
		ok, err := g.IsApproved(ctx, r, identity)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to read participant")
		}
		if !ok {
			return dErrors.New(dErrors.CodeUnauthorized, "approved participant required")
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeInternal, "unknown access level "+level.String())
	}
}
