package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"supplyledger/internal/access"
	"supplyledger/internal/ledger"
	"supplyledger/internal/platform/tracing"
	"supplyledger/internal/registry/models"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/platform/sentinel"
	"supplyledger/pkg/requestcontext"
)

// Service owns participant registration and approval.
type Service struct {
	store  ledger.Store
	gate   *access.Gate
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store ledger.Store, gate *access.Gate, opts ...Option) *Service {
	s := &Service{store: store, gate: gate}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestRole registers caller as a Pending participant with the given role.
// Administrators and already-registered callers get already_registered.
func (s *Service) RequestRole(ctx context.Context, caller domain.Address, role string) (_ *models.Participant, _ ledger.Receipt, err error) {
	ctx, span := tracing.Start(ctx, "registry.RequestRole", attribute.String("caller", caller.String()))
	defer func() { tracing.End(span, err) }()

	if caller.IsZero() {
		return nil, ledger.Receipt{}, dErrors.New(dErrors.CodeUnauthorized, "caller identity is required")
	}
	if s.gate.IsAdministrator(caller) {
		return nil, ledger.Receipt{}, dErrors.New(dErrors.CodeAlreadyRegistered, "administrators cannot request a role")
	}
	p, err := models.NewParticipant(caller, role, requestcontext.Now(ctx))
	if err != nil {
		return nil, ledger.Receipt{}, err
	}

	var receipt ledger.Receipt
	err = s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		if _, err := tx.FindParticipant(ctx, caller); err == nil {
			return dErrors.New(dErrors.CodeAlreadyRegistered, "participant is already registered")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if err := tx.InsertParticipant(ctx, p); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeAlreadyRegistered, "participant is already registered")
			}
			return err
		}
		var err error
		receipt, err = ledger.Record(ctx, tx, ledger.EventParticipantRegistered,
			ledger.ParticipantSubject(caller), caller, p, p.CreatedAt)
		return err
	})
	if err != nil {
		return nil, ledger.Receipt{}, dErrors.Ensure(err, dErrors.CodeInternal, "failed to register participant")
	}

	s.logAudit(ctx, string(ledger.EventParticipantRegistered),
		"participant", caller,
		"participant_id", p.ID,
		"role", p.Role,
		"seq", receipt.Seq)
	return p, receipt, nil
}

// SetStatus changes a participant's status. Only administrators may call it;
// any status may follow any other.
func (s *Service) SetStatus(ctx context.Context, caller, identity domain.Address, status models.Status) (_ *models.Participant, _ ledger.Receipt, err error) {
	ctx, span := tracing.Start(ctx, "registry.SetStatus",
		attribute.String("caller", caller.String()),
		attribute.String("identity", identity.String()),
		attribute.String("status", status.String()))
	defer func() { tracing.End(span, err) }()

	if !status.Valid() {
		return nil, ledger.Receipt{}, dErrors.New(dErrors.CodeInvalidInput, "unknown participant status")
	}

	var (
		p        *models.Participant
		previous models.Status
		receipt  ledger.Receipt
	)
	err = s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		if err := s.gate.Authorize(ctx, tx, caller, access.Administrator); err != nil {
			return err
		}
		var err error
		p, err = tx.FindParticipantForUpdate(ctx, identity)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "participant not found")
			}
			return err
		}
		previous = p.Status
		p.ApplyStatus(status, requestcontext.Now(ctx))
		if err := tx.UpdateParticipant(ctx, p); err != nil {
			return err
		}
		receipt, err = ledger.Record(ctx, tx, ledger.EventParticipantStatusChanged,
			ledger.ParticipantSubject(identity), caller, statusChange{Participant: p, Previous: previous}, p.UpdatedAt)
		return err
	})
	if err != nil {
		return nil, ledger.Receipt{}, dErrors.Ensure(err, dErrors.CodeInternal, "failed to update participant status")
	}

	s.logAudit(ctx, string(ledger.EventParticipantStatusChanged),
		"participant", identity,
		"admin", caller,
		"from", previous.String(),
		"to", status.String(),
		"seq", receipt.Seq)
	return p, receipt, nil
}

type statusChange struct {
	*models.Participant
	Previous models.Status `json:"previous_status"`
}

// IsApproved reports whether identity may act as an approved participant.
func (s *Service) IsApproved(ctx context.Context, identity domain.Address) (bool, error) {
	var ok bool
	err := s.store.View(ctx, func(r ledger.Reader) error {
		var err error
		ok, err = s.gate.IsApproved(ctx, r, identity)
		return err
	})
	if err != nil {
		return false, dErrors.Ensure(err, dErrors.CodeInternal, "failed to read participant")
	}
	return ok, nil
}

// Get returns the registry record of identity. Administrators without a
// record are not found.
func (s *Service) Get(ctx context.Context, identity domain.Address) (*models.Participant, error) {
	var p *models.Participant
	err := s.store.View(ctx, func(r ledger.Reader) error {
		var err error
		p, err = r.FindParticipant(ctx, identity)
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Ensure(err, dErrors.CodeInternal, "failed to read participant")
	}
	return p, nil
}

func (s *Service) IsAdministrator(identity domain.Address) bool {
	return s.gate.IsAdministrator(identity)
}

// IsRegistered reports whether identity has a registry record, whatever its status.
func (s *Service) IsRegistered(ctx context.Context, identity domain.Address) (bool, error) {
	_, err := s.Get(ctx, identity)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns participants ordered by id.
func (s *Service) List(ctx context.Context, filter models.Filter) ([]*models.Participant, error) {
	var out []*models.Participant
	err := s.store.View(ctx, func(r ledger.Reader) error {
		var err error
		out, err = r.ListParticipants(ctx, filter)
		return err
	})
	if err != nil {
		return nil, dErrors.Ensure(err, dErrors.CodeInternal, "failed to list participants")
	}
	return out, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}
