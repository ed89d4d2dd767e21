// Package service implements the two-phase transfer workflow: a sender
// proposes, the recipient accepts or rejects, and acceptance moves balance
// atomically with the status change.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"supplyledger/internal/access"
	"supplyledger/internal/ledger"
	"supplyledger/internal/platform/tracing"
	"supplyledger/internal/transfer/metrics"
	"supplyledger/internal/transfer/models"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/platform/sentinel"
	"supplyledger/pkg/requestcontext"
)

// BalanceMover moves asset balance inside an existing unit of work.
type BalanceMover interface {
	MoveBalance(ctx context.Context, tx ledger.Tx, id domain.AssetID, from, to domain.Address, amount int64) error
}

type Service struct {
	store   ledger.Store
	gate    *access.Gate
	assets  BalanceMover
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store ledger.Store, gate *access.Gate, assets BalanceMover, opts ...Option) *Service {
	s := &Service{store: store, gate: gate, assets: assets}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Propose records a Pending transfer from sender. No balance moves and none
// is reserved; the sender's balance is checked again on acceptance.
func (s *Service) Propose(ctx context.Context, sender domain.Address, req models.ProposeRequest) (_ *models.Transfer, _ ledger.Receipt, err error) {
	ctx, span := tracing.Start(ctx, "transfer.Propose",
		attribute.String("sender", sender.String()),
		attribute.String("recipient", req.Recipient.String()),
		attribute.Int64("asset_id", int64(req.AssetID)),
		attribute.Int64("amount", req.Amount))
	defer func() { tracing.End(span, err) }()

	var (
		t       *models.Transfer
		receipt ledger.Receipt
	)
	err = s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		if err := s.gate.Authorize(ctx, tx, sender, access.ApprovedParticipant); err != nil {
			return err
		}
		if req.Amount <= 0 {
			return dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
		}
		if _, err := tx.FindAsset(ctx, req.AssetID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "asset not found")
			}
			return err
		}
		balance, err := tx.Balance(ctx, req.AssetID, sender)
		if err != nil {
			return err
		}
		if balance < req.Amount {
			return dErrors.New(dErrors.CodeInsufficientBalance, "sender balance is below the transfer amount")
		}
		if req.Recipient == sender {
			return dErrors.New(dErrors.CodeSelfTransfer, "recipient must differ from sender")
		}
		if req.Recipient.IsZero() {
			return dErrors.New(dErrors.CodeRecipientNotApproved, "recipient is required")
		}
		approved, err := s.gate.IsApproved(ctx, tx, req.Recipient)
		if err != nil {
			return err
		}
		if !approved {
			return dErrors.New(dErrors.CodeRecipientNotApproved, "recipient is not an approved participant")
		}

		t = &models.Transfer{
			AssetID:   req.AssetID,
			From:      sender,
			To:        req.Recipient,
			Amount:    req.Amount,
			Status:    models.StatusPending,
			CreatedAt: requestcontext.Now(ctx),
		}
		if err := tx.InsertTransfer(ctx, t); err != nil {
			return err
		}
		receipt, err = ledger.Record(ctx, tx, ledger.EventTransferProposed,
			ledger.TransferSubject(t.ID), sender, t, t.CreatedAt)
		return err
	})
	if err != nil {
		return nil, ledger.Receipt{}, dErrors.Ensure(err, dErrors.CodeInternal, "failed to propose transfer")
	}

	if s.metrics != nil {
		s.metrics.IncrementProposed()
	}
	s.logAudit(ctx, string(ledger.EventTransferProposed),
		"transfer_id", t.ID,
		"asset_id", t.AssetID,
		"from", t.From,
		"to", t.To,
		"amount", t.Amount,
		"seq", receipt.Seq)
	return t, receipt, nil
}

// Accept settles a Pending transfer addressed to caller. If the sender no
// longer holds enough balance the call fails and the transfer stays Pending.
func (s *Service) Accept(ctx context.Context, caller domain.Address, id domain.TransferID) (*models.Transfer, ledger.Receipt, error) {
	return s.resolve(ctx, caller, id, models.StatusAccepted)
}

// Reject closes a Pending transfer addressed to caller without moving balance.
func (s *Service) Reject(ctx context.Context, caller domain.Address, id domain.TransferID) (*models.Transfer, ledger.Receipt, error) {
	return s.resolve(ctx, caller, id, models.StatusRejected)
}

func (s *Service) resolve(ctx context.Context, caller domain.Address, id domain.TransferID, outcome models.Status) (_ *models.Transfer, _ ledger.Receipt, err error) {
	start := time.Now()
	label := outcome.String()
	ctx, span := tracing.Start(ctx, "transfer."+label,
		attribute.String("caller", caller.String()),
		attribute.Int64("transfer_id", int64(id)))
	defer func() { tracing.End(span, err) }()

	kind := ledger.EventTransferRejected
	if outcome == models.StatusAccepted {
		kind = ledger.EventTransferAccepted
	}

	var (
		t       *models.Transfer
		receipt ledger.Receipt
	)
	err = s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		if err := s.gate.Authorize(ctx, tx, caller, access.Any); err != nil {
			return err
		}
		var err error
		t, err = tx.FindTransfer(ctx, id)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "transfer not found")
			}
			return err
		}
		if t.To != caller {
			return dErrors.New(dErrors.CodeUnauthorized, "only the recipient may resolve a transfer")
		}
		if err := t.CanResolve(); err != nil {
			return err
		}
		if outcome == models.StatusAccepted {
			if err := s.assets.MoveBalance(ctx, tx, t.AssetID, t.From, t.To, t.Amount); err != nil {
				return err
			}
		}
		t.ApplyResolution(outcome, requestcontext.Now(ctx))
		if err := tx.UpdateTransfer(ctx, t); err != nil {
			return err
		}
		receipt, err = ledger.Record(ctx, tx, kind, ledger.TransferSubject(t.ID), caller, t, *t.ResolvedAt)
		return err
	})
	if err != nil {
		if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeAlreadyResolved) {
			s.metrics.IncrementResolveConflict()
		}
		return nil, ledger.Receipt{}, dErrors.Ensure(err, dErrors.CodeInternal, "failed to resolve transfer")
	}

	if s.metrics != nil {
		settled := int64(0)
		if outcome == models.StatusAccepted {
			settled = t.Amount
		}
		s.metrics.RecordResolved(label, settled)
		s.metrics.ObserveResolve(label, start)
	}
	s.logAudit(ctx, string(kind),
		"transfer_id", t.ID,
		"asset_id", t.AssetID,
		"from", t.From,
		"to", t.To,
		"amount", t.Amount,
		"seq", receipt.Seq)
	return t, receipt, nil
}

func (s *Service) Get(ctx context.Context, id domain.TransferID) (*models.Transfer, error) {
	var t *models.Transfer
	err := s.store.View(ctx, func(r ledger.Reader) error {
		var err error
		t, err = r.FindTransfer(ctx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "transfer not found")
		}
		return nil, dErrors.Ensure(err, dErrors.CodeInternal, "failed to read transfer")
	}
	return t, nil
}

// ListForParticipant returns, ascending, every transfer identity sent or
// received, whatever its status.
func (s *Service) ListForParticipant(ctx context.Context, identity domain.Address) ([]domain.TransferID, error) {
	var ids []domain.TransferID
	err := s.store.View(ctx, func(r ledger.Reader) error {
		var err error
		ids, err = r.TransfersOf(ctx, identity)
		return err
	})
	if err != nil {
		return nil, dErrors.Ensure(err, dErrors.CodeInternal, "failed to list transfers")
	}
	return ids, nil
}

// ListPendingIncoming returns the Pending transfers awaiting identity.
func (s *Service) ListPendingIncoming(ctx context.Context, identity domain.Address) ([]*models.Transfer, error) {
	var out []*models.Transfer
	err := s.store.View(ctx, func(r ledger.Reader) error {
		var err error
		out, err = r.PendingIncoming(ctx, identity)
		return err
	})
	if err != nil {
		return nil, dErrors.Ensure(err, dErrors.CodeInternal, "failed to list pending transfers")
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
