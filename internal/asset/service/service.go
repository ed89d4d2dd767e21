// Package service implements the asset ledger: fixed-supply asset creation,
// balance queries, provenance, and the balance move used by accepted
// transfers.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"supplyledger/internal/access"
	"supplyledger/internal/asset/metrics"
	"supplyledger/internal/asset/models"
	"supplyledger/internal/ledger"
	"supplyledger/internal/platform/tracing"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/platform/sentinel"
	"supplyledger/pkg/requestcontext"
)

type Service struct {
	store   ledger.Store
	gate    *access.Gate
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

func New(store ledger.Store, gate *access.Gate, opts ...Option) *Service {
	s := &Service{store: store, gate: gate}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAsset mints a new asset and credits its whole supply to creator.
func (s *Service) CreateAsset(ctx context.Context, creator domain.Address, req models.CreateRequest) (_ *models.Asset, _ ledger.Receipt, err error) {
	start := time.Now()
	ctx, span := tracing.Start(ctx, "asset.CreateAsset",
		attribute.String("creator", creator.String()),
		attribute.Int64("total_supply", req.TotalSupply))
	defer func() { tracing.End(span, err) }()

	req.Normalize()

	var (
		asset   *models.Asset
		receipt ledger.Receipt
	)
	err = s.store.RunInTx(ctx, func(tx ledger.Tx) error {
		if err := s.gate.Authorize(ctx, tx, creator, access.ApprovedParticipant); err != nil {
			return err
		}
		if req.TotalSupply <= 0 {
			return dErrors.New(dErrors.CodeInvalidSupply, "total supply must be positive")
		}
		if err := req.Validate(); err != nil {
			return err
		}
		if !req.ParentID.IsZero() {
			if _, err := tx.FindAsset(ctx, req.ParentID); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					return dErrors.New(dErrors.CodeParentNotFound, "parent asset not found")
				}
				return err
			}
		}

		asset = &models.Asset{
			Creator:     creator,
			Name:        req.Name,
			TotalSupply: req.TotalSupply,
			Features:    req.Features,
			ParentID:    req.ParentID,
			CreatedAt:   requestcontext.Now(ctx),
		}
		if err := tx.InsertAsset(ctx, asset); err != nil {
			return err
		}
		if err := tx.Credit(ctx, asset.ID, creator, asset.TotalSupply); err != nil {
			return err
		}
		var err error
		receipt, err = ledger.Record(ctx, tx, ledger.EventAssetCreated,
			ledger.AssetSubject(asset.ID), creator, asset, asset.CreatedAt)
		return err
	})
	if err != nil {
		return nil, ledger.Receipt{}, dErrors.Ensure(err, dErrors.CodeInternal, "failed to create asset")
	}

	if s.metrics != nil {
		s.metrics.RecordAssetCreated(asset.TotalSupply)
		s.metrics.ObserveCreateAsset(start)
	}
	s.logAudit(ctx, string(ledger.EventAssetCreated),
		"asset_id", asset.ID,
		"creator", creator,
		"total_supply", asset.TotalSupply,
		"parent_id", asset.ParentID,
		"seq", receipt.Seq)
	return asset, receipt, nil
}

func (s *Service) GetAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error) {
	var asset *models.Asset
	err := s.store.View(ctx, func(r ledger.Reader) error {
		var err error
		asset, err = findAsset(ctx, r, id)
		return err
	})
	if err != nil {
		return nil, dErrors.Ensure(err, dErrors.CodeInternal, "failed to read asset")
	}
	return asset, nil
}

// GetBalance returns holder's balance of an existing asset; holders without
// an entry hold 0.
func (s *Service) GetBalance(ctx context.Context, id domain.AssetID, holder domain.Address) (int64, error) {
	var balance int64
	err := s.store.View(ctx, func(r ledger.Reader) error {
		if _, err := findAsset(ctx, r, id); err != nil {
			return err
		}
		var err error
		balance, err = r.Balance(ctx, id, holder)
		return err
	})
	if err != nil {
		return 0, dErrors.Ensure(err, dErrors.CodeInternal, "failed to read balance")
	}
	return balance, nil
}

// Holdings returns the nonzero balances of an asset ordered by holder.
func (s *Service) Holdings(ctx context.Context, id domain.AssetID) ([]models.Holding, error) {
	var out []models.Holding
	err := s.store.View(ctx, func(r ledger.Reader) error {
		if _, err := findAsset(ctx, r, id); err != nil {
			return err
		}
		var err error
		out, err = r.Holdings(ctx, id)
		return err
	})
	if err != nil {
		return nil, dErrors.Ensure(err, dErrors.CodeInternal, "failed to read holdings")
	}
	return out, nil
}

// ListAssetsHeldBy returns, ascending, the assets holder has a nonzero
// balance of or created.
func (s *Service) ListAssetsHeldBy(ctx context.Context, holder domain.Address) ([]domain.AssetID, error) {
	var ids []domain.AssetID
	err := s.store.View(ctx, func(r ledger.Reader) error {
		var err error
		ids, err = r.AssetsHeldBy(ctx, holder)
		return err
	})
	if err != nil {
		return nil, dErrors.Ensure(err, dErrors.CodeInternal, "failed to list assets")
	}
	return ids, nil
}

// Lineage returns the asset followed by its ancestors, root last.
func (s *Service) Lineage(ctx context.Context, id domain.AssetID) ([]*models.Asset, error) {
	var chain []*models.Asset
	err := s.store.View(ctx, func(r ledger.Reader) error {
		for next := id; ; {
			a, err := findAsset(ctx, r, next)
			if err != nil {
				return err
			}
			chain = append(chain, a)
			// parents always predate children, so the walk terminates
			if !a.HasParent() || a.ParentID >= a.ID {
				return nil
			}
			next = a.ParentID
		}
	})
	if err != nil {
		return nil, dErrors.Ensure(err, dErrors.CodeInternal, "failed to read lineage")
	}
	return chain, nil
}

// MoveBalance debits from and credits to inside the caller's unit of work.
// It is the only way balances change after creation and is reachable only
// through transfer acceptance.
func (s *Service) MoveBalance(ctx context.Context, tx ledger.Tx, id domain.AssetID, from, to domain.Address, amount int64) error {
	if amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidAmount, "amount must be positive")
	}
	if _, err := findAsset(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.LockBalances(ctx, id, from, to); err != nil {
		return err
	}
	if err := tx.Debit(ctx, id, from, amount); err != nil {
		if errors.Is(err, sentinel.ErrInsufficient) {
			return dErrors.New(dErrors.CodeInsufficientBalance, "sender balance is below the transfer amount")
		}
		return err
	}
	return tx.Credit(ctx, id, to, amount)
}

func findAsset(ctx context.Context, r ledger.Reader, id domain.AssetID) (*models.Asset, error) {
	a, err := r.FindAsset(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "asset not found")
		}
		return nil, err
	}
	return a, nil
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
