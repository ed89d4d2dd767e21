package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"supplyledger/internal/asset/models"
	"supplyledger/internal/ledger"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/platform/httputil"
	"supplyledger/pkg/requestcontext"
)

// Service defines the asset operations exposed over HTTP. Balance moves are
// deliberately absent: they only happen through transfer acceptance.
type Service interface {
	CreateAsset(ctx context.Context, creator domain.Address, req models.CreateRequest) (*models.Asset, ledger.Receipt, error)
	GetAsset(ctx context.Context, id domain.AssetID) (*models.Asset, error)
	GetBalance(ctx context.Context, id domain.AssetID, holder domain.Address) (int64, error)
	Holdings(ctx context.Context, id domain.AssetID) ([]models.Holding, error)
	ListAssetsHeldBy(ctx context.Context, holder domain.Address) ([]domain.AssetID, error)
	Lineage(ctx context.Context, id domain.AssetID) ([]*models.Asset, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/assets", h.handleCreate)
	r.Get("/assets/{id}", h.handleGet)
	r.Get("/assets/{id}/lineage", h.handleLineage)
	r.Get("/assets/{id}/balances", h.handleHoldings)
	r.Get("/assets/{id}/balances/{holder}", h.handleBalance)
	r.Get("/holders/{address}/assets", h.handleHeldBy)
}

type assetResponse struct {
	Asset   *models.Asset   `json:"asset"`
	Receipt *ledger.Receipt `json:"receipt,omitempty"`
}

type lineageResponse struct {
	Lineage []*models.Asset `json:"lineage"`
}

type balanceResponse struct {
	AssetID domain.AssetID `json:"asset_id"`
	Holder  domain.Address `json:"holder"`
	Balance int64          `json:"balance"`
}

type holdingsResponse struct {
	AssetID  domain.AssetID   `json:"asset_id"`
	Holdings []models.Holding `json:"holdings"`
}

type heldByResponse struct {
	Holder   domain.Address   `json:"holder"`
	AssetIDs []domain.AssetID `json:"asset_ids"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.CreateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	asset, receipt, err := h.service.CreateAsset(ctx, requestcontext.Caller(ctx), req)
	if err != nil {
		h.writeServiceError(ctx, w, "create asset", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, assetResponse{Asset: asset, Receipt: &receipt})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := assetIDParam(w, r)
	if !ok {
		return
	}
	asset, err := h.service.GetAsset(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get asset", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, assetResponse{Asset: asset})
}

func (h *Handler) handleLineage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := assetIDParam(w, r)
	if !ok {
		return
	}
	chain, err := h.service.Lineage(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get lineage", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, lineageResponse{Lineage: chain})
}

func (h *Handler) handleHoldings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := assetIDParam(w, r)
	if !ok {
		return
	}
	holdings, err := h.service.Holdings(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "list holdings", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, holdingsResponse{AssetID: id, Holdings: holdings})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := assetIDParam(w, r)
	if !ok {
		return
	}
	holder, err := domain.ParseAddress(chi.URLParam(r, "holder"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	balance, err := h.service.GetBalance(ctx, id, holder)
	if err != nil {
		h.writeServiceError(ctx, w, "get balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{AssetID: id, Holder: holder, Balance: balance})
}

func (h *Handler) handleHeldBy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	holder, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	ids, err := h.service.ListAssetsHeldBy(ctx, holder)
	if err != nil {
		h.writeServiceError(ctx, w, "list held assets", err)
		return
	}
	if ids == nil {
		ids = []domain.AssetID{}
	}
	httputil.WriteJSON(w, http.StatusOK, heldByResponse{Holder: holder, AssetIDs: ids})
}

func assetIDParam(w http.ResponseWriter, r *http.Request) (domain.AssetID, bool) {
	id, err := domain.ParseAssetID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}
