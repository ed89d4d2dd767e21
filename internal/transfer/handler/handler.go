package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"supplyledger/internal/ledger"
	"supplyledger/internal/transfer/models"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/platform/httputil"
	"supplyledger/pkg/requestcontext"
)

// Service defines the transfer workflow operations exposed over HTTP.
type Service interface {
	Propose(ctx context.Context, sender domain.Address, req models.ProposeRequest) (*models.Transfer, ledger.Receipt, error)
	Accept(ctx context.Context, caller domain.Address, id domain.TransferID) (*models.Transfer, ledger.Receipt, error)
	Reject(ctx context.Context, caller domain.Address, id domain.TransferID) (*models.Transfer, ledger.Receipt, error)
	Get(ctx context.Context, id domain.TransferID) (*models.Transfer, error)
	ListForParticipant(ctx context.Context, identity domain.Address) ([]domain.TransferID, error)
	ListPendingIncoming(ctx context.Context, identity domain.Address) ([]*models.Transfer, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/transfers", h.handlePropose)
	r.Get("/transfers/{id}", h.handleGet)
	r.Post("/transfers/{id}/accept", h.handleAccept)
	r.Post("/transfers/{id}/reject", h.handleReject)
	r.Get("/holders/{address}/transfers", h.handleListFor)
}

type transferResponse struct {
	Transfer *models.Transfer `json:"transfer"`
	Receipt  *ledger.Receipt  `json:"receipt,omitempty"`
}

type transferIDsResponse struct {
	Participant domain.Address      `json:"participant"`
	TransferIDs []domain.TransferID `json:"transfer_ids"`
}

type pendingResponse struct {
	Participant domain.Address     `json:"participant"`
	Transfers   []*models.Transfer `json:"transfers"`
}

func (h *Handler) handlePropose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.ProposeRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	t, receipt, err := h.service.Propose(ctx, requestcontext.Caller(ctx), req)
	if err != nil {
		h.writeServiceError(ctx, w, "propose transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, transferResponse{Transfer: t, Receipt: &receipt})
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "accept transfer", h.service.Accept)
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	h.resolve(w, r, "reject transfer", h.service.Reject)
}

type resolveFunc func(ctx context.Context, caller domain.Address, id domain.TransferID) (*models.Transfer, ledger.Receipt, error)

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request, op string, fn resolveFunc) {
	ctx := r.Context()
	id, ok := transferIDParam(w, r)
	if !ok {
		return
	}
	t, receipt, err := fn(ctx, requestcontext.Caller(ctx), id)
	if err != nil {
		h.writeServiceError(ctx, w, op, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transferResponse{Transfer: t, Receipt: &receipt})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := transferIDParam(w, r)
	if !ok {
		return
	}
	t, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeServiceError(ctx, w, "get transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, transferResponse{Transfer: t})
}

func (h *Handler) handleListFor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	pendingOnly := false
	if raw := r.URL.Query().Get("pending_incoming"); raw != "" {
		pendingOnly, err = strconv.ParseBool(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "pending_incoming must be a boolean"))
			return
		}
	}

	if pendingOnly {
		transfers, err := h.service.ListPendingIncoming(ctx, identity)
		if err != nil {
			h.writeServiceError(ctx, w, "list pending transfers", err)
			return
		}
		if transfers == nil {
			transfers = []*models.Transfer{}
		}
		httputil.WriteJSON(w, http.StatusOK, pendingResponse{Participant: identity, Transfers: transfers})
		return
	}

	ids, err := h.service.ListForParticipant(ctx, identity)
	if err != nil {
		h.writeServiceError(ctx, w, "list transfers", err)
		return
	}
	if ids == nil {
		ids = []domain.TransferID{}
	}
	httputil.WriteJSON(w, http.StatusOK, transferIDsResponse{Participant: identity, TransferIDs: ids})
}

func transferIDParam(w http.ResponseWriter, r *http.Request) (domain.TransferID, bool) {
	id, err := domain.ParseTransferID(chi.URLParam(r, "id"))
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
