package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"supplyledger/internal/ledger"
	"supplyledger/internal/registry/models"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/platform/httputil"
	"supplyledger/pkg/requestcontext"
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	RequestRole(ctx context.Context, caller domain.Address, role string) (*models.Participant, ledger.Receipt, error)
	SetStatus(ctx context.Context, caller, identity domain.Address, status models.Status) (*models.Participant, ledger.Receipt, error)
	IsApproved(ctx context.Context, identity domain.Address) (bool, error)
	Get(ctx context.Context, identity domain.Address) (*models.Participant, error)
	IsAdministrator(identity domain.Address) bool
	IsRegistered(ctx context.Context, identity domain.Address) (bool, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Participant, error)
}

// Handler serves participant registration and approval.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the registry routes. The router is expected to carry the
// caller authentication middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/participants", h.handleRequestRole)
	r.Get("/participants", h.handleList)
	r.Get("/participants/{address}", h.handleGet)
	r.Put("/participants/{address}/status", h.handleSetStatus)
	r.Get("/administrators/{address}", h.handleIsAdministrator)
	r.Get("/identities/{address}", h.handleStanding)
}

type requestRoleRequest struct {
	Role string `json:"role"`
}

type setStatusRequest struct {
	Status *models.Status `json:"status"`
}

type participantResponse struct {
	Participant *models.Participant `json:"participant"`
	Receipt     *ledger.Receipt     `json:"receipt,omitempty"`
}

type participantsResponse struct {
	Participants []*models.Participant `json:"participants"`
}

type administratorResponse struct {
	Address         domain.Address `json:"address"`
	IsAdministrator bool           `json:"is_administrator"`
}

type standingResponse struct {
	Address       domain.Address `json:"address"`
	Administrator bool           `json:"administrator"`
	Registered    bool           `json:"registered"`
	Approved      bool           `json:"approved"`
}

func (h *Handler) handleRequestRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := requestcontext.Caller(ctx)

	var req requestRoleRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid request role body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	p, receipt, err := h.service.RequestRole(ctx, caller, req.Role)
	if err != nil {
		h.writeServiceError(ctx, w, "request role", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, participantResponse{Participant: p, Receipt: &receipt})
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.addressParam(w, r)
	if !ok {
		return
	}

	var req setStatusRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.Status == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "status is required"))
		return
	}

	p, receipt, err := h.service.SetStatus(ctx, requestcontext.Caller(ctx), identity, *req.Status)
	if err != nil {
		h.writeServiceError(ctx, w, "set participant status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, participantResponse{Participant: p, Receipt: &receipt})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.addressParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(ctx, identity)
	if err != nil {
		h.writeServiceError(ctx, w, "get participant", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, participantResponse{Participant: p})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var filter models.Filter
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Status = &status
	}
	list, err := h.service.List(ctx, filter)
	if err != nil {
		h.writeServiceError(ctx, w, "list participants", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, participantsResponse{Participants: list})
}

func (h *Handler) handleIsAdministrator(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.addressParam(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, administratorResponse{
		Address:         identity,
		IsAdministrator: h.service.IsAdministrator(identity),
	})
}

func (h *Handler) handleStanding(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.addressParam(w, r)
	if !ok {
		return
	}
	registered, err := h.service.IsRegistered(ctx, identity)
	if err != nil {
		h.writeServiceError(ctx, w, "read registration", err)
		return
	}
	approved, err := h.service.IsApproved(ctx, identity)
	if err != nil {
		h.writeServiceError(ctx, w, "read approval", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, standingResponse{
		Address:       identity,
		Administrator: h.service.IsAdministrator(identity),
		Registered:    registered,
		Approved:      approved,
	})
}

func (h *Handler) addressParam(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	addr, err := domain.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return "", false
	}
	return addr, true
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
