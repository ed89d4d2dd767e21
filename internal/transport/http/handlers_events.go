package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"supplyledger/internal/ledger"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/platform/httputil"
	"supplyledger/pkg/requestcontext"
)

// EventReader pages through committed ledger events.
type EventReader interface {
	EventsAfter(ctx context.Context, after uint64, limit int) ([]ledger.Event, error)
}

type eventsHandler struct {
	events EventReader
	logger *slog.Logger
}

func newEventsHandler(events EventReader, logger *slog.Logger) *eventsHandler {
	return &eventsHandler{events: events, logger: logger}
}

func (h *eventsHandler) Register(r chi.Router) {
	r.Get("/events", h.handleList)
}

type eventsResponse struct {
	Events []ledger.Event `json:"events"`
	// Next is the cursor to pass as ?after= for the following page.
	Next uint64 `json:"next"`
}

func (h *eventsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var after uint64
	if raw := q.Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "after must be a non-negative integer"))
			return
		}
		after = v
	}
	var limit int
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
			return
		}
		limit = v
	}

	events, err := h.events.EventsAfter(ctx, after, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list events",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, dErrors.Ensure(err, dErrors.CodeInternal, "failed to list events"))
		return
	}
	if events == nil {
		events = []ledger.Event{}
	}
	next := after
	if n := len(events); n > 0 {
		next = events[n-1].Seq
	}
	httputil.WriteJSON(w, http.StatusOK, eventsResponse{Events: events, Next: next})
}
