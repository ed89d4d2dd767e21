package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"time"

	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/platform/httputil"
	"supplyledger/pkg/requestcontext"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"

	maxKeyLength = 255
	maxBodyBytes = 1 << 20
)

type Middleware struct {
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*Middleware)

func WithTTL(ttl time.Duration) Option {
	return func(m *Middleware) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		ttl:    DefaultTTL,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler applies to mutating requests that carry an Idempotency-Key from an
// authenticated caller. Keys are scoped per caller. A retry with the same key
// and request replays the stored response; a retry while the first request is
// still running gets 409. Server errors are not stored so the client can try
// again.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderKey)
		if key == "" || !mutating(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		caller := requestcontext.Caller(ctx)
		if caller.IsZero() {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxKeyLength {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key is too long"))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		storeKey := caller.String() + ":" + key
		fp := fingerprint(r.Method, r.URL.Path, body)

		existing, reserved, err := m.store.Reserve(ctx, storeKey, fp, m.ttl)
		if err != nil {
			m.logger.WarnContext(ctx, "idempotency store unavailable, processing without replay protection",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}
		if !reserved {
			m.replay(w, r, existing, fp)
			return
		}

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		completed := false
		defer func() {
			if completed {
				return
			}
			// Handler panicked: free the key before the panic propagates.
			if err := m.store.Release(context.WithoutCancel(ctx), storeKey); err != nil {
				m.logger.ErrorContext(ctx, "failed to release idempotency key", "error", err)
			}
		}()

		next.ServeHTTP(rec, r)
		completed = true

		storeCtx := context.WithoutCancel(ctx)
		if rec.status >= http.StatusInternalServerError {
			if err := m.store.Release(storeCtx, storeKey); err != nil {
				m.logger.ErrorContext(ctx, "failed to release idempotency key", "error", err)
			}
			return
		}
		err = m.store.Complete(storeCtx, storeKey, Record{
			Fingerprint: fp,
			Status:      rec.status,
			ContentType: rec.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}, m.ttl)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to store idempotent response",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	})
}

func (m *Middleware) replay(w http.ResponseWriter, r *http.Request, rec *Record, fp string) {
	ctx := r.Context()
	switch {
	case rec.Fingerprint != fp:
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key was already used for a different request"))
	case rec.Pending():
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "a request with this Idempotency-Key is still in progress"))
	default:
		m.logger.DebugContext(ctx, "replaying idempotent response",
			"status", rec.Status,
			"request_id", requestcontext.RequestID(ctx),
		)
		if rec.ContentType != "" {
			w.Header().Set("Content-Type", rec.ContentType)
		}
		w.Header().Set(HeaderReplayed, "true")
		w.WriteHeader(rec.Status)
		_, _ = w.Write(rec.Body)
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func fingerprint(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// recorder copies the response while passing it through.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
