package idempotency

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyledger/pkg/domain"
	"supplyledger/pkg/requestcontext"
)

const alice = domain.Address("0x00000000000000000000000000000000000000a1")

type unavailableStore struct{}

func (unavailableStore) Reserve(context.Context, string, string, time.Duration) (*Record, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (unavailableStore) Complete(context.Context, string, Record, time.Duration) error {
	return errors.New("connection refused")
}

func (unavailableStore) Release(context.Context, string) error {
	return errors.New("connection refused")
}

func newRouter(store Store, handler http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if caller := req.Header.Get("X-Test-Caller"); caller != "" {
				req = req.WithContext(requestcontext.WithCaller(req.Context(), domain.Address(caller)))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Use(New(store, slog.New(slog.NewTextHandler(io.Discard, nil))).Handler)
	r.Post("/v1/transfers", handler)
	r.Get("/v1/transfers", handler)
	return r
}

func send(t *testing.T, h http.Handler, method, key, caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/v1/transfers", strings.NewReader(body))
	if key != "" {
		req.Header.Set(HeaderKey, key)
	}
	if caller != "" {
		req.Header.Set("X-Test-Caller", caller)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestMiddleware(t *testing.T) {
	counting := func(calls *atomic.Int32, status int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = fmt.Fprintf(w, `{"call":%d}`, n)
		}
	}

	t.Run("retry replays first response", func(t *testing.T) {
		var calls atomic.Int32
		h := newRouter(NewMemoryStore(), counting(&calls, http.StatusCreated))

		first := send(t, h, http.MethodPost, "k1", alice.String(), `{"amount":5}`)
		second := send(t, h, http.MethodPost, "k1", alice.String(), `{"amount":5}`)

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, http.StatusCreated, second.Code)
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
		assert.Equal(t, "true", second.Header().Get(HeaderReplayed))
		assert.Empty(t, first.Header().Get(HeaderReplayed))
	})

	t.Run("client errors are replayed too", func(t *testing.T) {
		var calls atomic.Int32
		h := newRouter(NewMemoryStore(), counting(&calls, http.StatusUnprocessableEntity))

		send(t, h, http.MethodPost, "k1", alice.String(), `{}`)
		rr := send(t, h, http.MethodPost, "k1", alice.String(), `{}`)

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	})

	t.Run("server errors release the key", func(t *testing.T) {
		var calls atomic.Int32
		h := newRouter(NewMemoryStore(), counting(&calls, http.StatusServiceUnavailable))

		send(t, h, http.MethodPost, "k1", alice.String(), `{}`)
		send(t, h, http.MethodPost, "k1", alice.String(), `{}`)

		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("different body with same key is rejected", func(t *testing.T) {
		var calls atomic.Int32
		h := newRouter(NewMemoryStore(), counting(&calls, http.StatusCreated))

		send(t, h, http.MethodPost, "k1", alice.String(), `{"amount":5}`)
		rr := send(t, h, http.MethodPost, "k1", alice.String(), `{"amount":6}`)

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("keys are scoped per caller", func(t *testing.T) {
		var calls atomic.Int32
		h := newRouter(NewMemoryStore(), counting(&calls, http.StatusCreated))
		bob := "0x00000000000000000000000000000000000000b2"

		send(t, h, http.MethodPost, "k1", alice.String(), `{}`)
		rr := send(t, h, http.MethodPost, "k1", bob, `{}`)

		assert.Equal(t, int32(2), calls.Load())
		assert.Empty(t, rr.Header().Get(HeaderReplayed))
	})

	t.Run("requests without key or caller pass through", func(t *testing.T) {
		var calls atomic.Int32
		h := newRouter(NewMemoryStore(), counting(&calls, http.StatusCreated))

		send(t, h, http.MethodPost, "", alice.String(), `{}`)
		send(t, h, http.MethodPost, "", alice.String(), `{}`)
		send(t, h, http.MethodPost, "k1", "", `{}`)
		send(t, h, http.MethodPost, "k1", "", `{}`)
		send(t, h, http.MethodGet, "k2", alice.String(), ``)
		send(t, h, http.MethodGet, "k2", alice.String(), ``)

		assert.Equal(t, int32(6), calls.Load())
	})

	t.Run("in-flight request returns conflict", func(t *testing.T) {
		store := NewMemoryStore()
		release := make(chan struct{})
		started := make(chan struct{})
		h := newRouter(store, func(w http.ResponseWriter, r *http.Request) {
			close(started)
			<-release
			w.WriteHeader(http.StatusCreated)
		})

		done := make(chan struct{})
		go func() {
			defer close(done)
			send(t, h, http.MethodPost, "k1", alice.String(), `{}`)
		}()
		<-started

		rr := send(t, h, http.MethodPost, "k1", alice.String(), `{}`)
		assert.Equal(t, http.StatusConflict, rr.Code)

		close(release)
		<-done
	})

	t.Run("store failure processes the request", func(t *testing.T) {
		var calls atomic.Int32
		h := newRouter(unavailableStore{}, counting(&calls, http.StatusCreated))

		rr := send(t, h, http.MethodPost, "k1", alice.String(), `{}`)
		require.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("overlong key is rejected", func(t *testing.T) {
		var calls atomic.Int32
		h := newRouter(NewMemoryStore(), counting(&calls, http.StatusCreated))

		rr := send(t, h, http.MethodPost, strings.Repeat("k", maxKeyLength+1), alice.String(), `{}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, int32(0), calls.Load())
	})
}

func TestMiddlewareReleasesKeyOnPanic(t *testing.T) {
	store := NewMemoryStore()
	h := newRouter(store, func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	require.Panics(t, func() {
		send(t, h, http.MethodPost, "k1", alice.String(), `{}`)
	})
	_, ok, err := store.Reserve(t.Context(), alice.String()+":k1", "fp", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
