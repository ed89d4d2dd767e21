package testutil

import (
	"context"
	"net/http"

	"supplyledger/pkg/domain"
	"supplyledger/pkg/requestcontext"
)

// WithCaller sets the authenticated caller on the request context.
// This simulates what the auth middleware does for a verified bearer token.
// If caller is not a valid address, the request is returned unchanged.
func WithCaller(req *http.Request, caller string) *http.Request {
	addr, err := domain.ParseAddress(caller)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithCaller(req.Context(), addr))
}

// WithRequestID sets a request id on the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
