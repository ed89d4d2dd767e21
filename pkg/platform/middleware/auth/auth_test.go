package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"supplyledger/pkg/domain"
	"supplyledger/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*JWTClaims, error) {
	return v.claims, v.err
}

func TestRequireAuth(t *testing.T) {
	caller := domain.Address("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		header     string
		validator  stubValidator
		wantStatus int
		wantCaller domain.Address
	}{
		{"missing header", "", stubValidator{}, http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", stubValidator{}, http.StatusUnauthorized, ""},
		{"empty bearer", "Bearer ", stubValidator{}, http.StatusUnauthorized, ""},
		{"invalid token", "Bearer abc", stubValidator{err: errors.New("bad signature")}, http.StatusUnauthorized, ""},
		{"valid token", "Bearer abc", stubValidator{claims: &JWTClaims{Caller: caller}}, http.StatusOK, caller},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen domain.Address
			h := RequireAuth(tt.validator, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = requestcontext.Caller(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/v1/assets/1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantCaller, seen)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "unauthorized", extractError(t, rr))
			}
		})
	}
}

func extractError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body.Error
}
