package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"supplyledger/internal/access"
	assethandler "supplyledger/internal/asset/handler"
	assetmetrics "supplyledger/internal/asset/metrics"
	assetservice "supplyledger/internal/asset/service"
	"supplyledger/internal/idempotency"
	jwttoken "supplyledger/internal/jwt_token"
	"supplyledger/internal/ledger"
	"supplyledger/internal/ledger/memory"
	"supplyledger/internal/platform/metrics"
	registryhandler "supplyledger/internal/registry/handler"
	registryservice "supplyledger/internal/registry/service"
	transferhandler "supplyledger/internal/transfer/handler"
	transfermetrics "supplyledger/internal/transfer/metrics"
	transferservice "supplyledger/internal/transfer/service"
	"supplyledger/pkg/domain"
	"supplyledger/pkg/testutil"
)

var (
	admin    = domain.MustParseAddress("0x00000000000000000000000000000000000000ad")
	producer = domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	retailer = domain.MustParseAddress("0x00000000000000000000000000000000000000b2")
)

// RouterSuite drives the full stack over the in-memory ledger.
type RouterSuite struct {
	suite.Suite
	router http.Handler
	tokens *jwttoken.JWTService
	checks []HealthCheck
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	store := memory.New()
	gate := access.NewGate(admin)

	registry := registryservice.New(store, gate, registryservice.WithLogger(logger))
	assets := assetservice.New(store, gate,
		assetservice.WithLogger(logger),
		assetservice.WithMetrics(assetmetrics.New(reg)),
	)
	transfers := transferservice.New(store, gate, assets,
		transferservice.WithLogger(logger),
		transferservice.WithMetrics(transfermetrics.New(reg)),
	)

	s.tokens = jwttoken.NewJWTService("router-test-key", "supplyledger", "")
	s.router = NewRouter(Dependencies{
		Logger:      logger,
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		Validator:   jwttoken.NewJWTServiceAdapter(s.tokens),
		Idempotency: idempotency.New(idempotency.NewMemoryStore(), logger),
		Modules: []Registrar{
			registryhandler.New(registry, logger),
			assethandler.New(assets, logger),
			transferhandler.New(transfers, logger),
		},
		Events: ledger.NewFeed(store),
		Checks: s.checks,
	})
}

func (s *RouterSuite) do(method, path string, caller domain.Address, body any, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	if !caller.IsZero() {
		token, err := s.tokens.GenerateCallerToken(caller, time.Hour)
		s.Require().NoError(err)
		req = testutil.WithBearer(req, token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return testutil.DoRequest(s.router, req)
}

func (s *RouterSuite) approve(addr domain.Address, role string) {
	rr := s.do(http.MethodPost, "/v1/participants", addr, map[string]string{"role": role})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	rr = s.do(http.MethodPut, "/v1/participants/"+addr.String()+"/status", admin, map[string]string{"status": "Approved"})
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *RouterSuite) TestRequiresToken() {
	rr := s.do(http.MethodGet, "/v1/participants", "", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/v1/participants")
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *RouterSuite) TestSettlementFlow() {
	s.approve(producer, "Producer")
	s.approve(retailer, "Retailer")

	create := map[string]any{"name": "Oil 1L", "total_supply": 100, "features": `{"origin":"farm"}`, "parent_id": 0}
	rr := s.do(http.MethodPost, "/v1/assets", producer, create, idempotency.HeaderKey, "create-oil")
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)

	retry := s.do(http.MethodPost, "/v1/assets", producer, create, idempotency.HeaderKey, "create-oil")
	testutil.AssertStatus(s.T(), retry, http.StatusCreated)
	s.Equal("true", retry.Header().Get(idempotency.HeaderReplayed))

	held := s.do(http.MethodGet, "/v1/holders/"+producer.String()+"/assets", producer, nil)
	testutil.AssertStatus(s.T(), held, http.StatusOK)
	heldResp := testutil.UnmarshalResponse[struct {
		AssetIDs []domain.AssetID `json:"asset_ids"`
	}](s.T(), held)
	s.Equal([]domain.AssetID{1}, heldResp.AssetIDs, "retry must not create a second asset")

	rr = s.do(http.MethodPost, "/v1/transfers", producer, map[string]any{"recipient": retailer, "asset_id": 1, "amount": 40})
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	proposed := testutil.AssertReceipt(s.T(), rr, string(ledger.EventTransferProposed))

	rr = s.do(http.MethodPost, "/v1/transfers/1/accept", retailer, nil)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	accepted := testutil.AssertReceipt(s.T(), rr, string(ledger.EventTransferAccepted))
	s.Equal(proposed+1, accepted)
	rr = s.do(http.MethodPost, "/v1/transfers/1/accept", retailer, nil)
	testutil.AssertStatus(s.T(), rr, http.StatusConflict)

	for holder, want := range map[domain.Address]int64{producer: 60, retailer: 40} {
		rr = s.do(http.MethodGet, "/v1/assets/1/balances/"+holder.String(), retailer, nil)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		bal := testutil.UnmarshalResponse[struct {
			Balance int64 `json:"balance"`
		}](s.T(), rr)
		s.Equal(want, bal.Balance, holder.String())
	}

	rr = s.do(http.MethodGet, "/v1/events?after=0&limit=100", retailer, nil)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	feed := testutil.UnmarshalResponse[struct {
		Events []ledger.Event `json:"events"`
		Next   uint64         `json:"next"`
	}](s.T(), rr)
	// two registrations, two approvals, one asset, one proposal, one accept
	s.Len(feed.Events, 7)
	s.Equal(uint64(7), feed.Next)
	s.Equal(ledger.EventTransferAccepted, feed.Events[6].Kind)
}

func (s *RouterSuite) TestEventsRejectsBadCursor() {
	rr := s.do(http.MethodGet, "/v1/events?after=-1", producer, nil)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	rr = s.do(http.MethodGet, "/v1/events?limit=many", producer, nil)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *RouterSuite) TestHealthAndMetricsAreUnauthenticated() {
	rr := s.do(http.MethodGet, "/healthz", "", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	s.do(http.MethodGet, "/v1/participants", producer, nil)
	rr = s.do(http.MethodGet, "/metrics", "", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.True(strings.Contains(rr.Body.String(), "supplyledger_http_request_duration_seconds"))
}

func (s *RouterSuite) TestFailingHealthCheck() {
	s.checks = []HealthCheck{
		{Name: "postgres", Check: func(context.Context) error { return nil }},
		{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }},
	}
	s.SetupTest()
	defer func() { s.checks = nil }()

	rr := s.do(http.MethodGet, "/healthz", "", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
	resp := testutil.UnmarshalResponse[healthResponse](s.T(), rr)
	s.Equal("degraded", resp.Status)
	s.Equal("ok", resp.Checks["postgres"])
	s.Equal("unavailable", resp.Checks["redis"])
}
