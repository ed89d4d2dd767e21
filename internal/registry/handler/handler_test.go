package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"supplyledger/internal/ledger"
	"supplyledger/internal/registry/handler/mocks"
	"supplyledger/internal/registry/models"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

var (
	admin = domain.MustParseAddress("0x00000000000000000000000000000000000000ad")
	alice = domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
)

type RegistryHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestRegistryHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistryHandlerSuite))
}

func (s *RegistryHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func (s *RegistryHandlerSuite) TestRequestRole() {
	s.Run("returns the participant and receipt", func() {
		now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		s.service.EXPECT().RequestRole(gomock.Any(), alice, "Producer").Return(
			&models.Participant{ID: 1, Address: alice, Role: "Producer", Status: models.StatusPending, CreatedAt: now, UpdatedAt: now},
			ledger.Receipt{Seq: 7, Kind: ledger.EventParticipantRegistered, At: now},
			nil,
		)

		req := testutil.WithCaller(testutil.NewJSONRequest(s.T(), http.MethodPost, "/participants", map[string]string{"role": "Producer"}), alice.String())
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[struct {
			Participant map[string]any `json:"participant"`
			Receipt     map[string]any `json:"receipt"`
		}](s.T(), rr)
		s.Equal("Pending", resp.Participant["status"])
		s.Equal(alice.String(), resp.Participant["address"])
		s.Equal(float64(7), resp.Receipt["seq"])
	})

	s.Run("maps already registered to conflict", func() {
		s.service.EXPECT().RequestRole(gomock.Any(), alice, "Producer").Return(
			nil, ledger.Receipt{}, dErrors.New(dErrors.CodeAlreadyRegistered, "participant is already registered"))

		req := testutil.WithCaller(testutil.NewJSONRequest(s.T(), http.MethodPost, "/participants", map[string]string{"role": "Producer"}), alice.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "already_registered")
	})

	s.Run("rejects unknown fields", func() {
		req := testutil.WithCaller(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/participants", `{"role":"Producer","admin":true}`), alice.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}

func (s *RegistryHandlerSuite) TestSetStatus() {
	s.Run("accepts status by name", func() {
		s.service.EXPECT().SetStatus(gomock.Any(), admin, alice, models.StatusApproved).Return(
			&models.Participant{ID: 1, Address: alice, Status: models.StatusApproved}, ledger.Receipt{Seq: 2}, nil)

		req := testutil.WithCaller(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/participants/"+alice.String()+"/status", `{"status":"Approved"}`), admin.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("accepts the numeric status code", func() {
		s.service.EXPECT().SetStatus(gomock.Any(), admin, alice, models.StatusCanceled).Return(
			&models.Participant{ID: 1, Address: alice, Status: models.StatusCanceled}, ledger.Receipt{Seq: 3}, nil)

		req := testutil.WithCaller(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/participants/"+alice.String()+"/status", `{"status":3}`), admin.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("non-administrator is forbidden", func() {
		s.service.EXPECT().SetStatus(gomock.Any(), alice, alice, models.StatusApproved).Return(
			nil, ledger.Receipt{}, dErrors.New(dErrors.CodeUnauthorized, "administrator role required"))

		req := testutil.WithCaller(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/participants/"+alice.String()+"/status", `{"status":"Approved"}`), alice.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "unauthorized")
	})

	s.Run("missing status is a validation error", func() {
		req := testutil.WithCaller(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/participants/"+alice.String()+"/status", `{}`), admin.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed address is invalid input", func() {
		req := testutil.WithCaller(testutil.NewRequestWithBody(s.T(), http.MethodPut, "/participants/0x123/status", `{"status":"Approved"}`), admin.String())
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

func (s *RegistryHandlerSuite) TestQueries() {
	s.Run("lists approved participants", func() {
		approved := models.StatusApproved
		s.service.EXPECT().List(gomock.Any(), models.Filter{Status: &approved}).Return(
			[]*models.Participant{{ID: 2, Address: alice, Status: models.StatusApproved}}, nil)

		rr := testutil.DoRequest(s.router, testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/participants?status=approved"), admin.String()))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONHasKey(s.T(), rr, "participants")
	})

	s.Run("get of unknown participant is not found", func() {
		s.service.EXPECT().Get(gomock.Any(), alice).Return(nil, dErrors.New(dErrors.CodeNotFound, "participant not found"))

		rr := testutil.DoRequest(s.router, testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/participants/"+alice.String()), admin.String()))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("administrator lookup", func() {
		s.service.EXPECT().IsAdministrator(admin).Return(true)

		rr := testutil.DoRequest(s.router, testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/administrators/"+admin.String()), alice.String()))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "is_administrator", true)
	})

	s.Run("standing combines registry facts", func() {
		s.service.EXPECT().IsRegistered(gomock.Any(), alice).Return(true, nil)
		s.service.EXPECT().IsApproved(gomock.Any(), alice).Return(false, nil)
		s.service.EXPECT().IsAdministrator(alice).Return(false)

		rr := testutil.DoRequest(s.router, testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/identities/"+alice.String()), alice.String()))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[standingResponse](s.T(), rr)
		s.True(resp.Registered)
		s.False(resp.Approved)
		s.False(resp.Administrator)
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().Get(gomock.Any(), alice).Return(nil, dErrors.New(dErrors.CodeInternal, "connection refused"))

		rr := testutil.DoRequest(s.router, testutil.WithCaller(testutil.NewRequest(s.T(), http.MethodGet, "/participants/"+alice.String()), admin.String()))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.NotContains(body, "error_description")
	})
}
