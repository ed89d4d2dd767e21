package service

import (
	"context"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"supplyledger/internal/access"
	"supplyledger/internal/asset/metrics"
	"supplyledger/internal/asset/models"
	"supplyledger/internal/ledger"
	"supplyledger/internal/ledger/ledgertest"
	"supplyledger/internal/ledger/memory"
	rmodels "supplyledger/internal/registry/models"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
)

var (
	admin    = domain.MustParseAddress("0x00000000000000000000000000000000000000ad")
	producer = domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	retailer = domain.MustParseAddress("0x00000000000000000000000000000000000000b2")
	pending  = domain.MustParseAddress("0x00000000000000000000000000000000000000c3")
)

type AssetServiceSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	metrics *metrics.Metrics
	service *Service
}

func TestAssetServiceSuite(t *testing.T) {
	suite.Run(t, new(AssetServiceSuite))
}

func (s *AssetServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store, access.NewGate(admin), WithMetrics(s.metrics))
	ledgertest.SeedParticipant(s.T(), s.store, producer, "Producer", rmodels.StatusApproved)
	ledgertest.SeedParticipant(s.T(), s.store, retailer, "Retailer", rmodels.StatusApproved)
	ledgertest.SeedParticipant(s.T(), s.store, pending, "Retailer", rmodels.StatusPending)
}

func (s *AssetServiceSuite) create(creator domain.Address, name string, supply int64, parent domain.AssetID) *models.Asset {
	a, _, err := s.service.CreateAsset(s.ctx, creator, models.CreateRequest{Name: name, TotalSupply: supply, Features: `{"grade":"A"}`, ParentID: parent})
	s.Require().NoError(err)
	return a
}

func (s *AssetServiceSuite) TestCreateAsset() {
	s.Run("mints the whole supply to the creator", func() {
		a, receipt, err := s.service.CreateAsset(s.ctx, producer, models.CreateRequest{Name: " Batch A ", TotalSupply: 100, Features: "{}"})
		s.Require().NoError(err)
		s.Equal(domain.AssetID(1), a.ID)
		s.Equal("Batch A", a.Name)
		s.Equal(ledger.EventAssetCreated, receipt.Kind)

		balance, err := s.service.GetBalance(s.ctx, a.ID, producer)
		s.Require().NoError(err)
		s.Equal(int64(100), balance)

		other, err := s.service.GetBalance(s.ctx, a.ID, retailer)
		s.Require().NoError(err)
		s.Zero(other)

		s.Equal(int64(100), ledgertest.SumBalances(s.T(), s.store, a.ID))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.AssetsCreated))
		s.Equal(float64(100), testutil.ToFloat64(s.metrics.SupplyMinted))
	})

	s.Run("administrator may create without a registry record", func() {
		a := s.create(admin, "Crude", 5, 0)
		s.Equal(admin, a.Creator)
	})

	s.Run("pending participant is unauthorized", func() {
		_, _, err := s.service.CreateAsset(s.ctx, pending, models.CreateRequest{Name: "X", TotalSupply: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unregistered caller is unauthorized before supply is checked", func() {
		stranger := domain.MustParseAddress("0x00000000000000000000000000000000000000ee")
		_, _, err := s.service.CreateAsset(s.ctx, stranger, models.CreateRequest{Name: "X", TotalSupply: 0})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("non-positive supply is invalid", func() {
		for _, supply := range []int64{0, -5} {
			_, _, err := s.service.CreateAsset(s.ctx, producer, models.CreateRequest{Name: "X", TotalSupply: supply})
			s.True(dErrors.HasCode(err, dErrors.CodeInvalidSupply))
		}
	})

	s.Run("missing parent is refused and nothing is minted", func() {
		_, _, err := s.service.CreateAsset(s.ctx, producer, models.CreateRequest{Name: "X", TotalSupply: 1, ParentID: 99})
		s.True(dErrors.HasCode(err, dErrors.CodeParentNotFound))

		ids, err := s.service.ListAssetsHeldBy(s.ctx, producer)
		s.Require().NoError(err)
		s.Equal([]domain.AssetID{1}, ids)
	})

	s.Run("parent id beyond int64 range is not found", func() {
		_, _, err := s.service.CreateAsset(s.ctx, producer, models.CreateRequest{Name: "X", TotalSupply: 1, ParentID: domain.AssetID(math.MaxInt64 + 1)})
		s.True(dErrors.HasCode(err, dErrors.CodeParentNotFound))
	})

	s.Run("empty name is a validation error", func() {
		_, _, err := s.service.CreateAsset(s.ctx, producer, models.CreateRequest{Name: "  ", TotalSupply: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *AssetServiceSuite) TestQueries() {
	oil := s.create(producer, "Oil", 10, 0)
	bottled := s.create(producer, "Oil 1L", 10, oil.ID)
	crate := s.create(retailer, "Crate", 1, bottled.ID)

	s.Run("get unknown asset is not found", func() {
		_, err := s.service.GetAsset(s.ctx, 42)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = s.service.GetBalance(s.ctx, 42, producer)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		_, err = s.service.GetAsset(s.ctx, domain.AssetID(math.MaxInt64+1))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("lineage walks to the root", func() {
		chain, err := s.service.Lineage(s.ctx, crate.ID)
		s.Require().NoError(err)
		s.Require().Len(chain, 3)
		s.Equal(crate.ID, chain[0].ID)
		s.Equal(bottled.ID, chain[1].ID)
		s.Equal(oil.ID, chain[2].ID)
	})

	s.Run("held assets include created ones in ascending order", func() {
		ids, err := s.service.ListAssetsHeldBy(s.ctx, producer)
		s.Require().NoError(err)
		s.Equal([]domain.AssetID{oil.ID, bottled.ID}, ids)
	})

	s.Run("holdings list nonzero balances", func() {
		holdings, err := s.service.Holdings(s.ctx, oil.ID)
		s.Require().NoError(err)
		s.Equal([]models.Holding{{Holder: producer, Amount: 10}}, holdings)
	})
}

func (s *AssetServiceSuite) TestMoveBalance() {
	oil := s.create(producer, "Oil", 10, 0)

	s.Run("moves within a unit of work", func() {
		err := s.store.RunInTx(s.ctx, func(tx ledger.Tx) error {
			return s.service.MoveBalance(s.ctx, tx, oil.ID, producer, retailer, 4)
		})
		s.Require().NoError(err)

		held, err := s.service.ListAssetsHeldBy(s.ctx, retailer)
		s.Require().NoError(err)
		s.Equal([]domain.AssetID{oil.ID}, held)
		s.Equal(int64(10), ledgertest.SumBalances(s.T(), s.store, oil.ID))
	})

	s.Run("insufficient balance leaves both sides unchanged", func() {
		err := s.store.RunInTx(s.ctx, func(tx ledger.Tx) error {
			return s.service.MoveBalance(s.ctx, tx, oil.ID, retailer, producer, 5)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInsufficientBalance))

		b, err := s.service.GetBalance(s.ctx, oil.ID, retailer)
		s.Require().NoError(err)
		s.Equal(int64(4), b)
	})

	s.Run("non-positive amount is invalid", func() {
		err := s.store.RunInTx(s.ctx, func(tx ledger.Tx) error {
			return s.service.MoveBalance(s.ctx, tx, oil.ID, producer, retailer, 0)
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidAmount))
	})
}
