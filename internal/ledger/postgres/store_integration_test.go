//go:build integration

package postgres_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"supplyledger/internal/ledger"
	"supplyledger/internal/ledger/ledgertest"
	"supplyledger/internal/ledger/postgres"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	ledgertest.StoreSuite
	postgres *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())

	_, err := postgres.Migrate(context.Background(), s.postgres.DSN, slog.Default())
	s.Require().NoError(err)

	s.NewStore = func() ledger.Store {
		ctx := context.Background()
		err := s.postgres.TruncateTables(ctx, "relay_cursors", "ledger_events", "transfers", "balances", "assets", "participants")
		s.Require().NoError(err)
		_, err = s.postgres.Pool.Exec(ctx, `UPDATE ledger_counters SET value = 0`)
		s.Require().NoError(err)
		return postgres.New(s.postgres.Pool)
	}
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	n, err := postgres.Migrate(context.Background(), s.postgres.DSN, nil)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PostgresStoreSuite) TestStoreTimeoutAppliesUnderLongerCallerDeadline() {
	s.NewStore()
	store := postgres.New(s.postgres.Pool, postgres.WithTimeout(50*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	err := store.RunInTx(ctx, func(tx ledger.Tx) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}
