package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"supplyledger/internal/ledger"
	rmodels "supplyledger/internal/registry/models"
	"supplyledger/pkg/domain"
)

// SeedParticipant registers addr directly in the store with the given status.
func SeedParticipant(t *testing.T, store ledger.Store, addr domain.Address, role string, status rmodels.Status) {
	t.Helper()
	ctx := context.Background()
	err := store.RunInTx(ctx, func(tx ledger.Tx) error {
		p, err := rmodels.NewParticipant(addr, role, time.Now().UTC())
		if err != nil {
			return err
		}
		p.Status = status
		return tx.InsertParticipant(ctx, p)
	})
	require.NoError(t, err)
}

// SumBalances adds up every holder's balance of an asset.
func SumBalances(t *testing.T, store ledger.Store, id domain.AssetID) int64 {
	t.Helper()
	ctx := context.Background()
	var total int64
	err := store.View(ctx, func(r ledger.Reader) error {
		holdings, err := r.Holdings(ctx, id)
		if err != nil {
			return err
		}
		for _, h := range holdings {
			total += h.Amount
		}
		return nil
	})
	require.NoError(t, err)
	return total
}
