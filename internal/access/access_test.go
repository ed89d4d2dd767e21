package access

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplyledger/internal/ledger"
	"supplyledger/internal/ledger/memory"
	rmodels "supplyledger/internal/registry/models"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
)

var (
	admin    = domain.MustParseAddress("0x00000000000000000000000000000000000000ad")
	approved = domain.MustParseAddress("0x0000000000000000000000000000000000000001")
	pending  = domain.MustParseAddress("0x0000000000000000000000000000000000000002")
	stranger = domain.MustParseAddress("0x0000000000000000000000000000000000000003")
)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.RunInTx(ctx, func(tx ledger.Tx) error {
		for addr, status := range map[domain.Address]rmodels.Status{
			approved: rmodels.StatusApproved,
			pending:  rmodels.StatusPending,
		} {
			p, err := rmodels.NewParticipant(addr, "Producer", time.Now())
			require.NoError(t, err)
			p.Status = status
			if err := tx.InsertParticipant(ctx, p); err != nil {
				return err
			}
		}
		return nil
	}))
	return store
}

func TestAuthorize(t *testing.T) {
	gate := NewGate(admin)
	store := seed(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		identity domain.Address
		level    Level
		allowed  bool
	}{
		{"admin holds administrator", admin, Administrator, true},
		{"approved participant is not administrator", approved, Administrator, false},
		{"admin is implicitly approved", admin, ApprovedParticipant, true},
		{"approved participant", approved, ApprovedParticipant, true},
		{"pending participant is not approved", pending, ApprovedParticipant, false},
		{"unregistered identity is not approved", stranger, ApprovedParticipant, false},
		{"any admits unregistered identity", stranger, Any, true},
		{"empty identity is refused", "", Any, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.View(ctx, func(r ledger.Reader) error {
				return gate.Authorize(ctx, r, tt.identity, tt.level)
			})
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}

func TestParseAdmins(t *testing.T) {
	t.Run("normalizes addresses", func(t *testing.T) {
		gate, err := ParseAdmins([]string{"0x00000000000000000000000000000000000000AD"})
		require.NoError(t, err)
		assert.True(t, gate.IsAdministrator(admin))
		assert.Len(t, gate.Administrators(), 1)
	})

	t.Run("rejects malformed address", func(t *testing.T) {
		_, err := ParseAdmins([]string{"not-an-address"})
		require.Error(t, err)
	})
}
