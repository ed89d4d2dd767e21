// Package ledger defines the state store shared by the registry, asset and
// transfer components.
//
// Every mutation runs inside Store.RunInTx: either all of its writes commit
// or none do, and readers using Store.View never observe a partial write.
// Each committed mutation appends an Event whose Seq is returned to the
// client as its settlement receipt.
package ledger

import (
	"context"

	amodels "supplyledger/internal/asset/models"
	rmodels "supplyledger/internal/registry/models"
	tmodels "supplyledger/internal/transfer/models"
	"supplyledger/pkg/domain"
)

// Reader exposes committed (or, inside a Tx, in-flight) ledger state.
// Lookups of absent records return sentinel.ErrNotFound.
type Reader interface {
	FindParticipant(ctx context.Context, addr domain.Address) (*rmodels.Participant, error)
	ListParticipants(ctx context.Context, filter rmodels.Filter) ([]*rmodels.Participant, error)

	FindAsset(ctx context.Context, id domain.AssetID) (*amodels.Asset, error)
	// Balance returns 0 for holders with no entry.
	Balance(ctx context.Context, id domain.AssetID, holder domain.Address) (int64, error)
	// Holdings lists the nonzero balances of an asset ordered by holder.
	Holdings(ctx context.Context, id domain.AssetID) ([]amodels.Holding, error)
	// AssetsHeldBy lists, ascending, assets the holder has a nonzero balance
	// of or created.
	AssetsHeldBy(ctx context.Context, holder domain.Address) ([]domain.AssetID, error)

	FindTransfer(ctx context.Context, id domain.TransferID) (*tmodels.Transfer, error)
	// TransfersOf lists, ascending, transfers the address sent or received.
	TransfersOf(ctx context.Context, addr domain.Address) ([]domain.TransferID, error)
	PendingIncoming(ctx context.Context, addr domain.Address) ([]*tmodels.Transfer, error)

	EventsAfter(ctx context.Context, seq uint64, limit int) ([]Event, error)
	// Cursor returns the last position saved under name, or 0.
	Cursor(ctx context.Context, name string) (uint64, error)
}

// Tx is a unit of work. Reads through a Tx see its own uncommitted writes;
// implementations may lock the rows they read.
type Tx interface {
	Reader

	// InsertParticipant assigns p.ID. A duplicate address returns
	// sentinel.ErrAlreadyUsed.
	InsertParticipant(ctx context.Context, p *rmodels.Participant) error
	// FindParticipantForUpdate reads a participant the caller intends to
	// update, holding a write lock on it until the unit of work ends.
	FindParticipantForUpdate(ctx context.Context, addr domain.Address) (*rmodels.Participant, error)
	UpdateParticipant(ctx context.Context, p *rmodels.Participant) error

	// InsertAsset assigns a.ID.
	InsertAsset(ctx context.Context, a *amodels.Asset) error
	// LockBalances serializes writers on the given balance entries. Holders
	// are locked in a stable order regardless of argument order.
	LockBalances(ctx context.Context, id domain.AssetID, holders ...domain.Address) error
	Credit(ctx context.Context, id domain.AssetID, holder domain.Address, amount int64) error
	// Debit returns sentinel.ErrInsufficient if the balance is below amount.
	Debit(ctx context.Context, id domain.AssetID, holder domain.Address, amount int64) error

	// InsertTransfer assigns t.ID.
	InsertTransfer(ctx context.Context, t *tmodels.Transfer) error
	UpdateTransfer(ctx context.Context, t *tmodels.Transfer) error

	// AppendEvent assigns e.Seq.
	AppendEvent(ctx context.Context, e *Event) error
	SaveCursor(ctx context.Context, name string, seq uint64) error
}

// Store owns ledger state.
type Store interface {
	// RunInTx applies fn atomically. Any error returned by fn discards all
	// of fn's writes and is returned unchanged.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(r Reader) error) error
}
