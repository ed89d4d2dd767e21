// Package memory is the in-process ledger store.
//
// It is a single-writer store: RunInTx holds the write lock for the whole
// unit of work and View holds the read lock, so readers never see a
// half-applied mutation. Writes are journaled and undone if the unit of work
// fails.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	amodels "supplyledger/internal/asset/models"
	"supplyledger/internal/ledger"
	rmodels "supplyledger/internal/registry/models"
	tmodels "supplyledger/internal/transfer/models"
	"supplyledger/pkg/domain"
	dErrors "supplyledger/pkg/domain-errors"
	"supplyledger/pkg/platform/sentinel"
)

// defaultTxTimeout bounds how long a unit of work may wait for and hold the lock.
const defaultTxTimeout = 5 * time.Second

// Store implements ledger.Store in memory. IDs and event sequence numbers
// are slice positions plus one, which keeps them gapless.
type Store struct {
	mu      sync.RWMutex
	timeout time.Duration

	participants []*rmodels.Participant
	byAddress    map[domain.Address]int

	assets   []*amodels.Asset
	balances map[domain.AssetID]map[domain.Address]int64
	created  map[domain.Address][]domain.AssetID

	transfers   []*tmodels.Transfer
	transfersOf map[domain.Address][]domain.TransferID

	events  []ledger.Event
	cursors map[string]uint64
}

type Option func(*Store)

// WithTimeout overrides the default unit-of-work timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		timeout:     defaultTxTimeout,
		byAddress:   make(map[domain.Address]int),
		balances:    make(map[domain.AssetID]map[domain.Address]int64),
		created:     make(map[domain.Address][]domain.AssetID),
		transfersOf: make(map[domain.Address][]domain.TransferID),
		cursors:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) RunInTx(ctx context.Context, fn func(tx ledger.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// The caller's deadline still wins when it is sooner.
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	t := &tx{view: view{s: s}}
	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			panic(p)
		}
		if err != nil {
			t.rollback()
		}
	}()
	return fn(t)
}

func (s *Store) View(ctx context.Context, fn func(r ledger.Reader) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "read aborted: context cancelled")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(view{s: s})
}

// view reads store state. The caller holds s.mu. Records are copied on the
// way out so callers cannot mutate the store.
type view struct {
	s *Store
}

func (v view) FindParticipant(_ context.Context, addr domain.Address) (*rmodels.Participant, error) {
	i, ok := v.s.byAddress[addr]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := *v.s.participants[i]
	return &p, nil
}

func (v view) ListParticipants(_ context.Context, filter rmodels.Filter) ([]*rmodels.Participant, error) {
	out := make([]*rmodels.Participant, 0, len(v.s.participants))
	for _, p := range v.s.participants {
		if filter.Match(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (v view) FindAsset(_ context.Context, id domain.AssetID) (*amodels.Asset, error) {
	if id == 0 || uint64(id) > uint64(len(v.s.assets)) {
		return nil, sentinel.ErrNotFound
	}
	a := *v.s.assets[id-1]
	return &a, nil
}

func (v view) Balance(_ context.Context, id domain.AssetID, holder domain.Address) (int64, error) {
	return v.s.balances[id][holder], nil
}

func (v view) Holdings(_ context.Context, id domain.AssetID) ([]amodels.Holding, error) {
	table := v.s.balances[id]
	out := make([]amodels.Holding, 0, len(table))
	for holder, amount := range table {
		if amount > 0 {
			out = append(out, amodels.Holding{Holder: holder, Amount: amount})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holder < out[j].Holder })
	return out, nil
}

func (v view) AssetsHeldBy(_ context.Context, holder domain.Address) ([]domain.AssetID, error) {
	seen := make(map[domain.AssetID]struct{})
	for _, id := range v.s.created[holder] {
		seen[id] = struct{}{}
	}
	for id, table := range v.s.balances {
		if table[holder] > 0 {
			seen[id] = struct{}{}
		}
	}
	out := make([]domain.AssetID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (v view) FindTransfer(_ context.Context, id domain.TransferID) (*tmodels.Transfer, error) {
	if id == 0 || uint64(id) > uint64(len(v.s.transfers)) {
		return nil, sentinel.ErrNotFound
	}
	return cloneTransfer(v.s.transfers[id-1]), nil
}

func (v view) TransfersOf(_ context.Context, addr domain.Address) ([]domain.TransferID, error) {
	return append([]domain.TransferID{}, v.s.transfersOf[addr]...), nil
}

func (v view) PendingIncoming(_ context.Context, addr domain.Address) ([]*tmodels.Transfer, error) {
	var out []*tmodels.Transfer
	for _, id := range v.s.transfersOf[addr] {
		t := v.s.transfers[id-1]
		if t.To == addr && t.Status == tmodels.StatusPending {
			out = append(out, cloneTransfer(t))
		}
	}
	return out, nil
}

func (v view) EventsAfter(_ context.Context, seq uint64, limit int) ([]ledger.Event, error) {
	if seq >= uint64(len(v.s.events)) {
		return nil, nil
	}
	rest := v.s.events[seq:]
	if limit > 0 && len(rest) > limit {
		rest = rest[:limit]
	}
	return append([]ledger.Event{}, rest...), nil
}

func (v view) Cursor(_ context.Context, name string) (uint64, error) {
	return v.s.cursors[name], nil
}

func cloneTransfer(t *tmodels.Transfer) *tmodels.Transfer {
	cp := *t
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		cp.ResolvedAt = &at
	}
	return &cp
}
