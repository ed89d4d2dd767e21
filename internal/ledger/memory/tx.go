package memory

import (
	"context"
	"fmt"

	amodels "supplyledger/internal/asset/models"
	"supplyledger/internal/ledger"
	rmodels "supplyledger/internal/registry/models"
	tmodels "supplyledger/internal/transfer/models"
	"supplyledger/pkg/domain"
	"supplyledger/pkg/platform/sentinel"
)

// tx mutates the store in place and records an undo step per write.
type tx struct {
	view
	undo []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) InsertParticipant(_ context.Context, p *rmodels.Participant) error {
	s := t.s
	if _, exists := s.byAddress[p.Address]; exists {
		return sentinel.ErrAlreadyUsed
	}
	p.ID = domain.ParticipantID(len(s.participants) + 1)
	cp := *p
	s.participants = append(s.participants, &cp)
	s.byAddress[p.Address] = len(s.participants) - 1
	t.undo = append(t.undo, func() {
		s.participants = s.participants[:len(s.participants)-1]
		delete(s.byAddress, p.Address)
	})
	return nil
}

// FindParticipantForUpdate needs no extra lock under the store write lock.
func (t *tx) FindParticipantForUpdate(ctx context.Context, addr domain.Address) (*rmodels.Participant, error) {
	return t.FindParticipant(ctx, addr)
}

func (t *tx) UpdateParticipant(_ context.Context, p *rmodels.Participant) error {
	s := t.s
	i, ok := s.byAddress[p.Address]
	if !ok {
		return sentinel.ErrNotFound
	}
	prev := s.participants[i]
	cp := *p
	cp.ID = prev.ID
	s.participants[i] = &cp
	t.undo = append(t.undo, func() { s.participants[i] = prev })
	return nil
}

func (t *tx) InsertAsset(_ context.Context, a *amodels.Asset) error {
	s := t.s
	a.ID = domain.AssetID(len(s.assets) + 1)
	cp := *a
	s.assets = append(s.assets, &cp)
	s.created[a.Creator] = append(s.created[a.Creator], a.ID)
	t.undo = append(t.undo, func() {
		s.assets = s.assets[:len(s.assets)-1]
		created := s.created[a.Creator]
		s.created[a.Creator] = created[:len(created)-1]
		delete(s.balances, a.ID)
	})
	return nil
}

// LockBalances is a no-op: the unit of work already holds the write lock.
func (t *tx) LockBalances(_ context.Context, _ domain.AssetID, _ ...domain.Address) error {
	return nil
}

func (t *tx) Credit(_ context.Context, id domain.AssetID, holder domain.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit %d: %w", amount, sentinel.ErrInvalidState)
	}
	t.setBalance(id, holder, t.s.balances[id][holder]+amount)
	return nil
}

func (t *tx) Debit(_ context.Context, id domain.AssetID, holder domain.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit %d: %w", amount, sentinel.ErrInvalidState)
	}
	current := t.s.balances[id][holder]
	if current < amount {
		return sentinel.ErrInsufficient
	}
	t.setBalance(id, holder, current-amount)
	return nil
}

func (t *tx) setBalance(id domain.AssetID, holder domain.Address, amount int64) {
	s := t.s
	table, ok := s.balances[id]
	if !ok {
		table = make(map[domain.Address]int64)
		s.balances[id] = table
	}
	prev, had := table[holder]
	table[holder] = amount
	t.undo = append(t.undo, func() {
		if had {
			table[holder] = prev
		} else {
			delete(table, holder)
		}
	})
}

func (t *tx) InsertTransfer(_ context.Context, tr *tmodels.Transfer) error {
	s := t.s
	tr.ID = domain.TransferID(len(s.transfers) + 1)
	s.transfers = append(s.transfers, cloneTransfer(tr))
	s.transfersOf[tr.From] = append(s.transfersOf[tr.From], tr.ID)
	s.transfersOf[tr.To] = append(s.transfersOf[tr.To], tr.ID)
	t.undo = append(t.undo, func() {
		s.transfers = s.transfers[:len(s.transfers)-1]
		from := s.transfersOf[tr.From]
		s.transfersOf[tr.From] = from[:len(from)-1]
		to := s.transfersOf[tr.To]
		s.transfersOf[tr.To] = to[:len(to)-1]
	})
	return nil
}

func (t *tx) UpdateTransfer(_ context.Context, tr *tmodels.Transfer) error {
	s := t.s
	if tr.ID == 0 || uint64(tr.ID) > uint64(len(s.transfers)) {
		return sentinel.ErrNotFound
	}
	i := int(tr.ID) - 1
	prev := s.transfers[i]
	s.transfers[i] = cloneTransfer(tr)
	t.undo = append(t.undo, func() { s.transfers[i] = prev })
	return nil
}

func (t *tx) AppendEvent(_ context.Context, e *ledger.Event) error {
	s := t.s
	e.Seq = uint64(len(s.events) + 1)
	s.events = append(s.events, *e)
	t.undo = append(t.undo, func() { s.events = s.events[:len(s.events)-1] })
	return nil
}

func (t *tx) SaveCursor(_ context.Context, name string, seq uint64) error {
	s := t.s
	prev, had := s.cursors[name]
	s.cursors[name] = seq
	t.undo = append(t.undo, func() {
		if had {
			s.cursors[name] = prev
		} else {
			delete(s.cursors, name)
		}
	})
	return nil
}
