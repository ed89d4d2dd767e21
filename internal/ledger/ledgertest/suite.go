// Package ledgertest holds behaviour every ledger.Store implementation must
// share. Implementations embed StoreSuite and set NewStore.
package ledgertest

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/stretchr/testify/suite"

	amodels "supplyledger/internal/asset/models"
	"supplyledger/internal/ledger"
	rmodels "supplyledger/internal/registry/models"
	tmodels "supplyledger/internal/transfer/models"
	"supplyledger/pkg/domain"
	"supplyledger/pkg/platform/sentinel"
)

var (
	Alice = domain.MustParseAddress("0x00000000000000000000000000000000000000a1")
	Bob   = domain.MustParseAddress("0x00000000000000000000000000000000000000b2")
	Carol = domain.MustParseAddress("0x00000000000000000000000000000000000000c3")
)

var errBoom = errors.New("boom")

// StoreSuite runs against a fresh store per test.
type StoreSuite struct {
	suite.Suite
	NewStore func() ledger.Store
	store    ledger.Store
}

func (s *StoreSuite) SetupTest() {
	s.Require().NotNil(s.NewStore, "NewStore must be set")
	s.store = s.NewStore()
}

func (s *StoreSuite) ctx() context.Context { return context.Background() }

func (s *StoreSuite) insertAsset(creator domain.Address, supply int64) domain.AssetID {
	var id domain.AssetID
	err := s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
		a := &amodels.Asset{Creator: creator, Name: "Oil", TotalSupply: supply, CreatedAt: time.Now().UTC()}
		if err := tx.InsertAsset(s.ctx(), a); err != nil {
			return err
		}
		id = a.ID
		return tx.Credit(s.ctx(), a.ID, creator, supply)
	})
	s.Require().NoError(err)
	return id
}

func (s *StoreSuite) TestParticipants() {
	s.Run("assigns sequential ids and rejects duplicate addresses", func() {
		err := s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
			for _, addr := range []domain.Address{Alice, Bob} {
				p, err := rmodels.NewParticipant(addr, "Producer", time.Now().UTC())
				if err != nil {
					return err
				}
				if err := tx.InsertParticipant(s.ctx(), p); err != nil {
					return err
				}
			}
			return nil
		})
		s.Require().NoError(err)

		err = s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
			p, _ := rmodels.NewParticipant(Alice, "Retailer", time.Now().UTC())
			return tx.InsertParticipant(s.ctx(), p)
		})
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

		s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
			a, err := r.FindParticipant(s.ctx(), Alice)
			s.Require().NoError(err)
			s.Equal(domain.ParticipantID(1), a.ID)
			s.Equal("Producer", a.Role)
			b, err := r.FindParticipant(s.ctx(), Bob)
			s.Require().NoError(err)
			s.Equal(domain.ParticipantID(2), b.ID)
			return nil
		}))
	})

	s.Run("updates status and filters by it", func() {
		err := s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
			p, err := tx.FindParticipantForUpdate(s.ctx(), Bob)
			if err != nil {
				return err
			}
			p.ApplyStatus(rmodels.StatusApproved, time.Now().UTC())
			return tx.UpdateParticipant(s.ctx(), p)
		})
		s.Require().NoError(err)

		approved := rmodels.StatusApproved
		s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
			list, err := r.ListParticipants(s.ctx(), rmodels.Filter{Status: &approved})
			s.Require().NoError(err)
			s.Require().Len(list, 1)
			s.Equal(Bob, list[0].Address)
			return nil
		}))
	})

	s.Run("missing participant is not found", func() {
		s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
			_, err := r.FindParticipant(s.ctx(), Carol)
			s.ErrorIs(err, sentinel.ErrNotFound)
			return nil
		}))
	})
}

func (s *StoreSuite) TestBalances() {
	id := s.insertAsset(Alice, 100)

	s.Run("debit below zero is refused and leaves balance intact", func() {
		err := s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
			return tx.Debit(s.ctx(), id, Alice, 101)
		})
		s.Require().ErrorIs(err, sentinel.ErrInsufficient)
		s.Equal(int64(100), s.balance(id, Alice))
	})

	s.Run("moves balance between holders", func() {
		err := s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
			if err := tx.LockBalances(s.ctx(), id, Bob, Alice); err != nil {
				return err
			}
			if err := tx.Debit(s.ctx(), id, Alice, 40); err != nil {
				return err
			}
			return tx.Credit(s.ctx(), id, Bob, 40)
		})
		s.Require().NoError(err)
		s.Equal(int64(60), s.balance(id, Alice))
		s.Equal(int64(40), s.balance(id, Bob))

		s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
			holdings, err := r.Holdings(s.ctx(), id)
			s.Require().NoError(err)
			s.Equal([]amodels.Holding{{Holder: Alice, Amount: 60}, {Holder: Bob, Amount: 40}}, holdings)

			held, err := r.AssetsHeldBy(s.ctx(), Bob)
			s.Require().NoError(err)
			s.Equal([]domain.AssetID{id}, held)
			return nil
		}))
	})

	s.Run("unknown holder has zero balance", func() {
		s.Equal(int64(0), s.balance(id, Carol))
	})
}

func (s *StoreSuite) TestRollback() {
	id := s.insertAsset(Alice, 10)

	err := s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
		if err := tx.Debit(s.ctx(), id, Alice, 10); err != nil {
			return err
		}
		if err := tx.Credit(s.ctx(), id, Bob, 10); err != nil {
			return err
		}
		a := &amodels.Asset{Creator: Bob, Name: "Gas", TotalSupply: 1, CreatedAt: time.Now().UTC()}
		if err := tx.InsertAsset(s.ctx(), a); err != nil {
			return err
		}
		e, err := ledger.NewEvent(ledger.EventAssetCreated, ledger.AssetSubject(a.ID), Bob, a, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := tx.AppendEvent(s.ctx(), e); err != nil {
			return err
		}
		return errBoom
	})
	s.Require().ErrorIs(err, errBoom)

	s.Equal(int64(10), s.balance(id, Alice))
	s.Equal(int64(0), s.balance(id, Bob))
	s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
		_, err := r.FindAsset(s.ctx(), id+1)
		s.ErrorIs(err, sentinel.ErrNotFound)
		events, err := r.EventsAfter(s.ctx(), 0, 0)
		s.Require().NoError(err)
		s.Empty(events)
		return nil
	}))

	// ids stay gapless after a rollback
	next := s.insertAsset(Bob, 1)
	s.Equal(id+1, next)
}

func (s *StoreSuite) TestTransfers() {
	id := s.insertAsset(Alice, 5)
	var tid domain.TransferID
	err := s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
		t := &tmodels.Transfer{AssetID: id, From: Alice, To: Bob, Amount: 2, Status: tmodels.StatusPending, CreatedAt: time.Now().UTC()}
		if err := tx.InsertTransfer(s.ctx(), t); err != nil {
			return err
		}
		tid = t.ID
		return nil
	})
	s.Require().NoError(err)
	s.Equal(domain.TransferID(1), tid)

	s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
		pending, err := r.PendingIncoming(s.ctx(), Bob)
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(tid, pending[0].ID)

		outgoing, err := r.PendingIncoming(s.ctx(), Alice)
		s.Require().NoError(err)
		s.Empty(outgoing)

		for _, addr := range []domain.Address{Alice, Bob} {
			ids, err := r.TransfersOf(s.ctx(), addr)
			s.Require().NoError(err)
			s.Equal([]domain.TransferID{tid}, ids)
		}
		return nil
	}))

	err = s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
		t, err := tx.FindTransfer(s.ctx(), tid)
		if err != nil {
			return err
		}
		t.ApplyResolution(tmodels.StatusRejected, time.Now().UTC())
		return tx.UpdateTransfer(s.ctx(), t)
	})
	s.Require().NoError(err)

	s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
		t, err := r.FindTransfer(s.ctx(), tid)
		s.Require().NoError(err)
		s.Equal(tmodels.StatusRejected, t.Status)
		s.NotNil(t.ResolvedAt)
		pending, err := r.PendingIncoming(s.ctx(), Bob)
		s.Require().NoError(err)
		s.Empty(pending)
		_, err = r.FindTransfer(s.ctx(), tid+1)
		s.ErrorIs(err, sentinel.ErrNotFound)
		return nil
	}))
}

func (s *StoreSuite) TestEventsAndCursors() {
	for i := 0; i < 3; i++ {
		s.insertAssetWithEvent(Alice)
	}

	s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
		all, err := r.EventsAfter(s.ctx(), 0, 0)
		s.Require().NoError(err)
		s.Require().Len(all, 3)
		for i, e := range all {
			s.Equal(uint64(i+1), e.Seq)
			s.Equal(ledger.EventAssetCreated, e.Kind)
		}
		page, err := r.EventsAfter(s.ctx(), 1, 1)
		s.Require().NoError(err)
		s.Require().Len(page, 1)
		s.Equal(uint64(2), page[0].Seq)

		cur, err := r.Cursor(s.ctx(), "kafka")
		s.Require().NoError(err)
		s.Zero(cur)
		return nil
	}))

	s.Require().NoError(s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
		return tx.SaveCursor(s.ctx(), "kafka", 2)
	}))
	s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
		cur, err := r.Cursor(s.ctx(), "kafka")
		s.Require().NoError(err)
		s.Equal(uint64(2), cur)
		return nil
	}))
}

func (s *StoreSuite) TestConcurrentDebitsNeverOverdraw() {
	id := s.insertAsset(Alice, 10)

	const workers = 25
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
				if err := tx.LockBalances(s.ctx(), id, Alice, Bob); err != nil {
					return err
				}
				if err := tx.Debit(s.ctx(), id, Alice, 1); err != nil {
					return err
				}
				return tx.Credit(s.ctx(), id, Bob, 1)
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(10, succeeded)
	s.Equal(int64(0), s.balance(id, Alice))
	s.Equal(int64(10), s.balance(id, Bob))
}

func (s *StoreSuite) TestIDsBeyondInt64AreNotFound() {
	s.insertAsset(Alice, 1)
	assetID := domain.AssetID(math.MaxInt64 + 1)
	transferID := domain.TransferID(math.MaxInt64 + 1)

	s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
		_, err := r.FindAsset(s.ctx(), assetID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = r.FindTransfer(s.ctx(), transferID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		return nil
	}))

	err := s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
		if _, err := tx.FindAsset(s.ctx(), assetID); !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		return tx.UpdateTransfer(s.ctx(), &tmodels.Transfer{ID: transferID, Status: tmodels.StatusAccepted})
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestConcurrentStatusUpdatesOnOneParticipant() {
	s.Require().NoError(s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
		p, err := rmodels.NewParticipant(Carol, "Retailer", time.Now().UTC())
		if err != nil {
			return err
		}
		return tx.InsertParticipant(s.ctx(), p)
	}))

	const workers = 10
	statuses := []rmodels.Status{rmodels.StatusApproved, rmodels.StatusRejected}
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
				p, err := tx.FindParticipantForUpdate(s.ctx(), Carol)
				if err != nil {
					return err
				}
				p.ApplyStatus(statuses[i%2], time.Now().UTC())
				if err := tx.UpdateParticipant(s.ctx(), p); err != nil {
					return err
				}
				_, err = ledger.Record(s.ctx(), tx, ledger.EventParticipantStatusChanged,
					ledger.ParticipantSubject(Carol), Alice, p, p.UpdatedAt)
				return err
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		s.NoError(err)
	}
	s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
		events, err := r.EventsAfter(s.ctx(), 0, 0)
		s.Require().NoError(err)
		s.Len(events, workers)
		return nil
	}))
}

func (s *StoreSuite) insertAssetWithEvent(creator domain.Address) {
	err := s.store.RunInTx(s.ctx(), func(tx ledger.Tx) error {
		a := &amodels.Asset{Creator: creator, Name: "Oil", TotalSupply: 1, CreatedAt: time.Now().UTC()}
		if err := tx.InsertAsset(s.ctx(), a); err != nil {
			return err
		}
		_, err := ledger.Record(s.ctx(), tx, ledger.EventAssetCreated, ledger.AssetSubject(a.ID), creator, a, a.CreatedAt)
		return err
	})
	s.Require().NoError(err)
}

func (s *StoreSuite) balance(id domain.AssetID, holder domain.Address) int64 {
	var out int64
	s.Require().NoError(s.store.View(s.ctx(), func(r ledger.Reader) error {
		var err error
		out, err = r.Balance(s.ctx(), id, holder)
		return err
	}))
	return out
}
