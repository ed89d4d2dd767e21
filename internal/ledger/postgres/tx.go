package postgres

import (
	"context"
	"fmt"
	"sort"

	amodels "supplyledger/internal/asset/models"
	"supplyledger/internal/ledger"
	rmodels "supplyledger/internal/registry/models"
	tmodels "supplyledger/internal/transfer/models"
	"supplyledger/pkg/domain"
	"supplyledger/pkg/platform/sentinel"
)

type tx struct {
	view
}

// next takes the row lock on a counter until commit, so concurrent inserts
// queue behind each other and a rollback returns the value unused.
func (t *tx) next(ctx context.Context, counter string) (int64, error) {
	var v int64
	err := t.q.QueryRow(ctx,
		`UPDATE ledger_counters SET value = value + 1 WHERE name = $1 RETURNING value`, counter).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", counter, err)
	}
	return v, nil
}

func (t *tx) InsertParticipant(ctx context.Context, p *rmodels.Participant) error {
	var exists bool
	if err := t.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE address = $1)`, string(p.Address)).Scan(&exists); err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if exists {
		return sentinel.ErrAlreadyUsed
	}
	id, err := t.next(ctx, "participants")
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx,
		`INSERT INTO participants (id, address, role, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, string(p.Address), p.Role, int16(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyUsed
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	p.ID = domain.ParticipantID(id)
	return nil
}

// FindParticipantForUpdate takes the row lock up front. Upgrading a FOR SHARE
// lock would deadlock two writers on the same participant.
func (t *tx) FindParticipantForUpdate(ctx context.Context, addr domain.Address) (*rmodels.Participant, error) {
	return t.findParticipant(ctx, addr, " FOR UPDATE")
}

func (t *tx) UpdateParticipant(ctx context.Context, p *rmodels.Participant) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE participants SET status = $2, updated_at = $3 WHERE address = $1`,
		string(p.Address), int16(p.Status), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (t *tx) InsertAsset(ctx context.Context, a *amodels.Asset) error {
	id, err := t.next(ctx, "assets")
	if err != nil {
		return err
	}
	var parent *int64
	if a.HasParent() {
		p := int64(a.ParentID)
		parent = &p
	}
	_, err = t.q.Exec(ctx,
		`INSERT INTO assets (id, creator, name, total_supply, features, parent_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, string(a.Creator), a.Name, a.TotalSupply, a.Features, parent, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	a.ID = domain.AssetID(id)
	return nil
}

func (t *tx) LockBalances(ctx context.Context, id domain.AssetID, holders ...domain.Address) error {
	keys := make([]string, 0, len(holders))
	for _, h := range holders {
		keys = append(keys, string(h))
	}
	sort.Strings(keys)
	rows, err := t.q.Query(ctx,
		`SELECT holder FROM balances WHERE asset_id = $1 AND holder = ANY($2)
		 ORDER BY holder FOR UPDATE`, int64(id), keys)
	if err != nil {
		return fmt.Errorf("lock balances: %w", err)
	}
	rows.Close()
	return rows.Err()
}

func (t *tx) Credit(ctx context.Context, id domain.AssetID, holder domain.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("credit %d: %w", amount, sentinel.ErrInvalidState)
	}
	_, err := t.q.Exec(ctx,
		`INSERT INTO balances (asset_id, holder, amount) VALUES ($1, $2, $3)
		 ON CONFLICT (asset_id, holder) DO UPDATE SET amount = balances.amount + EXCLUDED.amount`,
		int64(id), string(holder), amount)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

func (t *tx) Debit(ctx context.Context, id domain.AssetID, holder domain.Address, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("debit %d: %w", amount, sentinel.ErrInvalidState)
	}
	tag, err := t.q.Exec(ctx,
		`UPDATE balances SET amount = amount - $3
		 WHERE asset_id = $1 AND holder = $2 AND amount >= $3`,
		int64(id), string(holder), amount)
	if err != nil {
		return fmt.Errorf("debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrInsufficient
	}
	return nil
}

func (t *tx) InsertTransfer(ctx context.Context, tr *tmodels.Transfer) error {
	id, err := t.next(ctx, "transfers")
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx,
		`INSERT INTO transfers (id, asset_id, from_addr, to_addr, amount, status, created_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, int64(tr.AssetID), string(tr.From), string(tr.To), tr.Amount, int16(tr.Status), tr.CreatedAt, tr.ResolvedAt)
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	tr.ID = domain.TransferID(id)
	return nil
}

func (t *tx) UpdateTransfer(ctx context.Context, tr *tmodels.Transfer) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE transfers SET status = $2, resolved_at = $3 WHERE id = $1`,
		int64(tr.ID), int16(tr.Status), tr.ResolvedAt)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (t *tx) AppendEvent(ctx context.Context, e *ledger.Event) error {
	seq, err := t.next(ctx, "events")
	if err != nil {
		return err
	}
	_, err = t.q.Exec(ctx,
		`INSERT INTO ledger_events (seq, kind, subject, actor, payload, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		seq, string(e.Kind), e.Subject, string(e.Actor), string(e.Payload), e.OccurredAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	e.Seq = uint64(seq)
	return nil
}

func (t *tx) SaveCursor(ctx context.Context, name string, seq uint64) error {
	_, err := t.q.Exec(ctx,
		`INSERT INTO relay_cursors (name, seq) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET seq = EXCLUDED.seq`, name, int64(seq))
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
