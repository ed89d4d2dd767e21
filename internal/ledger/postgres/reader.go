package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	amodels "supplyledger/internal/asset/models"
	"supplyledger/internal/ledger"
	rmodels "supplyledger/internal/registry/models"
	tmodels "supplyledger/internal/transfer/models"
	"supplyledger/pkg/domain"
	"supplyledger/pkg/platform/sentinel"
)

// view implements ledger.Reader. Inside a unit of work lock is set and
// participant and transfer reads take row locks.
type view struct {
	q    querier
	lock bool
}

func (v view) suffix(clause string) string {
	if v.lock {
		return " " + clause
	}
	return ""
}

const participantColumns = `id, address, role, status, created_at, updated_at`

func scanParticipant(row pgx.Row) (*rmodels.Participant, error) {
	var (
		p       rmodels.Participant
		id      int64
		address string
		status  int16
	)
	if err := row.Scan(&id, &address, &p.Role, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = domain.ParticipantID(id)
	p.Address = domain.Address(address)
	p.Status = rmodels.Status(status)
	return &p, nil
}

func (v view) FindParticipant(ctx context.Context, addr domain.Address) (*rmodels.Participant, error) {
	return v.findParticipant(ctx, addr, v.suffix("FOR SHARE"))
}

func (v view) findParticipant(ctx context.Context, addr domain.Address, lock string) (*rmodels.Participant, error) {
	row := v.q.QueryRow(ctx,
		`SELECT `+participantColumns+` FROM participants WHERE address = $1`+lock,
		string(addr))
	p, err := scanParticipant(row)
	if err != nil {
		return nil, notFound(err, "find participant")
	}
	return p, nil
}

func (v view) ListParticipants(ctx context.Context, filter rmodels.Filter) ([]*rmodels.Participant, error) {
	var status *int16
	if filter.Status != nil {
		s := int16(*filter.Status)
		status = &s
	}
	rows, err := v.q.Query(ctx,
		`SELECT `+participantColumns+` FROM participants
		 WHERE ($1::smallint IS NULL OR status = $1) ORDER BY id`, status)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	out := make([]*rmodels.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (v view) FindAsset(ctx context.Context, id domain.AssetID) (*amodels.Asset, error) {
	var (
		a       amodels.Asset
		rawID   int64
		creator string
		parent  *int64
	)
	err := v.q.QueryRow(ctx,
		`SELECT id, creator, name, total_supply, features, parent_id, created_at FROM assets WHERE id = $1`,
		int64(id)).Scan(&rawID, &creator, &a.Name, &a.TotalSupply, &a.Features, &parent, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, "find asset")
	}
	a.ID = domain.AssetID(rawID)
	a.Creator = domain.Address(creator)
	if parent != nil {
		a.ParentID = domain.AssetID(*parent)
	}
	return &a, nil
}

func (v view) Balance(ctx context.Context, id domain.AssetID, holder domain.Address) (int64, error) {
	var amount int64
	err := v.q.QueryRow(ctx,
		`SELECT amount FROM balances WHERE asset_id = $1 AND holder = $2`,
		int64(id), string(holder)).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return amount, nil
}

func (v view) Holdings(ctx context.Context, id domain.AssetID) ([]amodels.Holding, error) {
	rows, err := v.q.Query(ctx,
		`SELECT holder, amount FROM balances WHERE asset_id = $1 AND amount > 0 ORDER BY holder`,
		int64(id))
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	defer rows.Close()

	out := make([]amodels.Holding, 0)
	for rows.Next() {
		var (
			holder string
			amount int64
		)
		if err := rows.Scan(&holder, &amount); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		out = append(out, amodels.Holding{Holder: domain.Address(holder), Amount: amount})
	}
	return out, rows.Err()
}

func (v view) AssetsHeldBy(ctx context.Context, holder domain.Address) ([]domain.AssetID, error) {
	rows, err := v.q.Query(ctx,
		`SELECT id FROM assets WHERE creator = $1
		 UNION
		 SELECT asset_id FROM balances WHERE holder = $1 AND amount > 0
		 ORDER BY 1`, string(holder))
	if err != nil {
		return nil, fmt.Errorf("list held assets: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AssetID, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan asset id: %w", err)
		}
		out = append(out, domain.AssetID(id))
	}
	return out, rows.Err()
}

const transferColumns = `id, asset_id, from_addr, to_addr, amount, status, created_at, resolved_at`

func scanTransfer(row pgx.Row) (*tmodels.Transfer, error) {
	var (
		t        tmodels.Transfer
		id       int64
		assetID  int64
		from, to string
		status   int16
		resolved *time.Time
	)
	if err := row.Scan(&id, &assetID, &from, &to, &t.Amount, &status, &t.CreatedAt, &resolved); err != nil {
		return nil, err
	}
	t.ID = domain.TransferID(id)
	t.AssetID = domain.AssetID(assetID)
	t.From = domain.Address(from)
	t.To = domain.Address(to)
	t.Status = tmodels.Status(status)
	t.ResolvedAt = resolved
	return &t, nil
}

func (v view) FindTransfer(ctx context.Context, id domain.TransferID) (*tmodels.Transfer, error) {
	row := v.q.QueryRow(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE id = $1`+v.suffix("FOR UPDATE"),
		int64(id))
	t, err := scanTransfer(row)
	if err != nil {
		return nil, notFound(err, "find transfer")
	}
	return t, nil
}

func (v view) TransfersOf(ctx context.Context, addr domain.Address) ([]domain.TransferID, error) {
	rows, err := v.q.Query(ctx,
		`SELECT id FROM transfers WHERE from_addr = $1 OR to_addr = $1 ORDER BY id`, string(addr))
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	out := make([]domain.TransferID, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transfer id: %w", err)
		}
		out = append(out, domain.TransferID(id))
	}
	return out, rows.Err()
}

func (v view) PendingIncoming(ctx context.Context, addr domain.Address) ([]*tmodels.Transfer, error) {
	rows, err := v.q.Query(ctx,
		`SELECT `+transferColumns+` FROM transfers WHERE to_addr = $1 AND status = $2 ORDER BY id`,
		string(addr), int16(tmodels.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("list pending transfers: %w", err)
	}
	defer rows.Close()

	var out []*tmodels.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (v view) EventsAfter(ctx context.Context, seq uint64, limit int) ([]ledger.Event, error) {
	var lim *int64
	if limit > 0 {
		l := int64(limit)
		lim = &l
	}
	rows, err := v.q.Query(ctx,
		`SELECT seq, kind, subject, actor, payload, occurred_at FROM ledger_events
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, int64(seq), lim)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []ledger.Event
	for rows.Next() {
		var (
			e           ledger.Event
			rawSeq      int64
			kind, actor string
			payload     []byte
		)
		if err := rows.Scan(&rawSeq, &kind, &e.Subject, &actor, &payload, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Seq = uint64(rawSeq)
		e.Kind = ledger.EventKind(kind)
		e.Actor = domain.Address(actor)
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

func (v view) Cursor(ctx context.Context, name string) (uint64, error) {
	var seq int64
	err := v.q.QueryRow(ctx, `SELECT seq FROM relay_cursors WHERE name = $1`, name).Scan(&seq)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}
	return uint64(seq), nil
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
