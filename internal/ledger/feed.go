package ledger

import "context"

const (
	DefaultFeedLimit = 100
	MaxFeedLimit     = 1000
)

// Feed pages through committed events for clients reconciling receipts.
type Feed struct {
	store Store
}

func NewFeed(store Store) *Feed {
	return &Feed{store: store}
}

// EventsAfter returns up to limit events with Seq greater than after. A
// non-positive limit selects DefaultFeedLimit; larger limits are capped.
func (f *Feed) EventsAfter(ctx context.Context, after uint64, limit int) ([]Event, error) {
	switch {
	case limit <= 0:
		limit = DefaultFeedLimit
	case limit > MaxFeedLimit:
		limit = MaxFeedLimit
	}
	var events []Event
	err := f.store.View(ctx, func(r Reader) error {
		var err error
		events, err = r.EventsAfter(ctx, after, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}
