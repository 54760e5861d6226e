package forge

import (
	"context"
	"errors"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"
)

// Ledger owns the shared loot state and serialises every operation on it. Each update runs
// against a transaction overlay which is persisted, then applied, then published; any
// failure along the way discards the overlay.
type Ledger struct {
	sync.Mutex

	store      Store
	state      *State
	publishers []Publisher
}

// NewLedger creates a ledger backed by the given store. The state is loaded from the store
// on first use.
func NewLedger(store Store) *Ledger {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Ledger{store: store}
}

// AddPublisher adds a publisher which receives the events of every committed update.
func (l *Ledger) AddPublisher(publisher Publisher) {
	l.Lock()
	defer l.Unlock()
	l.publishers = append(l.publishers, publisher)
}

func (l *Ledger) load(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) error {
	if l.state != nil {
		return nil
	}
	snap, err := l.store.Load(ctx, logger, nk)
	if err != nil {
		logger.Error("Failed to load loot ledger: %v", err)
		return err
	}
	state, err := StateFromSnapshot(snap)
	if err != nil {
		logger.Error("Failed to rebuild loot ledger: %v", err)
		return ErrInternal
	}
	l.state = state
	return nil
}

// View runs fn with read access to the committed state.
func (l *Ledger) View(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, fn func(s *State) error) error {
	l.Lock()
	defer l.Unlock()

	if err := l.load(ctx, logger, nk); err != nil {
		return err
	}
	return fn(l.state)
}

// Update runs fn in a transaction. When fn returns nil the changes are persisted and
// applied, and the queued events are sent to every publisher on behalf of userID.
func (l *Ledger) Update(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, fn func(tx *Tx) error) error {
	l.Lock()
	defer l.Unlock()

	if err := l.load(ctx, logger, nk); err != nil {
		return err
	}

	tx := newTx(l.state)
	if err := fn(tx); err != nil {
		return err
	}
	tx.counters.Sequence++

	if err := l.store.Commit(ctx, logger, nk, tx.changeset()); err != nil {
		logger.Error("Failed to persist loot ledger changes: %v", err)
		if errors.Is(err, ErrStoreConflict) {
			// Another writer moved the stored ledger on; read it back next time.
			l.state = nil
		}
		return err
	}
	l.state.apply(tx)

	if len(tx.events) > 0 {
		for _, publisher := range l.publishers {
			publisher.Send(ctx, logger, nk, userID, tx.events)
		}
	}
	return nil
}
