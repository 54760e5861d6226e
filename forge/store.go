package forge

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"
)

// The Store persists the loot ledger. Commit must apply a changeset atomically: either every
// record in it is written or none is.
type Store interface {
	// Load returns the persisted ledger, or nil when nothing has been stored yet.
	Load(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) (*Snapshot, error)

	// Commit persists the records changed by one transaction.
	Commit(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, cs *Changeset) error
}

// MemoryStore keeps the ledger as JSON documents in memory. It is used when no durable
// storage is configured and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	counters []byte
	accounts map[string][]byte
	trades   map[uint64][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string][]byte),
		trades:   make(map[uint64][]byte),
	}
}

func (m *MemoryStore) Load(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.counters == nil {
		return nil, nil
	}
	snap := &Snapshot{}
	if err := json.Unmarshal(m.counters, &snap.Counters); err != nil {
		return nil, err
	}
	for _, data := range m.accounts {
		a := &Account{}
		if err := json.Unmarshal(data, a); err != nil {
			return nil, err
		}
		snap.Accounts = append(snap.Accounts, a)
	}
	for _, data := range m.trades {
		tr := &TradeOffer{}
		if err := json.Unmarshal(data, tr); err != nil {
			return nil, err
		}
		snap.Trades = append(snap.Trades, tr)
	}
	return snap, nil
}

func (m *MemoryStore) Commit(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, cs *Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Encode everything before touching the maps so a marshal failure writes nothing.
	counters, err := json.Marshal(cs.Counters)
	if err != nil {
		return err
	}
	accounts := make(map[string][]byte, len(cs.Accounts))
	for _, a := range cs.Accounts {
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		accounts[a.ID] = data
	}
	trades := make(map[uint64][]byte, len(cs.Trades))
	for _, tr := range cs.Trades {
		data, err := json.Marshal(tr)
		if err != nil {
			return err
		}
		trades[tr.ID] = data
	}

	m.counters = counters
	for id, data := range accounts {
		m.accounts[id] = data
	}
	for id, data := range trades {
		m.trades[id] = data
	}
	for _, id := range cs.DeletedTrades {
		delete(m.trades, id)
	}
	return nil
}
