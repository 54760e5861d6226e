package forge

import (
	"fmt"
	"sort"
)

// Counters are the global monotonic counters. None of them is ever decreased.
type Counters struct {
	NextItemID    uint64 `json:"next_item_id"`
	NextTradeID   uint64 `json:"next_trade_id"`
	TotalKills    uint64 `json:"total_kills"`
	FeesCollected int64  `json:"fees_collected"`
	// Sequence counts committed transactions.
	Sequence uint64 `json:"sequence"`
}

// Account is the per-account record: the inventory plus the kill nonce and count.
type Account struct {
	ID    string  `json:"id"`
	Items []*Item `json:"items"`
	Nonce uint64  `json:"nonce"`
	Kills uint64  `json:"kills"`
	// JoinOrder is the 1-based position of the account among known accounts.
	JoinOrder uint64 `json:"join_order"`
}

func (a *Account) clone() *Account {
	c := *a
	c.Items = append([]*Item(nil), a.Items...)
	return &c
}

// Snapshot is the persisted form of a State. The ownership ledger is not stored: it is
// rebuilt from the inventories on load.
type Snapshot struct {
	Counters Counters      `json:"counters"`
	Accounts []*Account    `json:"accounts"`
	Trades   []*TradeOffer `json:"trades"`
}

// Changeset is everything a single transaction changed. Accounts and Trades hold the
// full new records.
type Changeset struct {
	Counters      Counters
	Accounts      []*Account
	Trades        []*TradeOffer
	DeletedTrades []uint64
}

// State is the in-memory ledger: inventories, the ownership index, trade offers and
// counters. It is only mutated by applying a committed Tx.
type State struct {
	counters Counters
	accounts map[string]*Account
	order    []string
	owners   map[uint64]string
	trades   map[uint64]*TradeOffer
}

// NewState returns an empty state. Item and trade ids start at 1.
func NewState() *State {
	return &State{
		counters: Counters{NextItemID: 1, NextTradeID: 1},
		accounts: make(map[string]*Account),
		owners:   make(map[uint64]string),
		trades:   make(map[uint64]*TradeOffer),
	}
}

// StateFromSnapshot rebuilds a state, including the ownership index, from a snapshot.
func StateFromSnapshot(snap *Snapshot) (*State, error) {
	s := NewState()
	if snap == nil {
		return s, nil
	}
	if snap.Counters.NextItemID > 0 {
		s.counters = snap.Counters
	}
	if s.counters.NextTradeID == 0 {
		s.counters.NextTradeID = 1
	}

	accounts := append([]*Account(nil), snap.Accounts...)
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].JoinOrder < accounts[j].JoinOrder })
	for _, a := range accounts {
		if _, ok := s.accounts[a.ID]; ok {
			return nil, fmt.Errorf("duplicate account %q", a.ID)
		}
		for _, item := range a.Items {
			if !ValidTier(item.Tier) {
				return nil, fmt.Errorf("item %d held by %q: %w", item.ID, a.ID, ErrInvalidTier)
			}
			if holder, ok := s.owners[item.ID]; ok {
				return nil, fmt.Errorf("item %d held by both %q and %q", item.ID, holder, a.ID)
			}
			if item.ID >= s.counters.NextItemID {
				return nil, fmt.Errorf("item %d held by %q was never minted", item.ID, a.ID)
			}
			s.owners[item.ID] = a.ID
		}
		s.accounts[a.ID] = a.clone()
		s.order = append(s.order, a.ID)
	}
	for _, tr := range snap.Trades {
		c := *tr
		s.trades[tr.ID] = &c
	}
	return s, nil
}

// Snapshot returns a deep copy of the state in persisted form.
func (s *State) Snapshot() *Snapshot {
	snap := &Snapshot{Counters: s.counters}
	for _, id := range s.order {
		a := s.accounts[id].clone()
		a.Items = copyItems(a.Items)
		snap.Accounts = append(snap.Accounts, a)
	}
	for _, id := range s.tradeIDs() {
		c := *s.trades[id]
		snap.Trades = append(snap.Trades, &c)
	}
	return snap
}

// Counters returns the current counters.
func (s *State) Counters() Counters {
	return s.counters
}

// Account returns the account record or nil if the account is unknown. Callers must not
// modify it.
func (s *State) Account(id string) *Account {
	return s.accounts[id]
}

// Accounts returns known account ids in the order they became known.
func (s *State) Accounts() []string {
	return append([]string(nil), s.order...)
}

// Owner returns the holder of itemID.
func (s *State) Owner(itemID uint64) (string, bool) {
	owner, ok := s.owners[itemID]
	return owner, ok
}

// Trade returns the offer or nil. Callers must not modify it.
func (s *State) Trade(id uint64) *TradeOffer {
	return s.trades[id]
}

func (s *State) tradeIDs() []uint64 {
	ids := make([]uint64, 0, len(s.trades))
	for id := range s.trades {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// apply folds a committed transaction into the state.
func (s *State) apply(tx *Tx) {
	s.counters = tx.counters
	for _, id := range tx.joined {
		s.order = append(s.order, id)
	}
	for id, a := range tx.accounts {
		s.accounts[id] = a
	}
	for itemID, owner := range tx.owners {
		if owner == "" {
			delete(s.owners, itemID)
		} else {
			s.owners[itemID] = owner
		}
	}
	for id, tr := range tx.trades {
		if tr == nil {
			delete(s.trades, id)
		} else {
			s.trades[id] = tr
		}
	}
}

// Tx is a write overlay on a State. Reads see staged changes; nothing reaches the State
// until the ledger commits the transaction, so an abandoned Tx leaves no trace.
type Tx struct {
	base     *State
	counters Counters
	accounts map[string]*Account
	joined   []string
	// owners maps to "" for an id leaving the ledger.
	owners map[uint64]string
	// trades maps to nil for a deleted offer.
	trades map[uint64]*TradeOffer
	events []*PublisherEvent
}

func newTx(base *State) *Tx {
	return &Tx{
		base:     base,
		counters: base.counters,
		accounts: make(map[string]*Account),
		owners:   make(map[uint64]string),
		trades:   make(map[uint64]*TradeOffer),
	}
}

// Counters returns the staged counters for modification.
func (tx *Tx) Counters() *Counters {
	return &tx.counters
}

// Account returns the staged view of an account, or nil if it is unknown. The result
// must not be modified; use MutableAccount instead.
func (tx *Tx) Account(id string) *Account {
	if a, ok := tx.accounts[id]; ok {
		return a
	}
	return tx.base.accounts[id]
}

// MutableAccount returns a staged copy of the account, registering it as known if needed.
func (tx *Tx) MutableAccount(id string) *Account {
	if a, ok := tx.accounts[id]; ok {
		return a
	}
	var a *Account
	if existing, ok := tx.base.accounts[id]; ok {
		a = existing.clone()
	} else {
		tx.joined = append(tx.joined, id)
		a = &Account{ID: id, JoinOrder: uint64(len(tx.base.order) + len(tx.joined))}
	}
	tx.accounts[id] = a
	return a
}

// Owner returns the staged holder of itemID.
func (tx *Tx) Owner(itemID uint64) (string, bool) {
	if owner, ok := tx.owners[itemID]; ok {
		return owner, owner != ""
	}
	return tx.base.Owner(itemID)
}

// SetOwner records itemID as held by account.
func (tx *Tx) SetOwner(itemID uint64, account string) {
	tx.owners[itemID] = account
}

// ClearOwner removes itemID from the ledger.
func (tx *Tx) ClearOwner(itemID uint64) {
	tx.owners[itemID] = ""
}

// Trade returns the staged offer or nil. The result must not be modified.
func (tx *Tx) Trade(id uint64) *TradeOffer {
	if tr, ok := tx.trades[id]; ok {
		return tr
	}
	return tx.base.trades[id]
}

// PutTrade stages a new or updated offer.
func (tx *Tx) PutTrade(tr *TradeOffer) {
	tx.trades[tr.ID] = tr
}

// DeleteTrade stages removal of an offer.
func (tx *Tx) DeleteTrade(id uint64) {
	tx.trades[id] = nil
}

// Publish queues an event to be sent once the transaction commits.
func (tx *Tx) Publish(ev *PublisherEvent) {
	tx.events = append(tx.events, ev)
}

func (tx *Tx) changeset() *Changeset {
	cs := &Changeset{Counters: tx.counters}
	ids := make([]string, 0, len(tx.accounts))
	for id := range tx.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		cs.Accounts = append(cs.Accounts, tx.accounts[id])
	}
	tradeIDs := make([]uint64, 0, len(tx.trades))
	for id := range tx.trades {
		tradeIDs = append(tradeIDs, id)
	}
	sort.Slice(tradeIDs, func(i, j int) bool { return tradeIDs[i] < tradeIDs[j] })
	for _, id := range tradeIDs {
		if tr := tx.trades[id]; tr != nil {
			cs.Trades = append(cs.Trades, tr)
		} else {
			cs.DeletedTrades = append(cs.DeletedTrades, id)
		}
	}
	return cs
}
