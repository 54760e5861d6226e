package forge

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs kills, a transfer and a few trades through a ledger on store, then
// checks that a fresh ledger on the same store sees exactly the committed state.
func exerciseStore(t *testing.T, store Store, nk *testNakamaModule) {
	t.Helper()
	ctx := context.Background()
	logger := &mockLogger{}

	ledger := NewLedger(store)
	loot := NewNakamaLootSystem(&LootConfig{InventoryCapacity: 3}, ledger)
	deriver := &pinnedDeriver{}
	loot.SetDeriver(deriver)
	trades := NewNakamaTradesSystem(nil, ledger)

	for _, tier := range []int{1, 2, 3, 0, 5} {
		deriver.rolls = append(deriver.rolls, Rolls{Base: rollForTier(tier), Upgrade: UpgradeRollRange - 1})
		_, err := loot.Kill(ctx, logger, nk, "alice", 0)
		require.NoError(t, err)
	}
	deriver.rolls = append(deriver.rolls, Rolls{Base: rollForTier(4), Upgrade: UpgradeRollRange - 1})
	_, err := loot.Kill(ctx, logger, nk, "bob", 0)
	require.NoError(t, err)

	_, err = loot.TransferItem(ctx, logger, nk, "alice", "carol", 2)
	require.NoError(t, err)

	first, err := trades.ProposeTrade(ctx, logger, nk, "alice", "bob", 3, 6)
	require.NoError(t, err)
	_, err = trades.AcceptTrade(ctx, logger, nk, "bob", first.ID)
	require.NoError(t, err)
	second, err := trades.ProposeTrade(ctx, logger, nk, "alice", "carol", 5, 2)
	require.NoError(t, err)
	require.NoError(t, trades.CancelTrade(ctx, logger, nk, "alice", second.ID))
	_, err = trades.ProposeTrade(ctx, logger, nk, "carol", "bob", 2, 3)
	require.NoError(t, err)

	var committed *Snapshot
	require.NoError(t, ledger.View(ctx, logger, nk, func(s *State) error {
		committed = s.Snapshot()
		return nil
	}))

	reloaded := NewLedger(store)
	require.NoError(t, reloaded.View(ctx, logger, nk, func(s *State) error {
		assert.Equal(t, committed, s.Snapshot())
		for _, tc := range []struct {
			item  uint64
			owner string
		}{{2, "carol"}, {3, "bob"}, {5, "alice"}, {6, "alice"}} {
			owner, ok := s.Owner(tc.item)
			assert.True(t, ok, "item %d", tc.item)
			assert.Equal(t, tc.owner, owner, "item %d", tc.item)
		}
		_, ok := s.Owner(1)
		assert.False(t, ok, "item 1 was evicted")
		_, ok = s.Owner(4)
		assert.False(t, ok, "item 4 was discarded")
		assert.Nil(t, s.Trade(second.ID))
		assert.True(t, s.Trade(first.ID).Executed)
		assert.Equal(t, []string{"alice", "bob", "carol"}, s.Accounts())
		return nil
	}))
}

func TestMemoryStore_RoundTrip(t *testing.T) {
	exerciseStore(t, NewMemoryStore(), nil)
}

func TestMemoryStore_EmptyLoad(t *testing.T) {
	snap, err := NewMemoryStore().Load(context.Background(), &mockLogger{}, nil)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestNakamaStore_RoundTrip(t *testing.T) {
	nk := newTestNakama(t)
	exerciseStore(t, NewNakamaStore(), nk)

	assert.Len(t, nk.collection(lootAccountsCollection), 3)
	assert.Len(t, nk.collection(lootTradesCollection), 2)
	assert.Len(t, nk.collection(lootStorageCollection), 1)
}

func TestNakamaStore_PaginatesAccounts(t *testing.T) {
	ctx := context.Background()
	nk := newTestNakama(t)
	ledger := NewLedger(NewNakamaStore())
	loot := NewNakamaLootSystem(nil, ledger)
	loot.SetDeriver(&pinnedDeriver{})

	const accounts = lootStorageListPageSize + 5
	for i := 0; i < accounts; i++ {
		_, err := loot.Kill(ctx, &mockLogger{}, nk, "account-"+formatUint(uint64(i)), 0)
		require.NoError(t, err)
	}

	reloaded := NewNakamaLootSystem(nil, NewLedger(NewNakamaStore()))
	all, err := reloaded.ListAccounts(ctx, &mockLogger{}, nk)
	require.NoError(t, err)
	assert.Len(t, all, accounts)
	assert.Equal(t, "account-0", all[0])
}

func TestNakamaStore_ConflictReloads(t *testing.T) {
	ctx := context.Background()
	nk := newTestNakama(t)

	nodeA := NewNakamaLootSystem(nil, NewLedger(NewNakamaStore()))
	nodeA.SetDeriver(&pinnedDeriver{})
	nodeB := NewNakamaLootSystem(nil, NewLedger(NewNakamaStore()))
	nodeB.SetDeriver(&pinnedDeriver{})

	// Both nodes load the empty ledger before either writes.
	_, err := nodeA.ListAccounts(ctx, &mockLogger{}, nk)
	require.NoError(t, err)
	_, err = nodeB.ListAccounts(ctx, &mockLogger{}, nk)
	require.NoError(t, err)

	_, err = nodeA.Kill(ctx, &mockLogger{}, nk, "alice", 0)
	require.NoError(t, err)

	_, err = nodeB.Kill(ctx, &mockLogger{}, nk, "bob", 0)
	assert.ErrorIs(t, err, ErrStoreConflict)

	// The failed node reloads and then sees the other node's kill.
	result, err := nodeB.Kill(ctx, &mockLogger{}, nk, "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Item.ID)
}

func TestNakamaStore_WriteFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	nk := newTestNakama(t)
	loot := NewNakamaLootSystem(nil, NewLedger(NewNakamaStore()))
	loot.SetDeriver(&pinnedDeriver{})

	nk.failMultiUpdate = errors.New("db unavailable")
	_, err := loot.Kill(ctx, &mockLogger{}, nk, "alice", 0)
	assert.ErrorIs(t, err, ErrStoreConflict)

	result, err := loot.Kill(ctx, &mockLogger{}, nk, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Item.ID)

	counts, err := loot.GetKillCounts(ctx, &mockLogger{}, nk, "alice")
	require.NoError(t, err)
	assert.Equal(t, &KillCounts{Total: 1, Account: 1}, counts)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "ledger", "loot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exerciseStore(t, store, nil)
}

func TestSQLiteStore_ReopenKeepsLedger(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "loot.db")

	store, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	loot := NewNakamaLootSystem(nil, NewLedger(store))
	loot.SetDeriver(&pinnedDeriver{rolls: []Rolls{{Base: rollForTier(6), Upgrade: 0}}})
	_, err = loot.Kill(ctx, &mockLogger{}, nil, "alice", 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = OpenSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	items, err := NewNakamaLootSystem(nil, NewLedger(store)).ListInventory(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, []*Item{{Tier: 6, ID: 1}}, items)
}

func TestSQLiteStore_ConflictReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "loot.db")

	storeA, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storeA.Close() })
	storeB, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storeB.Close() })

	nodeA := NewNakamaLootSystem(nil, NewLedger(storeA))
	nodeA.SetDeriver(&pinnedDeriver{})
	nodeB := NewNakamaLootSystem(nil, NewLedger(storeB))
	nodeB.SetDeriver(&pinnedDeriver{})

	_, err = nodeA.ListAccounts(ctx, &mockLogger{}, nil)
	require.NoError(t, err)
	_, err = nodeB.ListAccounts(ctx, &mockLogger{}, nil)
	require.NoError(t, err)

	_, err = nodeA.Kill(ctx, &mockLogger{}, nil, "alice", 0)
	require.NoError(t, err)

	_, err = nodeB.Kill(ctx, &mockLogger{}, nil, "bob", 0)
	assert.ErrorIs(t, err, ErrStoreConflict)

	result, err := nodeB.Kill(ctx, &mockLogger{}, nil, "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Item.ID)

	items, err := nodeB.ListInventory(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids(items), "the other node's kill survived")
}

func TestSQLiteStore_EmptyPath(t *testing.T) {
	_, err := OpenSQLiteStore("")
	assert.Error(t, err)
}
