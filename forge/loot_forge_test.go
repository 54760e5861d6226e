package forge

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKill_FirstKillMintsItemOne(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, nil, nil)
	deriver.rolls = []Rolls{{Base: 50_000_000, Upgrade: 0}}

	result, err := loot.Kill(ctx, &mockLogger{}, nil, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, &Item{Tier: 1, ID: 1}, result.Item)
	assert.Equal(t, 1, result.BaseTier)
	assert.False(t, result.Upgraded, "an empty inventory has no boost")
	assert.True(t, result.Kept)

	items, err := loot.ListInventory(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, []*Item{{Tier: 1, ID: 1}}, items)

	counts, err := loot.GetKillCounts(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, &KillCounts{Total: 1, Account: 1}, counts)

	accounts, err := loot.ListAccounts(ctx, &mockLogger{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, accounts)
}

func TestKill_FeeAndRefund(t *testing.T) {
	ctx := context.Background()
	loot, _ := newTestLoot(t, &LootConfig{KillFee: 10}, nil)

	_, err := loot.Kill(ctx, &mockLogger{}, nil, "alice", 9)
	assert.ErrorIs(t, err, ErrInsufficientFee)

	result, err := loot.Kill(ctx, &mockLogger{}, nil, "alice", 25)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.Fee)
	assert.Equal(t, int64(15), result.Refund)

	require.NoError(t, loot.ledger.View(ctx, &mockLogger{}, nil, func(s *State) error {
		assert.Equal(t, int64(10), s.Counters().FeesCollected)
		assert.Equal(t, uint64(1), s.Counters().TotalKills)
		return nil
	}))
}

func TestKill_RequiresAccount(t *testing.T) {
	loot, _ := newTestLoot(t, nil, nil)
	_, err := loot.Kill(context.Background(), &mockLogger{}, nil, "", 0)
	assert.ErrorIs(t, err, ErrAccountRequired)
}

func TestKill_DeriverInputs(t *testing.T) {
	loot, deriver := newTestLoot(t, nil, nil)
	killTiers(t, loot, deriver, "alice", 0, 0)
	killTiers(t, loot, deriver, "bob", 0)

	require.Len(t, deriver.calls, 3)
	assert.Equal(t, derivation{account: "alice", nonce: 1, globalKills: 0, ordinal: 0}, deriver.calls[0])
	assert.Equal(t, derivation{account: "alice", nonce: 2, globalKills: 1, ordinal: 1}, deriver.calls[1])
	assert.Equal(t, derivation{account: "bob", nonce: 1, globalKills: 2, ordinal: 2}, deriver.calls[2])
}

func TestKill_UpgradeUsesHeldItems(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, nil, nil)
	killTiers(t, loot, deriver, "alice", 5) // boost 500

	deriver.rolls = []Rolls{{Base: rollForTier(2), Upgrade: 499}}
	result, err := loot.Kill(ctx, &mockLogger{}, nil, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.BaseTier)
	assert.Equal(t, 3, result.Item.Tier)
	assert.True(t, result.Upgraded)

	deriver.rolls = []Rolls{{Base: rollForTier(2), Upgrade: 800}}
	result, err = loot.Kill(ctx, &mockLogger{}, nil, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Item.Tier, "boost is now 800, a roll of 800 must not upgrade")
	assert.False(t, result.Upgraded)

	boost, err := loot.GetBoost(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(500+300+200), boost)
}

func TestKill_FullInventoryEvictsWeakest(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, &LootConfig{InventoryCapacity: 3}, nil)
	killTiers(t, loot, deriver, "alice", 2, 1, 1)

	results := killTiers(t, loot, deriver, "alice", 4)
	require.True(t, results[0].Kept)
	require.NotNil(t, results[0].Evicted)
	assert.Equal(t, uint64(2), results[0].Evicted.ID, "earliest of the tier 1 items")

	items, err := loot.ListInventory(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 4, 3}, ids(items))

	require.NoError(t, loot.ledger.View(ctx, &mockLogger{}, nil, func(s *State) error {
		_, ok := s.Owner(2)
		assert.False(t, ok, "evicted item leaves the ledger")
		owner, _ := s.Owner(4)
		assert.Equal(t, "alice", owner)
		return nil
	}))
}

func TestKill_DiscardKeepsIdGap(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, &LootConfig{InventoryCapacity: 2}, nil)
	killTiers(t, loot, deriver, "alice", 3, 3)

	results := killTiers(t, loot, deriver, "alice", 3)
	assert.False(t, results[0].Kept)
	assert.Equal(t, uint64(3), results[0].Item.ID)

	results = killTiers(t, loot, deriver, "alice", 4)
	assert.Equal(t, uint64(4), results[0].Item.ID, "discarded id 3 is never reused")

	require.NoError(t, loot.ledger.View(ctx, &mockLogger{}, nil, func(s *State) error {
		_, ok := s.Owner(3)
		assert.False(t, ok)
		assert.Equal(t, uint64(4), s.Account("alice").Kills)
		return nil
	}))
}

func TestKill_EnvironmentFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	loot, _ := newTestLoot(t, nil, nil)
	loot.SetEnvironmentSource(failingSource{})

	_, err := loot.Kill(ctx, &mockLogger{}, nil, "alice", 0)
	assert.ErrorIs(t, err, ErrInternal)

	accounts, err := loot.ListAccounts(ctx, &mockLogger{}, nil)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestKill_PublishesOneEvent(t *testing.T) {
	loot, deriver := newTestLoot(t, nil, nil)
	publisher := &MemoryPublisher{}
	loot.ledger.AddPublisher(publisher)

	killTiers(t, loot, deriver, "alice", 0)
	_, err := loot.TransferItem(context.Background(), &mockLogger{}, nil, "alice", "bob", 42)
	require.ErrorIs(t, err, ErrOwnership)

	events := publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventKillResult, events[0].Name)
	assert.Equal(t, "1", events[0].Metadata["item_id"])
	assert.Equal(t, "0", events[0].Metadata["final_tier"])
	assert.Equal(t, "true", events[0].Metadata["kept"])
	assert.NotEmpty(t, events[0].Id)
	assert.Equal(t, SystemTypeLoot, events[0].System.GetType())
}

func TestListInventory_UnknownAccount(t *testing.T) {
	loot, _ := newTestLoot(t, nil, nil)
	items, err := loot.ListInventory(context.Background(), &mockLogger{}, nil, "nobody")
	require.NoError(t, err)
	assert.Empty(t, items)

	boost, err := loot.GetBoost(context.Background(), &mockLogger{}, nil, "nobody")
	require.NoError(t, err)
	assert.Zero(t, boost)
}

func TestListInventory_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, nil, nil)
	killTiers(t, loot, deriver, "alice", 2)

	items, err := loot.ListInventory(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	items[0].Tier = 9

	items, err = loot.ListInventory(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, items[0].Tier)
}

func TestKill_ResultDoesNotAliasLedger(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, nil, nil)
	publisher := &MemoryPublisher{}
	loot.ledger.AddPublisher(publisher)
	deriver.rolls = []Rolls{{Base: 50_000_000, Upgrade: UpgradeRollRange - 1}}

	result, err := loot.Kill(ctx, &mockLogger{}, nil, "alice", 0)
	require.NoError(t, err)
	result.Item.Tier = 9
	events := publisher.Events()
	require.Len(t, events, 1)
	events[0].Source.(*KillResult).Item.Tier = 8

	items, err := loot.ListInventory(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, []*Item{{Tier: 1, ID: 1}}, items)
	boost, err := loot.GetBoost(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), boost)
}

func TestTransferItem_ResultDoesNotAliasLedger(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, &LootConfig{InventoryCapacity: 1}, nil)
	killTiers(t, loot, deriver, "bob", 0)
	killTiers(t, loot, deriver, "alice", 3)

	result, err := loot.TransferItem(ctx, &mockLogger{}, nil, "alice", "bob", 2)
	require.NoError(t, err)
	require.NotNil(t, result.Evicted)
	result.Item.Tier = 9
	result.Evicted.Tier = 9

	bob, err := loot.ListInventory(ctx, &mockLogger{}, nil, "bob")
	require.NoError(t, err)
	assert.Equal(t, []*Item{{Tier: 3, ID: 2}}, bob)
}

func TestTransferItem_MovesItem(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, nil, nil)
	killTiers(t, loot, deriver, "alice", 1, 2, 3)

	result, err := loot.TransferItem(ctx, &mockLogger{}, nil, "alice", "bob", 2)
	require.NoError(t, err)
	assert.Equal(t, &Item{Tier: 2, ID: 2}, result.Item)
	assert.Nil(t, result.Evicted)

	alice, err := loot.ListInventory(ctx, &mockLogger{}, nil, "alice")
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, ids(alice))
	bob, err := loot.ListInventory(ctx, &mockLogger{}, nil, "bob")
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, ids(bob))

	accounts, err := loot.ListAccounts(ctx, &mockLogger{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, accounts, "receiving an item makes an account known")
}

func TestTransferItem_InvalidTargets(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, nil, nil)
	killTiers(t, loot, deriver, "alice", 1)

	for _, to := range []string{"", uuid.Nil.String(), "alice"} {
		_, err := loot.TransferItem(ctx, &mockLogger{}, nil, "alice", to, 1)
		assert.ErrorIs(t, err, ErrInvalidTarget, "to=%q", to)
	}
}

func TestTransferItem_NotOwner(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, nil, nil)
	killTiers(t, loot, deriver, "alice", 1)

	_, err := loot.TransferItem(ctx, &mockLogger{}, nil, "bob", "carol", 1)
	assert.ErrorIs(t, err, ErrOwnership)
	_, err = loot.TransferItem(ctx, &mockLogger{}, nil, "alice", "bob", 99)
	assert.ErrorIs(t, err, ErrOwnership)
}

func TestTransferItem_FullDestinationRejectsWeakItem(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, nil, nil)
	tiers := make([]int, DefaultInventoryCapacity)
	killTiers(t, loot, deriver, "bob", tiers...)
	killTiers(t, loot, deriver, "alice", 0)
	itemID := uint64(DefaultInventoryCapacity + 1)

	var before *Snapshot
	require.NoError(t, loot.ledger.View(ctx, &mockLogger{}, nil, func(s *State) error {
		before = s.Snapshot()
		return nil
	}))

	_, err := loot.TransferItem(ctx, &mockLogger{}, nil, "alice", "bob", itemID)
	assert.ErrorIs(t, err, ErrCapacityRejected)

	require.NoError(t, loot.ledger.View(ctx, &mockLogger{}, nil, func(s *State) error {
		assert.Equal(t, before, s.Snapshot())
		return nil
	}))
}

func TestTransferItem_FullDestinationEvictsWeakest(t *testing.T) {
	ctx := context.Background()
	loot, deriver := newTestLoot(t, &LootConfig{InventoryCapacity: 2}, nil)
	killTiers(t, loot, deriver, "bob", 0, 1)
	killTiers(t, loot, deriver, "alice", 5)

	result, err := loot.TransferItem(ctx, &mockLogger{}, nil, "alice", "bob", 3)
	require.NoError(t, err)
	require.NotNil(t, result.Evicted)
	assert.Equal(t, uint64(1), result.Evicted.ID)

	bob, err := loot.ListInventory(ctx, &mockLogger{}, nil, "bob")
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 2}, ids(bob))

	require.NoError(t, loot.ledger.View(ctx, &mockLogger{}, nil, func(s *State) error {
		_, ok := s.Owner(1)
		assert.False(t, ok)
		owner, _ := s.Owner(3)
		assert.Equal(t, "bob", owner)
		assert.Empty(t, s.Account("alice").Items)
		return nil
	}))
}
