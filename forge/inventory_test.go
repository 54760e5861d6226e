package forge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemsOfTiers(tiers ...int) []*Item {
	items := make([]*Item, len(tiers))
	for i, tier := range tiers {
		items[i] = &Item{Tier: tier, ID: uint64(i + 1)}
	}
	return items
}

func TestWeakestSlot(t *testing.T) {
	assert.Equal(t, -1, weakestSlot(nil))
	assert.Equal(t, 1, weakestSlot(itemsOfTiers(3, 1, 2, 1)))
	assert.Equal(t, 0, weakestSlot(itemsOfTiers(0, 0, 0)))
}

func TestPlaceItem_AppendsWhenNotFull(t *testing.T) {
	items := itemsOfTiers(2, 3)
	out, evicted, ok := placeItem(items, 3, &Item{Tier: 0, ID: 10})
	require.True(t, ok)
	assert.Nil(t, evicted)
	assert.Len(t, out, 3)
	assert.Equal(t, uint64(10), out[2].ID)
	assert.Len(t, items, 2, "input must not be modified")
}

func TestPlaceItem_ReplacesEarliestWeakest(t *testing.T) {
	items := itemsOfTiers(2, 1, 5, 1)
	out, evicted, ok := placeItem(items, 4, &Item{Tier: 2, ID: 10})
	require.True(t, ok)
	require.NotNil(t, evicted)
	assert.Equal(t, uint64(2), evicted.ID)
	assert.Equal(t, []uint64{1, 10, 3, 4}, ids(out))
	assert.Equal(t, uint64(2), items[1].ID, "input must not be modified")
}

func TestPlaceItem_RefusesEqualOrWeaker(t *testing.T) {
	items := itemsOfTiers(2, 1, 5, 1)
	out, evicted, ok := placeItem(items, 4, &Item{Tier: 1, ID: 10})
	assert.False(t, ok)
	assert.Nil(t, evicted)
	assert.Equal(t, ids(items), ids(out))
}

func TestRemoveItem_KeepsOrder(t *testing.T) {
	items := itemsOfTiers(0, 1, 2, 3)
	out := removeItem(items, 1)
	assert.Equal(t, []uint64{1, 3, 4}, ids(out))
	assert.Len(t, items, 4)
}

func TestReplaceItem(t *testing.T) {
	items := itemsOfTiers(0, 1)
	out := replaceItem(items, 0, &Item{Tier: 9, ID: 99})
	assert.Equal(t, []uint64{99, 2}, ids(out))
	assert.Equal(t, uint64(1), items[0].ID)
}

func TestSlotOf(t *testing.T) {
	items := itemsOfTiers(0, 1, 2)
	assert.Equal(t, 2, slotOf(items, 3))
	assert.Equal(t, -1, slotOf(items, 4))
}

func ids(items []*Item) []uint64 {
	out := make([]uint64, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
