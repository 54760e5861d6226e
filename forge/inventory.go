package forge

// DefaultInventoryCapacity is the number of items an account may hold.
const DefaultInventoryCapacity = 20

// Item is a minted loot drop. Items are never mutated after minting; only the account
// holding them changes.
type Item struct {
	Tier int    `json:"tier"`
	ID   uint64 `json:"id"`
}

// weakestSlot returns the index of the lowest-tier item, the earliest one winning ties,
// or -1 for an empty inventory.
func weakestSlot(items []*Item) int {
	slot := -1
	for i, item := range items {
		if slot == -1 || item.Tier < items[slot].Tier {
			slot = i
		}
	}
	return slot
}

// slotOf returns the index of itemID in items or -1.
func slotOf(items []*Item, itemID uint64) int {
	for i, item := range items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// placeItem inserts item into a copy of items. When the inventory is full the weakest slot
// is replaced, but only by a strictly stronger item. It returns the new inventory, the
// evicted item if any, and false when the item was refused.
func placeItem(items []*Item, capacity int, item *Item) ([]*Item, *Item, bool) {
	if len(items) < capacity {
		out := make([]*Item, len(items), len(items)+1)
		copy(out, items)
		return append(out, item), nil, true
	}

	slot := weakestSlot(items)
	if slot == -1 || item.Tier <= items[slot].Tier {
		return items, nil, false
	}

	out := make([]*Item, len(items))
	copy(out, items)
	evicted := out[slot]
	out[slot] = item
	return out, evicted, true
}

// removeItem returns a copy of items without the slot, keeping the order of the rest.
func removeItem(items []*Item, slot int) []*Item {
	out := make([]*Item, 0, len(items)-1)
	out = append(out, items[:slot]...)
	return append(out, items[slot+1:]...)
}

// replaceItem returns a copy of items with the slot holding item.
func replaceItem(items []*Item, slot int, item *Item) []*Item {
	out := make([]*Item, len(items))
	copy(out, items)
	out[slot] = item
	return out
}

// copyItem returns a copy of item, or nil.
func copyItem(item *Item) *Item {
	if item == nil {
		return nil
	}
	c := *item
	return &c
}

func copyItems(items []*Item) []*Item {
	out := make([]*Item, len(items))
	for i, item := range items {
		c := *item
		out[i] = &c
	}
	return out
}
