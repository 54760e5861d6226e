package forge

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaLootSystem implements the LootSystem interface on top of the shared Ledger.
type NakamaLootSystem struct {
	config *LootConfig
	ledger *Ledger

	mu      sync.RWMutex
	source  EnvironmentSource
	deriver Deriver
}

// NewNakamaLootSystem creates a loot system writing to ledger.
func NewNakamaLootSystem(config *LootConfig, ledger *Ledger) *NakamaLootSystem {
	if config == nil {
		config = &LootConfig{}
	}
	if ledger == nil {
		ledger = NewLedger(nil)
	}
	return &NakamaLootSystem{
		config:  config,
		ledger:  ledger,
		source:  NewCryptoEnvironmentSource(config.CapacityHint, config.FeeHint),
		deriver: KeccakDeriver{},
	}
}

func (l *NakamaLootSystem) GetType() SystemType {
	return SystemTypeLoot
}

func (l *NakamaLootSystem) GetConfig() any {
	return l.config
}

func (l *NakamaLootSystem) SetEnvironmentSource(source EnvironmentSource) {
	l.mu.Lock()
	l.source = source
	l.mu.Unlock()
}

func (l *NakamaLootSystem) SetDeriver(deriver Deriver) {
	l.mu.Lock()
	l.deriver = deriver
	l.mu.Unlock()
}

func (l *NakamaLootSystem) Kill(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, paid int64) (*KillResult, error) {
	if userID == "" {
		return nil, ErrAccountRequired
	}
	fee := l.config.KillFee
	if paid < fee {
		return nil, ErrInsufficientFee
	}

	l.mu.RLock()
	source, deriver := l.source, l.deriver
	l.mu.RUnlock()

	var result *KillResult
	err := l.ledger.Update(ctx, logger, nk, userID, func(tx *Tx) error {
		counters := tx.Counters()
		account := tx.MutableAccount(userID)
		account.Nonce++

		env, err := source.Sample(ctx, counters.Sequence)
		if err != nil {
			logger.Error("Failed to sample kill environment: %v", err)
			return ErrInternal
		}
		rolls := deriver.Derive(env, userID, account.Nonce, counters.TotalKills)

		baseTier := RollTier(rolls.Base)
		boost, err := AggregateBoost(account.Items)
		if err != nil {
			logger.Error("Inventory of %s holds an invalid tier: %v", userID, err)
			return err
		}
		tier, upgraded, err := ApplyUpgrade(baseTier, boost, rolls.Upgrade)
		if err != nil {
			return err
		}

		// The id is consumed even when the item is discarded below.
		item := &Item{Tier: tier, ID: counters.NextItemID}
		counters.NextItemID++

		items, evicted, kept := placeItem(account.Items, l.config.capacity(), item)
		if kept {
			account.Items = items
			tx.SetOwner(item.ID, userID)
			if evicted != nil {
				tx.ClearOwner(evicted.ID)
			}
		}

		account.Kills++
		counters.TotalKills++
		counters.FeesCollected += fee

		// The ledger keeps item; callers and publishers get their own copies.
		result = &KillResult{
			Item:     copyItem(item),
			BaseRoll: rolls.Base,
			BaseTier: baseTier,
			Upgraded: upgraded,
			Kept:     kept,
			Evicted:  copyItem(evicted),
			Fee:      fee,
			Refund:   paid - fee,
		}

		metadata := map[string]string{
			"base_roll":  formatUint(rolls.Base),
			"base_tier":  strconv.Itoa(baseTier),
			"final_tier": strconv.Itoa(tier),
			"item_id":    formatUint(item.ID),
			"upgraded":   strconv.FormatBool(upgraded),
			"kept":       strconv.FormatBool(kept),
		}
		if evicted != nil {
			metadata["evicted_item_id"] = formatUint(evicted.ID)
		}
		published := *result
		published.Item, published.Evicted = copyItem(item), copyItem(evicted)
		tx.Publish(newPublisherEvent(l, EventKillResult, formatUint(item.ID), &published, metadata))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (l *NakamaLootSystem) ListInventory(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) ([]*Item, error) {
	items := make([]*Item, 0)
	err := l.ledger.View(ctx, logger, nk, func(s *State) error {
		if account := s.Account(userID); account != nil {
			items = copyItems(account.Items)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (l *NakamaLootSystem) GetBoost(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (int64, error) {
	var boost int64
	err := l.ledger.View(ctx, logger, nk, func(s *State) error {
		account := s.Account(userID)
		if account == nil {
			return nil
		}
		var err error
		boost, err = AggregateBoost(account.Items)
		return err
	})
	return boost, err
}

func (l *NakamaLootSystem) GetKillCounts(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*KillCounts, error) {
	counts := &KillCounts{}
	err := l.ledger.View(ctx, logger, nk, func(s *State) error {
		counts.Total = s.Counters().TotalKills
		if account := s.Account(userID); account != nil {
			counts.Account = account.Kills
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (l *NakamaLootSystem) ListAccounts(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) ([]string, error) {
	var accounts []string
	err := l.ledger.View(ctx, logger, nk, func(s *State) error {
		accounts = s.Accounts()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (l *NakamaLootSystem) TransferItem(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, toUserID string, itemID uint64) (*TransferResult, error) {
	if userID == "" {
		return nil, ErrAccountRequired
	}
	if toUserID == "" || toUserID == uuid.Nil.String() || toUserID == userID {
		return nil, ErrInvalidTarget
	}

	var result *TransferResult
	err := l.ledger.Update(ctx, logger, nk, userID, func(tx *Tx) error {
		if owner, ok := tx.Owner(itemID); !ok || owner != userID {
			return ErrOwnership
		}

		source := tx.MutableAccount(userID)
		slot := slotOf(source.Items, itemID)
		if slot == -1 {
			logger.Error("Item %d is registered to %s but missing from its inventory", itemID, userID)
			return ErrInternal
		}
		item := source.Items[slot]

		var destItems []*Item
		if dest := tx.Account(toUserID); dest != nil {
			destItems = dest.Items
		}
		placed, evicted, ok := placeItem(destItems, l.config.capacity(), item)
		if !ok {
			return ErrCapacityRejected
		}

		source.Items = removeItem(source.Items, slot)
		tx.MutableAccount(toUserID).Items = placed
		tx.SetOwner(itemID, toUserID)
		if evicted != nil {
			tx.ClearOwner(evicted.ID)
		}

		result = &TransferResult{
			Item:    copyItem(item),
			From:    userID,
			To:      toUserID,
			Evicted: copyItem(evicted),
		}

		metadata := map[string]string{
			"item_id": formatUint(item.ID),
			"tier":    strconv.Itoa(item.Tier),
			"from":    userID,
			"to":      toUserID,
		}
		if evicted != nil {
			metadata["evicted_item_id"] = formatUint(evicted.ID)
		}
		published := *result
		published.Item, published.Evicted = copyItem(item), copyItem(evicted)
		tx.Publish(newPublisherEvent(l, EventItemTransferred, formatUint(item.ID), &published, metadata))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
