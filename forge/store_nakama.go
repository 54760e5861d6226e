package forge

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	lootStorageCollection     = "loot"
	lootCountersStorageKey    = "counters"
	lootAccountsCollection    = "loot_accounts"
	lootTradesCollection      = "loot_trades"
	lootStorageListPageSize   = 100
	lootStorageVersionMissing = "*"
)

// NakamaStore persists the ledger as system-owned Nakama storage objects: one counters
// object, one object per account and one per trade offer. Every commit is a single
// MultiUpdate call, and the counters object is written with an expected version so two
// nodes cannot silently overwrite each other.
type NakamaStore struct {
	countersVersion string
}

// NewNakamaStore creates a store backed by the Nakama storage engine.
func NewNakamaStore() *NakamaStore {
	return &NakamaStore{countersVersion: lootStorageVersionMissing}
}

func (s *NakamaStore) Load(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) (*Snapshot, error) {
	objects, err := nk.StorageRead(ctx, []*runtime.StorageRead{
		{
			Collection: lootStorageCollection,
			Key:        lootCountersStorageKey,
			UserID:     "",
		},
	})
	if err != nil {
		logger.Error("Failed to read loot counters: %v", err)
		return nil, ErrInternal
	}
	if len(objects) == 0 || objects[0] == nil || objects[0].Value == "" {
		s.countersVersion = lootStorageVersionMissing
		return nil, nil
	}

	snap := &Snapshot{}
	if err := json.Unmarshal([]byte(objects[0].Value), &snap.Counters); err != nil {
		logger.Error("Failed to unmarshal loot counters: %v", err)
		return nil, ErrInternal
	}

	if err := s.list(ctx, logger, nk, lootAccountsCollection, func(value string) error {
		a := &Account{}
		if err := json.Unmarshal([]byte(value), a); err != nil {
			return err
		}
		snap.Accounts = append(snap.Accounts, a)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := s.list(ctx, logger, nk, lootTradesCollection, func(value string) error {
		tr := &TradeOffer{}
		if err := json.Unmarshal([]byte(value), tr); err != nil {
			return err
		}
		snap.Trades = append(snap.Trades, tr)
		return nil
	}); err != nil {
		return nil, err
	}

	s.countersVersion = objects[0].Version
	return snap, nil
}

func (s *NakamaStore) list(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, collection string, fn func(value string) error) error {
	cursor := ""
	for {
		objects, next, err := nk.StorageList(ctx, "", "", collection, lootStorageListPageSize, cursor)
		if err != nil {
			logger.Error("Failed to list %s: %v", collection, err)
			return ErrInternal
		}
		for _, obj := range objects {
			if err := fn(obj.Value); err != nil {
				logger.Error("Failed to unmarshal %s object %s: %v", collection, obj.Key, err)
				return ErrInternal
			}
		}
		if next == "" {
			return nil
		}
		cursor = next
	}
}

func (s *NakamaStore) Commit(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, cs *Changeset) error {
	counters, err := json.Marshal(cs.Counters)
	if err != nil {
		logger.Error("Failed to marshal loot counters: %v", err)
		return ErrInternal
	}

	writes := []*runtime.StorageWrite{
		{
			Collection:      lootStorageCollection,
			Key:             lootCountersStorageKey,
			UserID:          "",
			Value:           string(counters),
			Version:         s.countersVersion,
			PermissionRead:  runtime.STORAGE_PERMISSION_NO_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		},
	}
	for _, a := range cs.Accounts {
		data, err := json.Marshal(a)
		if err != nil {
			logger.Error("Failed to marshal loot account %s: %v", a.ID, err)
			return ErrInternal
		}
		writes = append(writes, &runtime.StorageWrite{
			Collection:      lootAccountsCollection,
			Key:             a.ID,
			UserID:          "",
			Value:           string(data),
			PermissionRead:  runtime.STORAGE_PERMISSION_PUBLIC_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		})
	}
	for _, tr := range cs.Trades {
		data, err := json.Marshal(tr)
		if err != nil {
			logger.Error("Failed to marshal trade offer %d: %v", tr.ID, err)
			return ErrInternal
		}
		writes = append(writes, &runtime.StorageWrite{
			Collection:      lootTradesCollection,
			Key:             strconv.FormatUint(tr.ID, 10),
			UserID:          "",
			Value:           string(data),
			PermissionRead:  runtime.STORAGE_PERMISSION_PUBLIC_READ,
			PermissionWrite: runtime.STORAGE_PERMISSION_NO_WRITE,
		})
	}
	deletes := make([]*runtime.StorageDelete, 0, len(cs.DeletedTrades))
	for _, id := range cs.DeletedTrades {
		deletes = append(deletes, &runtime.StorageDelete{
			Collection: lootTradesCollection,
			Key:        strconv.FormatUint(id, 10),
			UserID:     "",
		})
	}

	acks, _, err := nk.MultiUpdate(ctx, nil, writes, deletes, nil, false)
	if err != nil {
		logger.Error("Failed to write loot ledger: %v", err)
		return ErrStoreConflict
	}
	for _, ack := range acks {
		if ack.Collection == lootStorageCollection && ack.Key == lootCountersStorageKey {
			s.countersVersion = ack.Version
		}
	}
	return nil
}
