package forge

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

var (
	ErrOwnership        = runtime.NewError("item not owned by account", PERMISSION_DENIED_ERROR_CODE)           // PERMISSION_DENIED
	ErrCapacityRejected = runtime.NewError("destination inventory full", FAILED_PRECONDITION_ERROR_CODE)        // FAILED_PRECONDITION
	ErrInsufficientFee  = runtime.NewError("kill fee not covered", INVALID_ARGUMENT_ERROR_CODE)                 // INVALID_ARGUMENT
	ErrInvalidTarget    = runtime.NewError("invalid destination account", INVALID_ARGUMENT_ERROR_CODE)          // INVALID_ARGUMENT
	ErrInvalidTier      = runtime.NewError("tier out of range", INTERNAL_ERROR_CODE)                            // INTERNAL
	ErrAccountRequired  = runtime.NewError("account id required", INVALID_ARGUMENT_ERROR_CODE)                  // INVALID_ARGUMENT
)

// LootConfig is the data definition for the LootSystem type.
type LootConfig struct {
	// KillFee is the amount retained from every kill payment.
	KillFee int64 `json:"kill_fee,omitempty" yaml:"kill_fee,omitempty"`
	// InventoryCapacity defaults to DefaultInventoryCapacity.
	InventoryCapacity int `json:"inventory_capacity,omitempty" yaml:"inventory_capacity,omitempty"`
	// CapacityHint and FeeHint are mixed into every environment sample.
	CapacityHint uint64 `json:"capacity_hint,omitempty" yaml:"capacity_hint,omitempty"`
	FeeHint      uint64 `json:"fee_hint,omitempty" yaml:"fee_hint,omitempty"`
}

func (c *LootConfig) capacity() int {
	if c == nil || c.InventoryCapacity <= 0 {
		return DefaultInventoryCapacity
	}
	return c.InventoryCapacity
}

// KillResult describes the item a kill produced and what happened to it.
type KillResult struct {
	Item     *Item  `json:"item"`
	BaseRoll uint64 `json:"base_roll"`
	BaseTier int    `json:"base_tier"`
	Upgraded bool   `json:"upgraded"`
	// Kept is false when the inventory was full of items at least as strong.
	Kept    bool  `json:"kept"`
	Evicted *Item `json:"evicted,omitempty"`
	Fee     int64 `json:"fee"`
	Refund  int64 `json:"refund"`
}

// KillCounts reports the global kill total and the kills of one account.
type KillCounts struct {
	Total   uint64 `json:"total"`
	Account uint64 `json:"account"`
}

// TransferResult describes a completed item transfer.
type TransferResult struct {
	Item    *Item  `json:"item"`
	From    string `json:"from"`
	To      string `json:"to"`
	Evicted *Item  `json:"evicted,omitempty"`
}

// The LootSystem mints items on kills and moves them between accounts.
//
// Every item id is held by at most one account at a time, and the account holding it
// always has it in its inventory.
type LootSystem interface {
	System

	// Kill charges the kill fee from paid, rolls a new item for the account and places it
	// in the account's inventory, evicting the weakest item when the inventory is full.
	Kill(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, paid int64) (*KillResult, error)

	// ListInventory returns a copy of the account's inventory in slot order.
	ListInventory(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) ([]*Item, error)

	// GetBoost returns the upgrade boost, in basis points, of the account's current holdings.
	GetBoost(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (int64, error)

	// GetKillCounts returns the global and per-account kill counters.
	GetKillCounts(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) (*KillCounts, error)

	// ListAccounts returns every known account in the order it became known.
	ListAccounts(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) ([]string, error)

	// TransferItem moves one item from userID to the destination account.
	TransferItem(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, toUserID string, itemID uint64) (*TransferResult, error)

	// SetEnvironmentSource replaces the source of per-kill environment samples.
	SetEnvironmentSource(source EnvironmentSource)

	// SetDeriver replaces the roll deriver.
	SetDeriver(deriver Deriver)
}
