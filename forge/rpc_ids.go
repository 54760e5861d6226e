package forge

import (
	"context"
	"database/sql"

	"github.com/heroiclabs/nakama-common/runtime"
)

// RpcId identifies an RPC registered with the game server.
type RpcId string

const (
	RpcIdLootKill       RpcId = "loot_kill"
	RpcIdLootInventory  RpcId = "loot_inventory"
	RpcIdLootBoost      RpcId = "loot_boost"
	RpcIdLootKillCounts RpcId = "loot_kill_counts"
	RpcIdLootAccounts   RpcId = "loot_accounts"
	RpcIdLootTransfer   RpcId = "loot_transfer"

	RpcIdTradesPropose RpcId = "trades_propose"
	RpcIdTradesAccept  RpcId = "trades_accept"
	RpcIdTradesCancel  RpcId = "trades_cancel"
	RpcIdTradesGet     RpcId = "trades_get"
	RpcIdTradesList    RpcId = "trades_list"
)

func (id RpcId) String() string {
	return string(id)
}

// UnregisterRpc clears the implementation of one or more RPCs registered by the loot systems.
//
// The RPC ids remain known to the server but any call to them returns UNIMPLEMENTED.
// Nakama keeps the last registration, so call this after Init.
func UnregisterRpc(initializer runtime.Initializer, ids ...RpcId) error {
	noopFn := func(context.Context, runtime.Logger, *sql.DB, runtime.NakamaModule, string) (string, error) {
		return "", ErrSystemNotAvailable
	}
	for _, id := range ids {
		if err := initializer.RegisterRpc(id.String(), noopFn); err != nil {
			return err
		}
	}
	return nil
}
