package forge

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/heroiclabs/nakama-common/runtime"
)

type LootKillRequest struct {
	Paid int64 `json:"paid"`
}

// LootAccountRequest names the account a query is about. An empty UserId means the caller.
type LootAccountRequest struct {
	UserId string `json:"user_id,omitempty"`
}

type LootInventoryResponse struct {
	UserId string  `json:"user_id"`
	Items  []*Item `json:"items"`
}

type LootBoostResponse struct {
	UserId string `json:"user_id"`
	Boost  int64  `json:"boost"`
}

type LootAccountsResponse struct {
	Accounts []string `json:"accounts"`
}

type LootTransferRequest struct {
	To     string `json:"to"`
	ItemId uint64 `json:"item_id"`
}

// decodePayload unmarshals a JSON payload, treating an empty payload as an empty object.
func decodePayload(payload string, target any) error {
	if payload == "" {
		return nil
	}
	return json.Unmarshal([]byte(payload), target)
}

func encodeResponse(logger runtime.Logger, response any) (string, error) {
	responseData, err := json.Marshal(response)
	if err != nil {
		logger.Error("Failed to marshal response: %v", err)
		return "", ErrPayloadEncode
	}
	return string(responseData), nil
}

func sessionUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(runtime.RUNTIME_CTX_USER_ID).(string)
	if !ok || userID == "" {
		return "", ErrNoSessionUser
	}
	return userID, nil
}

func rpcLootKill(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		lootSystem := f.GetLootSystem()
		if lootSystem == nil {
			return "", ErrSystemNotAvailable
		}

		var request LootKillRequest
		if err := decodePayload(payload, &request); err != nil {
			logger.Error("Failed to unmarshal LootKillRequest: %v", err)
			return "", ErrPayloadDecode
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}

		result, err := lootSystem.Kill(ctx, logger, nk, userID, request.Paid)
		if err != nil {
			logger.Error("Error processing kill: %v", err)
			return "", err
		}

		return encodeResponse(logger, result)
	}
}

func rpcLootInventory(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		lootSystem := f.GetLootSystem()
		if lootSystem == nil {
			return "", ErrSystemNotAvailable
		}

		var request LootAccountRequest
		if err := decodePayload(payload, &request); err != nil {
			logger.Error("Failed to unmarshal LootAccountRequest: %v", err)
			return "", ErrPayloadDecode
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}
		if request.UserId != "" {
			userID = request.UserId
		}

		items, err := lootSystem.ListInventory(ctx, logger, nk, userID)
		if err != nil {
			logger.Error("Error listing inventory: %v", err)
			return "", err
		}

		return encodeResponse(logger, &LootInventoryResponse{UserId: userID, Items: items})
	}
}

func rpcLootBoost(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		lootSystem := f.GetLootSystem()
		if lootSystem == nil {
			return "", ErrSystemNotAvailable
		}

		var request LootAccountRequest
		if err := decodePayload(payload, &request); err != nil {
			logger.Error("Failed to unmarshal LootAccountRequest: %v", err)
			return "", ErrPayloadDecode
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}
		if request.UserId != "" {
			userID = request.UserId
		}

		boost, err := lootSystem.GetBoost(ctx, logger, nk, userID)
		if err != nil {
			logger.Error("Error computing boost: %v", err)
			return "", err
		}

		return encodeResponse(logger, &LootBoostResponse{UserId: userID, Boost: boost})
	}
}

func rpcLootKillCounts(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		lootSystem := f.GetLootSystem()
		if lootSystem == nil {
			return "", ErrSystemNotAvailable
		}

		var request LootAccountRequest
		if err := decodePayload(payload, &request); err != nil {
			logger.Error("Failed to unmarshal LootAccountRequest: %v", err)
			return "", ErrPayloadDecode
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}
		if request.UserId != "" {
			userID = request.UserId
		}

		counts, err := lootSystem.GetKillCounts(ctx, logger, nk, userID)
		if err != nil {
			logger.Error("Error getting kill counts: %v", err)
			return "", err
		}

		return encodeResponse(logger, counts)
	}
}

func rpcLootAccounts(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		lootSystem := f.GetLootSystem()
		if lootSystem == nil {
			return "", ErrSystemNotAvailable
		}

		if _, err := sessionUserID(ctx); err != nil {
			return "", err
		}

		accounts, err := lootSystem.ListAccounts(ctx, logger, nk)
		if err != nil {
			logger.Error("Error listing accounts: %v", err)
			return "", err
		}
		if accounts == nil {
			accounts = []string{}
		}

		return encodeResponse(logger, &LootAccountsResponse{Accounts: accounts})
	}
}

func rpcLootTransfer(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		lootSystem := f.GetLootSystem()
		if lootSystem == nil {
			return "", ErrSystemNotAvailable
		}

		var request LootTransferRequest
		if err := decodePayload(payload, &request); err != nil {
			logger.Error("Failed to unmarshal LootTransferRequest: %v", err)
			return "", ErrPayloadDecode
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}

		result, err := lootSystem.TransferItem(ctx, logger, nk, userID, request.To, request.ItemId)
		if err != nil {
			logger.Error("Error transferring item %d: %v", request.ItemId, err)
			return "", err
		}

		return encodeResponse(logger, result)
	}
}
