package forge

import (
	"context"
	"database/sql"

	"github.com/heroiclabs/nakama-common/runtime"
)

type TradesProposeRequest struct {
	Counterparty       string `json:"counterparty"`
	InitiatorItemId    uint64 `json:"initiator_item_id"`
	CounterpartyItemId uint64 `json:"counterparty_item_id"`
}

type TradesIdRequest struct {
	TradeId uint64 `json:"trade_id"`
}

type TradesListResponse struct {
	Trades []*TradeOffer `json:"trades"`
}

func rpcTradesPropose(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		tradesSystem := f.GetTradesSystem()
		if tradesSystem == nil {
			return "", ErrSystemNotAvailable
		}

		var request TradesProposeRequest
		if err := decodePayload(payload, &request); err != nil {
			logger.Error("Failed to unmarshal TradesProposeRequest: %v", err)
			return "", ErrPayloadDecode
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}

		offer, err := tradesSystem.ProposeTrade(ctx, logger, nk, userID, request.Counterparty, request.InitiatorItemId, request.CounterpartyItemId)
		if err != nil {
			logger.Error("Error proposing trade: %v", err)
			return "", err
		}

		return encodeResponse(logger, offer)
	}
}

func rpcTradesAccept(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		tradesSystem := f.GetTradesSystem()
		if tradesSystem == nil {
			return "", ErrSystemNotAvailable
		}

		var request TradesIdRequest
		if err := decodePayload(payload, &request); err != nil {
			logger.Error("Failed to unmarshal TradesIdRequest: %v", err)
			return "", ErrPayloadDecode
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}

		offer, err := tradesSystem.AcceptTrade(ctx, logger, nk, userID, request.TradeId)
		if err != nil {
			logger.Error("Error accepting trade %d: %v", request.TradeId, err)
			return "", err
		}

		return encodeResponse(logger, offer)
	}
}

func rpcTradesCancel(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		tradesSystem := f.GetTradesSystem()
		if tradesSystem == nil {
			return "", ErrSystemNotAvailable
		}

		var request TradesIdRequest
		if err := decodePayload(payload, &request); err != nil {
			logger.Error("Failed to unmarshal TradesIdRequest: %v", err)
			return "", ErrPayloadDecode
		}

		userID, err := sessionUserID(ctx)
		if err != nil {
			return "", err
		}

		if err := tradesSystem.CancelTrade(ctx, logger, nk, userID, request.TradeId); err != nil {
			logger.Error("Error cancelling trade %d: %v", request.TradeId, err)
			return "", err
		}

		return "{}", nil
	}
}

func rpcTradesGet(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		tradesSystem := f.GetTradesSystem()
		if tradesSystem == nil {
			return "", ErrSystemNotAvailable
		}

		var request TradesIdRequest
		if err := decodePayload(payload, &request); err != nil {
			logger.Error("Failed to unmarshal TradesIdRequest: %v", err)
			return "", ErrPayloadDecode
		}

		if _, err := sessionUserID(ctx); err != nil {
			return "", err
		}

		offer, err := tradesSystem.GetTrade(ctx, logger, nk, request.TradeId)
		if err != nil {
			return "", err
		}

		return encodeResponse(logger, offer)
	}
}

func rpcTradesList(f *forgeImpl) func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
	return func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, payload string) (string, error) {
		tradesSystem := f.GetTradesSystem()
		if tradesSystem == nil {
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

		offers, err := tradesSystem.ListTrades(ctx, logger, nk, userID)
		if err != nil {
			logger.Error("Error listing trades: %v", err)
			return "", err
		}

		return encodeResponse(logger, &TradesListResponse{Trades: offers})
	}
}
