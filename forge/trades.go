package forge

import (
	"context"

	"github.com/heroiclabs/nakama-common/runtime"
)

var (
	ErrAlreadyExecuted = runtime.NewError("trade already executed", FAILED_PRECONDITION_ERROR_CODE) // FAILED_PRECONDITION
	ErrTradeNotFound   = runtime.NewError("trade not found", NOT_FOUND_ERROR_CODE)                  // NOT_FOUND
	ErrTooManyOffers   = runtime.NewError("too many open trade offers", RESOURCE_EXHAUSTED_ERROR_CODE)
)

// TradesConfig is the data definition for the TradesSystem type.
type TradesConfig struct {
	// MaxOpenOffers limits the unexecuted offers one account may have proposed. Zero means
	// no limit.
	MaxOpenOffers int `json:"max_open_offers,omitempty" yaml:"max_open_offers,omitempty"`
}

// TradeOffer is a proposed one-for-one item swap between two accounts.
type TradeOffer struct {
	ID                 uint64 `json:"id"`
	Initiator          string `json:"initiator"`
	Counterparty       string `json:"counterparty"`
	InitiatorItemID    uint64 `json:"initiator_item_id"`
	CounterpartyItemID uint64 `json:"counterparty_item_id"`
	Executed           bool   `json:"executed"`
	CreateTimeSec      int64  `json:"create_time_sec"`
	ExecuteTimeSec     int64  `json:"execute_time_sec,omitempty"`
}

// The TradesSystem runs two-party item swaps.
//
// An offer is created by the initiator, pledging one of their items against one of the
// counterparty's. Only the counterparty can accept it and only the initiator can cancel it.
// Ownership is checked again on accept, since either item may have moved in the meantime.
type TradesSystem interface {
	System

	// ProposeTrade records a new offer and returns it.
	ProposeTrade(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, counterparty string, initiatorItemID, counterpartyItemID uint64) (*TradeOffer, error)

	// AcceptTrade swaps the two pledged items in place and marks the offer executed.
	AcceptTrade(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, tradeID uint64) (*TradeOffer, error)

	// CancelTrade deletes an offer which has not been executed.
	CancelTrade(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, tradeID uint64) error

	// GetTrade returns an offer by id.
	GetTrade(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, tradeID uint64) (*TradeOffer, error)

	// ListTrades returns the offers where the user is either party, by ascending id.
	ListTrades(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) ([]*TradeOffer, error)
}
