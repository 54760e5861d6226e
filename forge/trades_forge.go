package forge

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

// NakamaTradesSystem implements the TradesSystem interface on top of the shared Ledger.
type NakamaTradesSystem struct {
	config *TradesConfig
	ledger *Ledger
	now    func() time.Time
}

// NewNakamaTradesSystem creates a trades system writing to ledger.
func NewNakamaTradesSystem(config *TradesConfig, ledger *Ledger) *NakamaTradesSystem {
	if config == nil {
		config = &TradesConfig{}
	}
	if ledger == nil {
		ledger = NewLedger(nil)
	}
	return &NakamaTradesSystem{
		config: config,
		ledger: ledger,
		now:    time.Now,
	}
}

func (t *NakamaTradesSystem) GetType() SystemType {
	return SystemTypeTrades
}

func (t *NakamaTradesSystem) GetConfig() any {
	return t.config
}

func (t *NakamaTradesSystem) ProposeTrade(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID, counterparty string, initiatorItemID, counterpartyItemID uint64) (*TradeOffer, error) {
	if userID == "" {
		return nil, ErrAccountRequired
	}
	if counterparty == "" || counterparty == uuid.Nil.String() || counterparty == userID {
		return nil, ErrInvalidTarget
	}

	var offer *TradeOffer
	err := t.ledger.Update(ctx, logger, nk, userID, func(tx *Tx) error {
		if owner, ok := tx.Owner(initiatorItemID); !ok || owner != userID {
			return ErrOwnership
		}
		if owner, ok := tx.Owner(counterpartyItemID); !ok || owner != counterparty {
			return ErrOwnership
		}
		if t.config.MaxOpenOffers > 0 && openOffers(tx.base, userID) >= t.config.MaxOpenOffers {
			return ErrTooManyOffers
		}

		counters := tx.Counters()
		offer = &TradeOffer{
			ID:                 counters.NextTradeID,
			Initiator:          userID,
			Counterparty:       counterparty,
			InitiatorItemID:    initiatorItemID,
			CounterpartyItemID: counterpartyItemID,
			CreateTimeSec:      t.now().Unix(),
		}
		counters.NextTradeID++
		tx.PutTrade(offer)

		tx.Publish(newPublisherEvent(t, EventTradeProposed, formatUint(offer.ID), offer, tradeMetadata(offer)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	c := *offer
	return &c, nil
}

func (t *NakamaTradesSystem) AcceptTrade(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, tradeID uint64) (*TradeOffer, error) {
	var offer *TradeOffer
	err := t.ledger.Update(ctx, logger, nk, userID, func(tx *Tx) error {
		current := tx.Trade(tradeID)
		if current == nil {
			return ErrTradeNotFound
		}
		if current.Counterparty != userID {
			return ErrOwnership
		}
		if current.Executed {
			return ErrAlreadyExecuted
		}
		if owner, ok := tx.Owner(current.InitiatorItemID); !ok || owner != current.Initiator {
			return ErrOwnership
		}
		if owner, ok := tx.Owner(current.CounterpartyItemID); !ok || owner != current.Counterparty {
			return ErrOwnership
		}

		initiator := tx.MutableAccount(current.Initiator)
		counterparty := tx.MutableAccount(current.Counterparty)
		initiatorSlot := slotOf(initiator.Items, current.InitiatorItemID)
		counterpartySlot := slotOf(counterparty.Items, current.CounterpartyItemID)
		if initiatorSlot == -1 || counterpartySlot == -1 {
			logger.Error("Trade %d pledges items missing from their holders' inventories", tradeID)
			return ErrInternal
		}

		// Each item takes the slot the other one left, so neither inventory changes size.
		initiatorItem := initiator.Items[initiatorSlot]
		counterpartyItem := counterparty.Items[counterpartySlot]
		initiator.Items = replaceItem(initiator.Items, initiatorSlot, counterpartyItem)
		counterparty.Items = replaceItem(counterparty.Items, counterpartySlot, initiatorItem)
		tx.SetOwner(initiatorItem.ID, current.Counterparty)
		tx.SetOwner(counterpartyItem.ID, current.Initiator)

		executed := *current
		executed.Executed = true
		executed.ExecuteTimeSec = t.now().Unix()
		tx.PutTrade(&executed)
		offer = &executed

		tx.Publish(newPublisherEvent(t, EventTradeExecuted, formatUint(executed.ID), &executed, tradeMetadata(&executed)))
		return nil
	})
	if err != nil {
		return nil, err
	}
	c := *offer
	return &c, nil
}

func (t *NakamaTradesSystem) CancelTrade(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, tradeID uint64) error {
	return t.ledger.Update(ctx, logger, nk, userID, func(tx *Tx) error {
		current := tx.Trade(tradeID)
		if current == nil {
			return ErrTradeNotFound
		}
		if current.Initiator != userID {
			return ErrOwnership
		}
		if current.Executed {
			return ErrAlreadyExecuted
		}
		tx.DeleteTrade(tradeID)

		cancelled := *current
		tx.Publish(newPublisherEvent(t, EventTradeCancelled, formatUint(tradeID), &cancelled, tradeMetadata(&cancelled)))
		return nil
	})
}

func (t *NakamaTradesSystem) GetTrade(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, tradeID uint64) (*TradeOffer, error) {
	var offer *TradeOffer
	err := t.ledger.View(ctx, logger, nk, func(s *State) error {
		current := s.Trade(tradeID)
		if current == nil {
			return ErrTradeNotFound
		}
		c := *current
		offer = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (t *NakamaTradesSystem) ListTrades(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string) ([]*TradeOffer, error) {
	offers := make([]*TradeOffer, 0)
	err := t.ledger.View(ctx, logger, nk, func(s *State) error {
		for _, id := range s.tradeIDs() {
			current := s.Trade(id)
			if current.Initiator != userID && current.Counterparty != userID {
				continue
			}
			c := *current
			offers = append(offers, &c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offers, nil
}

func openOffers(s *State, initiator string) int {
	count := 0
	for _, tr := range s.trades {
		if tr.Initiator == initiator && !tr.Executed {
			count++
		}
	}
	return count
}

func tradeMetadata(offer *TradeOffer) map[string]string {
	return map[string]string{
		"trade_id":             formatUint(offer.ID),
		"initiator":            offer.Initiator,
		"counterparty":         offer.Counterparty,
		"initiator_item_id":    formatUint(offer.InitiatorItemID),
		"counterparty_item_id": formatUint(offer.CounterpartyItemID),
	}
}
