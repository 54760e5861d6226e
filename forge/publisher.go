package forge

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	EventKillResult      = "killResult"
	EventTradeProposed   = "tradeProposed"
	EventTradeExecuted   = "tradeExecuted"
	EventTradeCancelled  = "tradeCancelled"
	EventItemTransferred = "itemTransferred"
)

type PublisherEvent struct {
	Name      string            `json:"name,omitempty"`
	Id        string            `json:"id,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Value     string            `json:"value,omitempty"`

	// The system that generated this event.
	System System `json:"-"`
	// SourceId identifies the event source, such as a trade id.
	SourceId string `json:"-"`
	// Source is the record the event describes, such as a *TradeOffer.
	Source any `json:"-"`
}

func newPublisherEvent(system System, name, sourceID string, source any, metadata map[string]string) *PublisherEvent {
	return &PublisherEvent{
		Name:      name,
		Id:        uuid.New().String(),
		Timestamp: time.Now().Unix(),
		Metadata:  metadata,
		Value:     sourceID,
		System:    system,
		SourceId:  sourceID,
		Source:    source,
	}
}

// The Publisher describes a service or similar target implementation that wishes to receive
// the facts generated by completed loot operations.
//
// Events are only sent after an operation has committed. Publishers are write-only: nothing
// they do may feed back into control flow, so implementations must handle any errors or
// retries internally.
//
// Publisher implementations must safely handle concurrent calls.
type Publisher interface {
	// Send is called when there are one or more events generated.
	Send(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent)
}

// MemoryPublisher records every event it receives.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []*PublisherEvent
}

func (p *MemoryPublisher) Send(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
}

// Events returns a copy of the events received so far.
func (p *MemoryPublisher) Events() []*PublisherEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*PublisherEvent(nil), p.events...)
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
