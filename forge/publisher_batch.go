package forge

import (
	"context"
	"sync"

	"github.com/heroiclabs/nakama-common/runtime"
	"github.com/robfig/cron/v3"
)

type batchedEvents struct {
	userID string
	events []*PublisherEvent
}

// BatchPublisher buffers events and hands them to a downstream publisher in batches, either
// when the buffer reaches MaxEvents or whenever the flush schedule fires.
type BatchPublisher struct {
	downstream Publisher
	maxEvents  int

	mu      sync.Mutex
	pending []batchedEvents
	count   int
	logger  runtime.Logger
	nk      runtime.NakamaModule

	cron *cron.Cron
}

// NewBatchPublisher creates a batching publisher. maxEvents <= 0 disables size-based flushes.
func NewBatchPublisher(downstream Publisher, maxEvents int) *BatchPublisher {
	return &BatchPublisher{
		downstream: downstream,
		maxEvents:  maxEvents,
	}
}

// Start flushes the buffer on the given five-field cron schedule until Stop is called.
func (p *BatchPublisher) Start(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(schedule, func() { p.Flush(context.Background()) }); err != nil {
		return err
	}
	p.mu.Lock()
	p.cron = c
	p.mu.Unlock()
	c.Start()
	return nil
}

// Stop halts the schedule and flushes whatever is left.
func (p *BatchPublisher) Stop(ctx context.Context) {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	p.Flush(ctx)
}

func (p *BatchPublisher) Send(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent) {
	p.mu.Lock()
	p.pending = append(p.pending, batchedEvents{userID: userID, events: events})
	p.count += len(events)
	p.logger = logger
	p.nk = nk
	full := p.maxEvents > 0 && p.count >= p.maxEvents
	p.mu.Unlock()

	if full {
		p.Flush(ctx)
	}
}

// Flush sends every buffered event downstream.
func (p *BatchPublisher) Flush(ctx context.Context) {
	p.mu.Lock()
	pending := p.pending
	logger, nk := p.logger, p.nk
	p.pending = nil
	p.count = 0
	p.mu.Unlock()

	for _, batch := range pending {
		p.downstream.Send(ctx, logger, nk, batch.userID, batch.events)
	}
}

// Pending returns the number of buffered events.
func (p *BatchPublisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
