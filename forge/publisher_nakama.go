package forge

import (
	"context"
	"time"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// NakamaEventPublisher forwards loot facts into the Nakama event pipeline, where any
// registered event handlers or analytics exporters pick them up.
type NakamaEventPublisher struct{}

func (NakamaEventPublisher) Send(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent) {
	if nk == nil {
		return
	}
	for _, ev := range events {
		properties := make(map[string]string, len(ev.Metadata)+3)
		for k, v := range ev.Metadata {
			properties[k] = v
		}
		properties["event_id"] = ev.Id
		properties["user_id"] = userID
		if ev.Value != "" {
			properties["value"] = ev.Value
		}

		if err := nk.Event(ctx, &api.Event{
			Name:       ev.Name,
			Properties: properties,
			Timestamp:  timestamppb.New(time.Unix(ev.Timestamp, 0)),
			External:   false,
		}); err != nil {
			logger.Warn("Failed to publish %s event %s: %v", ev.Name, ev.Id, err)
		}
	}
}
