package forge

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/heroiclabs/nakama-common/runtime"
)

const (
	StoreKindNakama = "nakama"
	StoreKindMemory = "memory"
	StoreKindSQLite = "sqlite"
)

// PluginConfig holds the deployment settings read from the process environment.
type PluginConfig struct {
	LootConfigFile   string `env:"LOOTFORGE_LOOT_CONFIG_FILE"`
	TradesConfigFile string `env:"LOOTFORGE_TRADES_CONFIG_FILE"`
	RegisterRpcs     bool   `env:"LOOTFORGE_REGISTER_RPCS" envDefault:"true"`

	Store      string `env:"LOOTFORGE_STORE" envDefault:"nakama"`
	SQLitePath string `env:"LOOTFORGE_SQLITE_PATH" envDefault:"lootforge.db"`

	PublishEvents bool   `env:"LOOTFORGE_PUBLISH_EVENTS" envDefault:"true"`
	FactLogDir    string `env:"LOOTFORGE_FACT_LOG_DIR"`
	// BatchSize > 0 routes publishing through a BatchPublisher.
	BatchSize     int    `env:"LOOTFORGE_BATCH_SIZE" envDefault:"0"`
	BatchSchedule string `env:"LOOTFORGE_BATCH_SCHEDULE" envDefault:"@every 1m"`
}

// ParsePluginConfig loads the plugin configuration from environment variables.
func ParsePluginConfig() (*PluginConfig, error) {
	cfg := &PluginConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.Store {
	case StoreKindNakama, StoreKindMemory, StoreKindSQLite:
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
	return cfg, nil
}

// OpenStore creates the store the configuration names.
func (c *PluginConfig) OpenStore() (Store, error) {
	switch c.Store {
	case StoreKindMemory:
		return NewMemoryStore(), nil
	case StoreKindSQLite:
		store, err := OpenSQLiteStore(c.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return NewNakamaStore(), nil
	}
}

// Publishers builds the publisher chain the configuration asks for. The returned closer
// flushes and releases them.
func (c *PluginConfig) Publishers() ([]Publisher, func() error, error) {
	var (
		publishers []Publisher
		closers    []func() error
	)
	if c.PublishEvents {
		publishers = append(publishers, NakamaEventPublisher{})
	}
	if c.FactLogDir != "" {
		factLog := NewFactLogPublisher(c.FactLogDir, "loot")
		publishers = append(publishers, factLog)
		closers = append(closers, factLog.Close)
	}

	if c.BatchSize > 0 && len(publishers) > 0 {
		batch := NewBatchPublisher(fanout(publishers), c.BatchSize)
		if err := batch.Start(c.BatchSchedule); err != nil {
			return nil, nil, fmt.Errorf("batch schedule %q: %w", c.BatchSchedule, err)
		}
		publishers = []Publisher{batch}
		closers = append([]func() error{func() error {
			batch.Stop(context.Background())
			return nil
		}}, closers...)
	}

	closeAll := func() error {
		var first error
		for _, closeFn := range closers {
			if err := closeFn(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return publishers, closeAll, nil
}

// fanout sends every batch to each publisher in turn.
type fanout []Publisher

func (f fanout) Send(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, userID string, events []*PublisherEvent) {
	for _, p := range f {
		p.Send(ctx, logger, nk, userID, events)
	}
}
