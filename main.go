package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"lootforge/forge"
)

// noinspection GoUnusedExportedFunction
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	initStart := time.Now()

	logger.Info("Loading Lootforge Nakama plugin...")

	cfg, err := forge.ParsePluginConfig()
	if err != nil {
		logger.Error("Failed to read plugin configuration: %v", err)
		return err
	}

	store, err := cfg.OpenStore()
	if err != nil {
		logger.Error("Failed to open %s store: %v", cfg.Store, err)
		return err
	}

	f, err := forge.Init(ctx, logger, nk, initializer, store,
		forge.WithLootSystem(cfg.LootConfigFile, cfg.RegisterRpcs),
		forge.WithTradesSystem(cfg.TradesConfigFile, cfg.RegisterRpcs),
	)
	if err != nil {
		logger.Error("Failed to initialize loot systems: %v", err)
		return err
	}

	publishers, closePublishers, err := cfg.Publishers()
	if err != nil {
		logger.Error("Failed to create publishers: %v", err)
		return err
	}
	for _, publisher := range publishers {
		f.AddPublisher(publisher)
	}

	if err := initializer.RegisterShutdown(func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) {
		if err := closePublishers(); err != nil {
			logger.Warn("Failed to close publishers: %v", err)
		}
	}); err != nil {
		logger.Error("Failed to register shutdown hook: %v", err)
		return err
	}

	logger.Info("Lootforge Nakama plugin loaded in '%d' msec.", time.Since(initStart).Milliseconds())
	return nil
}

// main is required for `go build ./...`; Nakama loads this package as a
// plugin (-buildmode=plugin) and never calls it.
func main() {}
