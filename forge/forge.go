package forge

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/heroiclabs/nakama-common/runtime"
	"gopkg.in/yaml.v3"
)

var (
	ErrInternal           = runtime.NewError("internal error occurred", INTERNAL_ERROR_CODE)
	ErrBadInput           = runtime.NewError("bad input", INVALID_ARGUMENT_ERROR_CODE)
	ErrFileNotFound       = runtime.NewError("file not found", INVALID_ARGUMENT_ERROR_CODE)
	ErrNoSessionUser      = runtime.NewError("no user ID in session", INVALID_ARGUMENT_ERROR_CODE)
	ErrPayloadDecode      = runtime.NewError("cannot decode json", INTERNAL_ERROR_CODE)
	ErrPayloadEncode      = runtime.NewError("cannot encode json", INTERNAL_ERROR_CODE)
	ErrSystemNotAvailable = runtime.NewError("system not available", UNIMPLEMENTED_ERROR_CODE)
	ErrSystemUnknown      = runtime.NewError("unknown system type", INVALID_ARGUMENT_ERROR_CODE)
	ErrStoreConflict      = runtime.NewError("loot ledger write rejected", ABORTED_ERROR_CODE)
)

// Forge provides a type which combines the loot gameplay systems around one shared ledger.
type Forge interface {
	// AddPublisher adds a publisher which receives the facts of every committed operation.
	AddPublisher(publisher Publisher)

	// Ledger returns the ledger shared by all systems.
	Ledger() *Ledger

	GetLootSystem() LootSystem
	GetTradesSystem() TradesSystem
}

// The SystemType identifies each of the gameplay systems.
type SystemType uint

const (
	SystemTypeUnknown SystemType = iota
	SystemTypeLoot
	SystemTypeTrades
)

func (t SystemType) String() string {
	switch t {
	case SystemTypeLoot:
		return "loot"
	case SystemTypeTrades:
		return "trades"
	default:
		return "unknown"
	}
}

// The System is the base type for every gameplay system.
type System interface {
	// GetType provides the runtime type of the gameplay system.
	GetType() SystemType

	// GetConfig returns the configuration type of the gameplay system.
	GetConfig() any
}

// The SystemConfig describes the configuration that each gameplay system must use to configure itself.
type SystemConfig interface {
	// GetType returns the runtime type of the gameplay system.
	GetType() SystemType

	// GetConfigFile returns the configuration file used for the data definitions in the gameplay system.
	GetConfigFile() string

	// GetRegister returns true if the gameplay system's RPCs should be registered with the game server.
	GetRegister() bool
}

var _ SystemConfig = &systemConfig{}

type systemConfig struct {
	systemType SystemType
	configFile string
	register   bool
}

func (sc *systemConfig) GetType() SystemType   { return sc.systemType }
func (sc *systemConfig) GetConfigFile() string { return sc.configFile }
func (sc *systemConfig) GetRegister() bool     { return sc.register }

// WithLootSystem configures a LootSystem type and optionally registers its RPCs with the game server.
func WithLootSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{systemType: SystemTypeLoot, configFile: configFile, register: register}
}

// WithTradesSystem configures a TradesSystem type and optionally registers its RPCs with the game server.
func WithTradesSystem(configFile string, register bool) SystemConfig {
	return &systemConfig{systemType: SystemTypeTrades, configFile: configFile, register: register}
}

// forgeImpl implements the Forge interface
type forgeImpl struct {
	ledger  *Ledger
	systems map[SystemType]System
}

// Init initializes a Forge type with the configurations provided. All systems share the
// ledger, which persists through store.
func Init(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, store Store, configs ...SystemConfig) (Forge, error) {
	f := &forgeImpl{
		ledger:  NewLedger(store),
		systems: make(map[SystemType]System),
	}

	for _, config := range configs {
		if err := f.initSystem(ctx, logger, nk, initializer, config); err != nil {
			return nil, err
		}
	}

	return f, nil
}

// initSystem initializes a specific system based on its type
func (f *forgeImpl) initSystem(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, initializer runtime.Initializer, config SystemConfig) error {
	logger.Info("Initializing system type: %v, config file: %s", config.GetType(), config.GetConfigFile())

	var system System

	switch config.GetType() {
	case SystemTypeLoot:
		lootConfig := &LootConfig{}
		if err := readSystemConfig(logger, nk, config.GetConfigFile(), lootConfig); err != nil {
			return err
		}
		system = NewNakamaLootSystem(lootConfig, f.ledger)

	case SystemTypeTrades:
		tradesConfig := &TradesConfig{}
		if err := readSystemConfig(logger, nk, config.GetConfigFile(), tradesConfig); err != nil {
			return err
		}
		system = NewNakamaTradesSystem(tradesConfig, f.ledger)

	default:
		logger.Error("Unknown system type: %v", config.GetType())
		return ErrSystemUnknown
	}

	f.systems[config.GetType()] = system

	if config.GetRegister() {
		if err := f.registerSystemRpcs(initializer, config.GetType()); err != nil {
			logger.Error("Failed to register %v RPCs: %v", config.GetType(), err)
			return err
		}
	}

	return nil
}

// readSystemConfig decodes a system config file as YAML when it has a .yaml or .yml
// extension, JSON otherwise. An empty path leaves the defaults in place.
func readSystemConfig(logger runtime.Logger, nk runtime.NakamaModule, path string, target any) error {
	if path == "" {
		return nil
	}

	configData, err := nk.ReadFile(path)
	if err != nil {
		logger.Error("Failed to read config file %s: %v", path, err)
		return ErrFileNotFound
	}
	defer configData.Close()

	configBytes, err := io.ReadAll(configData)
	if err != nil {
		logger.Error("Failed to read config file contents: %v", err)
		return err
	}

	return decodeSystemConfig(path, configBytes, target)
}

// ReadConfigFile decodes a system config file from the local filesystem, using the same
// format rules as Init.
func ReadConfigFile(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return decodeSystemConfig(path, data, target)
}

func decodeSystemConfig(path string, data []byte, target any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, target)
	default:
		return json.Unmarshal(data, target)
	}
}

// registerSystemRpcs registers the appropriate RPCs for a given system type
func (f *forgeImpl) registerSystemRpcs(initializer runtime.Initializer, systemType SystemType) error {
	switch systemType {
	case SystemTypeLoot:
		if err := initializer.RegisterRpc(RpcIdLootKill.String(), rpcLootKill(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdLootInventory.String(), rpcLootInventory(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdLootBoost.String(), rpcLootBoost(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdLootKillCounts.String(), rpcLootKillCounts(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdLootAccounts.String(), rpcLootAccounts(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdLootTransfer.String(), rpcLootTransfer(f)); err != nil {
			return err
		}
	case SystemTypeTrades:
		if err := initializer.RegisterRpc(RpcIdTradesPropose.String(), rpcTradesPropose(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdTradesAccept.String(), rpcTradesAccept(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdTradesCancel.String(), rpcTradesCancel(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdTradesGet.String(), rpcTradesGet(f)); err != nil {
			return err
		}
		if err := initializer.RegisterRpc(RpcIdTradesList.String(), rpcTradesList(f)); err != nil {
			return err
		}
	}
	return nil
}

// AddPublisher adds a publisher to the ledger's chain
func (f *forgeImpl) AddPublisher(publisher Publisher) {
	f.ledger.AddPublisher(publisher)
}

func (f *forgeImpl) Ledger() *Ledger {
	return f.ledger
}

func (f *forgeImpl) GetLootSystem() LootSystem {
	if sys, ok := f.systems[SystemTypeLoot].(LootSystem); ok {
		return sys
	}
	return nil
}

func (f *forgeImpl) GetTradesSystem() TradesSystem {
	if sys, ok := f.systems[SystemTypeTrades].(TradesSystem); ok {
		return sys
	}
	return nil
}
