package cli

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"lootforge/forge"
)

// session is one command's view of the ledger: a store, the two systems sharing it, and
// the publishers and logger wired around them.
type session struct {
	ctx    context.Context
	logger *forge.ZapLogger
	ledger *forge.Ledger
	loot   *forge.NakamaLootSystem
	trades *forge.NakamaTradesSystem

	closers []func() error
}

func newLogger(verbose bool) (*forge.ZapLogger, error) {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		return forge.NewZapLogger(logger), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return forge.NewZapLogger(logger), nil
}

// openSession opens the SQLite ledger named by the options.
func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	store, err := forge.OpenSQLiteStore(opts.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open ledger", err)
	}
	s, err := newSession(ctx, opts, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	s.closers = append(s.closers, store.Close)
	return s, nil
}

func newSession(ctx context.Context, opts *RootOptions, store forge.Store) (*session, error) {
	logger, err := newLogger(opts.Verbose)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "create logger", err)
	}

	lootConfig := &forge.LootConfig{}
	if opts.LootConfig != "" {
		if err := forge.ReadConfigFile(opts.LootConfig, lootConfig); err != nil {
			return nil, WrapExitError(ExitCommandError, "read loot config", err)
		}
	}
	tradesConfig := &forge.TradesConfig{}
	if opts.TradesConfig != "" {
		if err := forge.ReadConfigFile(opts.TradesConfig, tradesConfig); err != nil {
			return nil, WrapExitError(ExitCommandError, "read trades config", err)
		}
	}

	ledger := forge.NewLedger(store)
	s := &session{
		ctx:    ctx,
		logger: logger,
		ledger: ledger,
		loot:   forge.NewNakamaLootSystem(lootConfig, ledger),
		trades: forge.NewNakamaTradesSystem(tradesConfig, ledger),
	}
	s.closers = append(s.closers, func() error {
		_ = logger.Zap().Sync()
		return nil
	})

	if opts.FactLogDir != "" {
		factLog := forge.NewFactLogPublisher(opts.FactLogDir, "loot")
		ledger.AddPublisher(factLog)
		s.closers = append([]func() error{factLog.Close}, s.closers...)
	}
	return s, nil
}

func (s *session) Close() error {
	var first error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
