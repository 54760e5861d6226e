package forge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/heroiclabs/nakama-common/runtime"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the ledger in a local SQLite database. The items table is the
// ownership ledger: its primary key makes it impossible for one item id to have two holders.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSQLitePragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func initSQLitePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSQLiteSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			join_order INTEGER NOT NULL,
			nonce INTEGER NOT NULL,
			kills INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY,
			account TEXT NOT NULL REFERENCES accounts(id),
			slot INTEGER NOT NULL,
			tier INTEGER NOT NULL CHECK (tier BETWEEN 0 AND 9),
			UNIQUE (account, slot)
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY,
			initiator TEXT NOT NULL,
			counterparty TEXT NOT NULL,
			initiator_item_id INTEGER NOT NULL,
			counterparty_item_id INTEGER NOT NULL,
			executed INTEGER NOT NULL,
			create_time_sec INTEGER NOT NULL,
			execute_time_sec INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule) (*Snapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='counters'`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}

	snap := &Snapshot{}
	if err := json.Unmarshal([]byte(raw), &snap.Counters); err != nil {
		return nil, fmt.Errorf("decode counters: %w", err)
	}

	byID := make(map[string]*Account)
	rows, err := s.db.QueryContext(ctx, `SELECT id, join_order, nonce, kills FROM accounts ORDER BY join_order`)
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	for rows.Next() {
		a := &Account{}
		if err := rows.Scan(&a.ID, &a.JoinOrder, &a.Nonce, &a.Kills); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Items = []*Item{}
		byID[a.ID] = a
		snap.Accounts = append(snap.Accounts, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, account, tier FROM items ORDER BY account, slot`)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	for rows.Next() {
		var (
			item    Item
			account string
		)
		if err := rows.Scan(&item.ID, &account, &item.Tier); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		a, ok := byID[account]
		if !ok {
			_ = rows.Close()
			return nil, fmt.Errorf("item %d held by unknown account %q", item.ID, account)
		}
		a.Items = append(a.Items, &item)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT id, initiator, counterparty, initiator_item_id, counterparty_item_id, executed, create_time_sec, execute_time_sec FROM trades ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("read trades: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		tr := &TradeOffer{}
		if err := rows.Scan(&tr.ID, &tr.Initiator, &tr.Counterparty, &tr.InitiatorItemID, &tr.CounterpartyItemID, &tr.Executed, &tr.CreateTimeSec, &tr.ExecuteTimeSec); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		snap.Trades = append(snap.Trades, tr)
	}
	return snap, rows.Err()
}

func (s *SQLiteStore) Commit(ctx context.Context, logger runtime.Logger, nk runtime.NakamaModule, cs *Changeset) (err error) {
	counters, err := json.Marshal(cs.Counters)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Every commit advances the sequence by one, so the stored counters must be exactly one
	// behind. Anything else means another ledger wrote to this database in between.
	var stored Counters
	var raw string
	switch scanErr := tx.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='counters'`).Scan(&raw); {
	case scanErr == sql.ErrNoRows:
	case scanErr != nil:
		err = fmt.Errorf("read counters: %w", scanErr)
		return err
	default:
		if err = json.Unmarshal([]byte(raw), &stored); err != nil {
			return fmt.Errorf("decode counters: %w", err)
		}
	}
	if stored.Sequence+1 != cs.Counters.Sequence {
		logger.Warn("Loot ledger sequence moved to %d, expected %d", stored.Sequence, cs.Counters.Sequence-1)
		err = ErrStoreConflict
		return err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES('counters', ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`, string(counters)); err != nil {
		return fmt.Errorf("write counters: %w", err)
	}

	// Clear every touched inventory before refilling any, so an item moving between two
	// touched accounts never collides with its old row.
	for _, a := range cs.Accounts {
		if _, err = tx.ExecContext(ctx, `INSERT INTO accounts(id, join_order, nonce, kills) VALUES(?, ?, ?, ?) ON CONFLICT(id) DO UPDATE SET nonce=excluded.nonce, kills=excluded.kills`, a.ID, a.JoinOrder, a.Nonce, a.Kills); err != nil {
			return fmt.Errorf("write account %s: %w", a.ID, err)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM items WHERE account=?`, a.ID); err != nil {
			return fmt.Errorf("clear inventory %s: %w", a.ID, err)
		}
	}
	for _, a := range cs.Accounts {
		for slot, item := range a.Items {
			if _, err = tx.ExecContext(ctx, `INSERT INTO items(id, account, slot, tier) VALUES(?, ?, ?, ?)`, item.ID, a.ID, slot, item.Tier); err != nil {
				return fmt.Errorf("write item %d: %w", item.ID, err)
			}
		}
	}

	for _, tr := range cs.Trades {
		if _, err = tx.ExecContext(ctx, `INSERT INTO trades(id, initiator, counterparty, initiator_item_id, counterparty_item_id, executed, create_time_sec, execute_time_sec)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET executed=excluded.executed, execute_time_sec=excluded.execute_time_sec`,
			tr.ID, tr.Initiator, tr.Counterparty, tr.InitiatorItemID, tr.CounterpartyItemID, tr.Executed, tr.CreateTimeSec, tr.ExecuteTimeSec); err != nil {
			return fmt.Errorf("write trade %d: %w", tr.ID, err)
		}
	}
	for _, id := range cs.DeletedTrades {
		if _, err = tx.ExecContext(ctx, `DELETE FROM trades WHERE id=?`, id); err != nil {
			return fmt.Errorf("delete trade %d: %w", id, err)
		}
	}

	return tx.Commit()
}
