package bank

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteArchive persists the transaction ledger to a sqlite file so the
// bookkeeping survives outside save slots. It only ever appends.
type SQLiteArchive struct {
	db *sql.DB
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS ledger (
	id            TEXT PRIMARY KEY,
	account_id    TEXT NOT NULL,
	at            TEXT NOT NULL,
	type          TEXT NOT NULL,
	amount        INTEGER NOT NULL,
	description   TEXT NOT NULL,
	balance_after INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_account_at ON ledger (account_id, at);
`

// OpenSQLiteArchive opens (creating directories and schema as needed) the
// archive at path.
func OpenSQLiteArchive(path string) (*SQLiteArchive, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger archive: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}
	return &SQLiteArchive{db: db}, nil
}

func (a *SQLiteArchive) RecordTransaction(tx Transaction) error {
	_, err := a.db.Exec(
		`INSERT OR IGNORE INTO ledger (id, account_id, at, type, amount, description, balance_after)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.AccountID, tx.Timestamp.UTC().Format(time.RFC3339), string(tx.Type),
		tx.Amount, tx.Description, tx.BalanceAfter,
	)
	return err
}

// TransactionsFor returns the archived entries for an account, oldest first.
func (a *SQLiteArchive) TransactionsFor(accountID string) ([]Transaction, error) {
	rows, err := a.db.Query(
		`SELECT id, account_id, at, type, amount, description, balance_after
		 FROM ledger WHERE account_id = ? ORDER BY at`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var tx Transaction
		var at string
		if err := rows.Scan(&tx.ID, &tx.AccountID, &at, &tx.Type, &tx.Amount, &tx.Description, &tx.BalanceAfter); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, fmt.Errorf("corrupt timestamp in ledger row %s: %w", tx.ID, err)
		}
		tx.Timestamp = ts
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
