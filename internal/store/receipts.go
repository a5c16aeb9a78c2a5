// Package store persists receipts of greeting transactions sent from this
// machine.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/core/types"

	_ "modernc.org/sqlite"
)

// ReceiptStore is an upsert-only table keyed by chain + tx hash.
type ReceiptStore struct {
	db  *sql.DB
	now func() time.Time
}

type StoredReceipt struct {
	Chain       string
	TxHash      string
	Status      uint64
	GasUsed     uint64
	BlockNumber uint64
	Greeting    string
	RawJSON     string
	CreatedAt   time.Time
}

// OpenReceiptStore opens (or creates) dataDir/receipts.db.
func OpenReceiptStore(dataDir string) (*ReceiptStore, error) {
	return OpenReceiptStoreDSN(filepath.Join(dataDir, "receipts.db"))
}

// OpenReceiptStoreDSN opens (or creates) a receipt DB using the given sqlite
// DSN or path. Tests pass ":memory:".
func OpenReceiptStoreDSN(dsn string) (*ReceiptStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open receipts db: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &ReceiptStore{db: db, now: time.Now}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS receipts (
	chain TEXT NOT NULL,
	tx_hash TEXT NOT NULL,
	status INTEGER,
	gas_used INTEGER,
	block_number INTEGER,
	greeting TEXT,
	raw_json TEXT,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (chain, tx_hash)
);
`)
	if err != nil {
		return fmt.Errorf("create receipts table: %w", err)
	}
	return nil
}

// Close closes the underlying DB.
func (s *ReceiptStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert records the receipt of a setGreeting transaction.
func (s *ReceiptStore) Upsert(chain, greeting string, receipt *types.Receipt) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("receipt store not initialized")
	}
	if chain == "" {
		return fmt.Errorf("chain is required")
	}
	if receipt == nil {
		return fmt.Errorf("receipt is required")
	}

	raw, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	var block uint64
	if receipt.BlockNumber != nil {
		block = receipt.BlockNumber.Uint64()
	}

	_, err = s.db.Exec(`
INSERT INTO receipts (chain, tx_hash, status, gas_used, block_number, greeting, raw_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chain, tx_hash) DO UPDATE SET
	status=excluded.status,
	gas_used=excluded.gas_used,
	block_number=excluded.block_number,
	raw_json=excluded.raw_json
`, chain, receipt.TxHash.Hex(), receipt.Status, receipt.GasUsed, block, greeting, string(raw), s.now().Unix())
	if err != nil {
		return fmt.Errorf("persist receipt: %w", err)
	}
	return nil
}

const selectColumns = `SELECT chain, tx_hash, COALESCE(status, 0), COALESCE(gas_used, 0), COALESCE(block_number, 0), COALESCE(greeting, ''), COALESCE(raw_json, ''), created_at FROM receipts`

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row scanner) (*StoredReceipt, error) {
	var out StoredReceipt
	var created int64
	if err := row.Scan(&out.Chain, &out.TxHash, &out.Status, &out.GasUsed, &out.BlockNumber, &out.Greeting, &out.RawJSON, &created); err != nil {
		return nil, err
	}
	out.CreatedAt = time.Unix(created, 0).UTC()
	return &out, nil
}

// Get returns one receipt; sql.ErrNoRows when absent.
func (s *ReceiptStore) Get(chain, txHash string) (*StoredReceipt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("receipt store not initialized")
	}
	if chain == "" || txHash == "" {
		return nil, fmt.Errorf("chain and tx hash are required")
	}

	return scanReceipt(s.db.QueryRow(selectColumns+` WHERE chain = ? AND tx_hash = ?`, chain, txHash))
}

// List returns up to limit receipts for chain, newest first.
func (s *ReceiptStore) List(chain string, limit int) ([]*StoredReceipt, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("receipt store not initialized")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(selectColumns+` WHERE chain = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, chain, limit)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []*StoredReceipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
