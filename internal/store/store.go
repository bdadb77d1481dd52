// Package store implements the SQLite-backed knowledge store: canonical
// symbol state, the domain index, agent/kit catalogs, and session history.
// The store exclusively owns entity state; the retrieval index holds derived
// copies refreshed through the Indexer hook on every write.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"sigil/internal/logging"
	"sigil/internal/types"
)

// Indexer is the retrieval-index hook invoked after store mutations.
// Upsert refreshes a single entry; Rebuild reconstructs the whole index
// (required after deletes, which the index cannot apply incrementally).
type Indexer interface {
	Upsert(ctx context.Context, sym *types.Symbol) error
	Rebuild(ctx context.Context) error
}

// SymbolStore provides typed CRUD over the SQLite backend plus the in-memory
// agent and kit catalogs.
type SymbolStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string

	idx   Indexer
	idxMu sync.RWMutex

	catMu  sync.RWMutex
	agents map[string]*types.AgentPersona
	kits   map[string]*types.KitDefinition
}

// NewSymbolStore initializes the SQLite database at the given path.
// Use ":memory:" for an ephemeral store in tests.
func NewSymbolStore(path string) (*SymbolStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSymbolStore")
	defer timer.Stop()

	logging.Store("Initializing SymbolStore at path: %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	store := &SymbolStore{
		db:     db,
		dbPath: path,
		agents: make(map[string]*types.AgentPersona),
		kits:   make(map[string]*types.KitDefinition),
	}
	if err := store.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}

	logging.Store("SymbolStore initialization complete")
	return store, nil
}

// initialize creates the required tables.
func (s *SymbolStore) initialize() error {
	symbolTable := `
	CREATE TABLE IF NOT EXISTS symbols (
		id TEXT PRIMARY KEY,
		domain TEXT,
		tag TEXT,
		payload TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_symbols_domain ON symbols(domain);
	CREATE INDEX IF NOT EXISTS idx_symbols_tag ON symbols(tag);
	`

	domainTable := `
	CREATE TABLE IF NOT EXISTS domains (
		domain TEXT PRIMARY KEY
	);
	`

	sessionTable := `
	CREATE TABLE IF NOT EXISTS session_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_session ON session_history(session_id);
	`

	for _, table := range []string{symbolTable, domainTable, sessionTable} {
		if _, err := s.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// SetIndexer attaches the retrieval index refreshed on writes. Must be called
// during wiring, before concurrent use.
func (s *SymbolStore) SetIndexer(idx Indexer) {
	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	s.idx = idx
}

func (s *SymbolStore) indexer() Indexer {
	s.idxMu.RLock()
	defer s.idxMu.RUnlock()
	return s.idx
}

// Close closes the database connection.
func (s *SymbolStore) Close() error {
	logging.Store("Closing SymbolStore database connection")
	return s.db.Close()
}

// Get returns the symbol with the given id, or nil when absent.
func (s *SymbolStore) Get(id string) (*types.Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRow("SELECT payload FROM symbols WHERE id = ?", id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to read symbol %s: %v", id, err)
		return nil, err
	}

	var sym types.Symbol
	if err := json.Unmarshal([]byte(payload), &sym); err != nil {
		logging.Get(logging.CategoryStore).Error("Malformed payload for symbol %s: %v", id, err)
		return nil, fmt.Errorf("malformed payload for symbol %s: %w", id, err)
	}
	return &sym, nil
}

// GetMany returns the symbols for the given ids, skipping missing and
// malformed entries without erroring. Result order follows the input ids.
func (s *SymbolStore) GetMany(ids []string) ([]*types.Symbol, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetMany")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Symbol
	for _, id := range ids {
		if id == "" {
			continue
		}
		var payload string
		err := s.db.QueryRow("SELECT payload FROM symbols WHERE id = ?", id).Scan(&payload)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		var sym types.Symbol
		if err := json.Unmarshal([]byte(payload), &sym); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping malformed symbol %s: %v", id, err)
			continue
		}
		out = append(out, &sym)
	}
	logging.StoreDebug("GetMany: requested=%d returned=%d", len(ids), len(out))
	return out, nil
}

// Put upserts a symbol, registers its domain, and refreshes its retrieval
// index entry.
func (s *SymbolStore) Put(ctx context.Context, sym *types.Symbol) error {
	if sym == nil || sym.ID == "" {
		return fmt.Errorf("symbol id is required")
	}

	if err := s.putOne(sym); err != nil {
		return err
	}

	if idx := s.indexer(); idx != nil {
		if err := idx.Upsert(ctx, sym); err != nil {
			return fmt.Errorf("index upsert for %s: %w", sym.ID, err)
		}
	}
	return nil
}

// putOne performs the database write under the store lock. The index update
// happens outside the lock because a rebuild reads back through List.
func (s *SymbolStore) putOne(sym *types.Symbol) error {
	payload, err := json.Marshal(sym)
	if err != nil {
		return fmt.Errorf("failed to marshal symbol %s: %w", sym.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Storing symbol: id=%s domain=%s", sym.ID, sym.Domain)

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO symbols (id, domain, tag, payload) VALUES (?, ?, ?, ?)`,
		sym.ID, sym.Domain, sym.Tag, string(payload),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to store symbol %s: %v", sym.ID, err)
		return err
	}

	if sym.Domain != "" {
		if _, err := s.db.Exec("INSERT OR IGNORE INTO domains (domain) VALUES (?)", sym.Domain); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to register domain %s: %v", sym.Domain, err)
			return err
		}
	}
	return nil
}

// PutBulk upserts symbols in a single transaction and refreshes their index
// entries.
func (s *SymbolStore) PutBulk(ctx context.Context, syms []*types.Symbol) error {
	timer := logging.StartTimer(logging.CategoryStore, "PutBulk")
	defer timer.Stop()

	if len(syms) == 0 {
		return nil
	}

	if err := s.putBulkTx(syms); err != nil {
		return err
	}

	if idx := s.indexer(); idx != nil {
		for _, sym := range syms {
			if err := idx.Upsert(ctx, sym); err != nil {
				return fmt.Errorf("index upsert for %s: %w", sym.ID, err)
			}
		}
	}
	return nil
}

func (s *SymbolStore) putBulkTx(syms []*types.Symbol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin bulk write: %w", err)
	}
	defer tx.Rollback()

	symStmt, err := tx.Prepare(`INSERT OR REPLACE INTO symbols (id, domain, tag, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer symStmt.Close()

	domStmt, err := tx.Prepare("INSERT OR IGNORE INTO domains (domain) VALUES (?)")
	if err != nil {
		return err
	}
	defer domStmt.Close()

	for _, sym := range syms {
		if sym == nil || sym.ID == "" {
			return fmt.Errorf("bulk write contains a symbol without an id")
		}
		payload, err := json.Marshal(sym)
		if err != nil {
			return fmt.Errorf("failed to marshal symbol %s: %w", sym.ID, err)
		}
		if _, err := symStmt.Exec(sym.ID, sym.Domain, sym.Tag, string(payload)); err != nil {
			return fmt.Errorf("failed to store symbol %s: %w", sym.ID, err)
		}
		if sym.Domain != "" {
			if _, err := domStmt.Exec(sym.Domain); err != nil {
				return fmt.Errorf("failed to register domain %s: %w", sym.Domain, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bulk write: %w", err)
	}

	logging.Store("Bulk stored %d symbols", len(syms))
	return nil
}

// Delete removes a symbol and reports whether it existed. A successful delete
// triggers a full index rebuild; rebuild failures are logged but do not fail
// the delete, since the store remains authoritative. Deleting an absent id
// does not touch the index.
func (s *SymbolStore) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := s.deleteOne(id)
	if err != nil || !removed {
		return removed, err
	}

	if idx := s.indexer(); idx != nil {
		if err := idx.Rebuild(ctx); err != nil {
			logging.Get(logging.CategoryStore).Warn("Index rebuild after deleting %s failed: %v", id, err)
		}
	}
	return true, nil
}

func (s *SymbolStore) deleteOne(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM symbols WHERE id = ?", id)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to delete symbol %s: %v", id, err)
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	logging.StoreDebug("Delete symbol id=%s removed=%v", id, n > 0)
	return n > 0, nil
}

// List returns symbols matching the optional domain and tag filters, sliced
// by offset/limit. Order follows store insertion order; malformed payloads
// are logged and skipped.
func (s *SymbolStore) List(domain, tag string, offset, limit int) ([]*types.Symbol, error) {
	timer := logging.StartTimer(logging.CategoryStore, "List")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT id, payload FROM symbols ORDER BY rowid")
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to scan symbols: %v", err)
		return nil, err
	}
	defer rows.Close()

	var matched []*types.Symbol
	for rows.Next() {
		var id, payload string
		if err := rows.Scan(&id, &payload); err != nil {
			continue
		}
		var sym types.Symbol
		if err := json.Unmarshal([]byte(payload), &sym); err != nil {
			logging.Get(logging.CategoryStore).Warn("Skipping malformed symbol %s: %v", id, err)
			continue
		}
		if domain != "" && sym.Domain != domain {
			continue
		}
		if tag != "" && sym.Tag != tag {
			continue
		}
		matched = append(matched, &sym)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	logging.StoreDebug("List: domain=%q tag=%q matched=%d returned=%d", domain, tag, len(matched), end-offset)
	return matched[offset:end], nil
}

// Domains returns every domain ever registered by a symbol write.
func (s *SymbolStore) Domains() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT domain FROM domains ORDER BY domain")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			continue
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

// Stats returns row counts per table.
func (s *SymbolStore) Stats() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"symbols", "domains", "session_history"} {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			logging.StoreDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}
