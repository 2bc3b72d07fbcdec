// Package inventory persists the declared-id inventory of resolved
// assemblies, so other processes can look up where an id lives without
// re-parsing an assembly (the analogue of a documentation toolchain's
// saved environment).
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bonzini/db4sphinx/internal/refs"
)

// Entry is one persisted id with its owning file.
type Entry struct {
	Assembly string
	ID       string
	File     string
}

// Store is a SQLite-backed id inventory. Use ":memory:" for tests.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (and if needed initializes) the inventory database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open inventory database: %w", err)
	}
	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS inventory (
		assembly TEXT NOT NULL,
		id TEXT NOT NULL,
		file TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (assembly, id)
	);
	CREATE INDEX IF NOT EXISTS idx_inventory_id ON inventory(id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Replace atomically swaps the inventory of one assembly for the ids in
// registry. Stale entries of previous runs disappear with the swap.
func (s *Store) Replace(ctx context.Context, assembly string, registry *refs.IDRegistry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin inventory transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM inventory WHERE assembly = ?", assembly); err != nil {
		return fmt.Errorf("clear inventory: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO inventory (assembly, id, file, updated_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare inventory insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	var insertErr error
	registry.Each(func(e refs.Entry) {
		if insertErr != nil {
			return
		}
		_, insertErr = stmt.ExecContext(ctx, assembly, e.ID, e.File, now)
	})
	if insertErr != nil {
		return fmt.Errorf("insert inventory entry: %w", insertErr)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit inventory: %w", err)
	}
	return nil
}

// Lookup reports the file owning id, searching every stored assembly.
func (s *Store) Lookup(ctx context.Context, id string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT assembly, id, file FROM inventory WHERE id = ? ORDER BY updated_at DESC LIMIT 1", id)
	var e Entry
	if err := row.Scan(&e.Assembly, &e.ID, &e.File); err != nil {
		if err == sql.ErrNoRows {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("lookup inventory id: %w", err)
	}
	return e, true, nil
}

// List returns every entry stored for assembly, ordered by id.
func (s *Store) List(ctx context.Context, assembly string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT assembly, id, file FROM inventory WHERE assembly = ? ORDER BY id", assembly)
	if err != nil {
		return nil, fmt.Errorf("list inventory: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Assembly, &e.ID, &e.File); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
