// Package sqlite implements types.Store on SQLite. JSONL files in DataDir
// are the source of truth: Attach rebuilds a fresh database from them and
// every write rewrites the affected file.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/metafields/pkg/types"
)

const dbFile = "metafields.db"

// Backend implements types.Store using SQLite as the query engine and JSONL
// files as the persisted form.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	logger   *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBackend creates a detached backend; call Attach before use.
func NewBackend(opts ...Option) *Backend {
	b := &Backend{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens the backend on config.DataDir. It creates the directory if
// needed, rebuilds the database and loads the JSONL files.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	// The database is a cache of the JSONL files; start from scratch.
	dbPath := filepath.Join(dataDir, dbFile)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return fmt.Errorf("opening %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	skipped, err := loadAllJSONL(db, dataDir)
	if err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}
	if skipped > 0 {
		b.logger.Warn("skipped unreadable JSONL records", "data_dir", dataDir, "count", skipped)
	}

	config.DataDir = dataDir
	b.db = db
	b.config = config
	b.attached = true
	b.logger.Debug("sqlite backend attached", "data_dir", dataDir)
	return nil
}

// Detach closes the database. It is idempotent; afterwards every operation
// returns ErrStoreDetached.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		err := b.db.Close()
		b.db = nil
		return err
	}
	return nil
}

// persistEntities rewrites entities.jsonl from the entities table. The
// caller must hold b.mu.
func (b *Backend) persistEntities() error {
	rows, err := b.db.Query("SELECT kind, entity_id, entity_type, roles, parent_id FROM entities ORDER BY kind, entity_id")
	if err != nil {
		return fmt.Errorf("reading entities: %w", err)
	}
	defer rows.Close()

	var records []entityJSON
	for rows.Next() {
		var rec entityJSON
		var roles string
		if err := rows.Scan(&rec.Kind, &rec.EntityID, &rec.EntityType, &roles, &rec.ParentID); err != nil {
			return fmt.Errorf("scanning entity: %w", err)
		}
		rec.Roles, err = decodeRoles(roles)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(b.config.DataDir, entitiesJSONL), records)
}

// persistMeta rewrites meta.jsonl from the meta table. The caller must hold
// b.mu.
func (b *Backend) persistMeta() error {
	rows, err := b.db.Query("SELECT meta_id, kind, entity_id, meta_key, meta_value, position FROM meta ORDER BY kind, entity_id, meta_key, position")
	if err != nil {
		return fmt.Errorf("reading meta: %w", err)
	}
	defer rows.Close()

	var records []metaJSON
	for rows.Next() {
		var rec metaJSON
		if err := rows.Scan(&rec.MetaID, &rec.Kind, &rec.EntityID, &rec.MetaKey, &rec.MetaValue, &rec.Position); err != nil {
			return fmt.Errorf("scanning meta: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return writeJSONL(filepath.Join(b.config.DataDir, metaJSONL), records)
}

// generateUUID generates a UUID v7 for meta rows.
func generateUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
