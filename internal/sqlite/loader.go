package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
)

// loadAllJSONL fills the empty tables from the JSONL files in dataDir inside
// one transaction. Malformed lines and rows that violate constraints are
// skipped; the number skipped is returned.
func loadAllJSONL(db *sql.DB, dataDir string) (int, error) {
	entities, skippedEntities, err := readJSONL[entityJSON](filepath.Join(dataDir, entitiesJSONL))
	if err != nil {
		return 0, err
	}
	meta, skippedMeta, err := readJSONL[metaJSON](filepath.Join(dataDir, metaJSONL))
	if err != nil {
		return 0, err
	}
	skipped := skippedEntities + skippedMeta

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := insertRecords(tx,
		"INSERT INTO entities (kind, entity_id, entity_type, roles, parent_id) VALUES (?, ?, ?, ?, ?)",
		entities, func(e entityJSON) ([]any, bool) {
			if e.EntityID <= 0 || e.Kind == "" {
				return nil, false
			}
			roles, err := json.Marshal(nonNil(e.Roles))
			if err != nil {
				return nil, false
			}
			return []any{e.Kind, e.EntityID, e.EntityType, string(roles), e.ParentID}, true
		})
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", entitiesJSONL, err)
	}
	skipped += n

	n, err = insertRecords(tx,
		"INSERT INTO meta (meta_id, kind, entity_id, meta_key, meta_value, position) VALUES (?, ?, ?, ?, ?, ?)",
		meta, func(m metaJSON) ([]any, bool) {
			if m.MetaID == "" || m.MetaKey == "" {
				return nil, false
			}
			return []any{m.MetaID, m.Kind, m.EntityID, m.MetaKey, m.MetaValue, m.Position}, true
		})
	if err != nil {
		return 0, fmt.Errorf("loading %s: %w", metaJSONL, err)
	}
	skipped += n

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing load transaction: %w", err)
	}
	return skipped, nil
}

// insertRecords runs insertSQL once per record with the arguments args
// derives. Records args rejects, and records the database refuses, are
// counted and skipped.
func insertRecords[T any](tx *sql.Tx, insertSQL string, records []T, args func(T) ([]any, bool)) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	skipped := 0
	for _, rec := range records {
		a, ok := args(rec)
		if !ok {
			skipped++
			continue
		}
		if _, err := stmt.Exec(a...); err != nil {
			skipped++
		}
	}
	return skipped, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
