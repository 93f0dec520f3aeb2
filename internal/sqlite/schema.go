package sqlite

// Schema DDL. JSONL files under DataDir are the source of truth; these
// tables are rebuilt from them on every Attach.
const (
	createEntities = `CREATE TABLE entities (
    kind TEXT NOT NULL,
    entity_id INTEGER NOT NULL,
    entity_type TEXT NOT NULL DEFAULT '',
    roles TEXT NOT NULL DEFAULT '[]',
    parent_id INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (kind, entity_id)
);`

	createMeta = `CREATE TABLE meta (
    meta_id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    entity_id INTEGER NOT NULL,
    meta_key TEXT NOT NULL,
    meta_value TEXT NOT NULL,
    position INTEGER NOT NULL,
    FOREIGN KEY (kind, entity_id) REFERENCES entities(kind, entity_id) ON DELETE CASCADE
);`

	idxMetaEntityKey = `CREATE INDEX idx_meta_entity_key ON meta(kind, entity_id, meta_key, position);`
)

// schemaDDL lists all statements in dependency order.
var schemaDDL = []string{
	createEntities,
	createMeta,
	idxMetaEntityKey,
}
