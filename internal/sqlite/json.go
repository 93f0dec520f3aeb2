package sqlite

// JSONL record structures. Field names match the SQLite column names so the
// loader can map them directly.

// entityJSON is one line of entities.jsonl.
type entityJSON struct {
	Kind       string   `json:"kind"`
	EntityID   int64    `json:"entity_id"`
	EntityType string   `json:"entity_type"`
	Roles      []string `json:"roles"`
	ParentID   int64    `json:"parent_id"`
}

// metaJSON is one line of meta.jsonl.
type metaJSON struct {
	MetaID    string `json:"meta_id"`
	Kind      string `json:"kind"`
	EntityID  int64  `json:"entity_id"`
	MetaKey   string `json:"meta_key"`
	MetaValue string `json:"meta_value"`
	Position  int64  `json:"position"`
}

// JSONL file names under DataDir.
const (
	entitiesJSONL = "entities.jsonl"
	metaJSONL     = "meta.jsonl"
)
