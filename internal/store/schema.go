package store

import (
	"fmt"
	"strings"
)

// Collection names one entity collection.
type Collection string

const (
	CollectionMedia        Collection = "media"
	CollectionActionResult Collection = "action-result"
	CollectionTodo         Collection = "todo"
)

// Table declares a collection and the record fields it can be filtered on.
type Table struct {
	Name    Collection
	Indexes []string
}

// Schema maps collections to their table declaration.
type Schema map[Collection]Table

// collectionOrder fixes DDL order so migration SQL is stable.
var collectionOrder = []Collection{
	CollectionMedia,
	CollectionActionResult,
	CollectionTodo,
}

// DefaultSchema is the fixed collection layout. Index names are JSON field
// names of the stored record.
var DefaultSchema = Schema{
	CollectionMedia: {
		Name: CollectionMedia,
	},
	CollectionActionResult: {
		Name:    CollectionActionResult,
		Indexes: []string{"mediaKey", "actionType", "created"},
	},
	CollectionTodo: {
		Name:    CollectionTodo,
		Indexes: []string{"mediaKey", "done", "created"},
	},
}

// HasIndex reports whether field was declared as an index.
func (t Table) HasIndex(field string) bool {
	for _, idx := range t.Indexes {
		if idx == field {
			return true
		}
	}
	return false
}

func collectionsSQL(schema Schema) string {
	var b strings.Builder
	for _, name := range collectionOrder {
		table, ok := schema[name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, `
CREATE TABLE IF NOT EXISTS %s (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  blob_key TEXT,
  updated_at TEXT NOT NULL
);
`, quoteIdent(string(table.Name)))
		for _, field := range table.Indexes {
			fmt.Fprintf(&b, "CREATE INDEX IF NOT EXISTS %s ON %s(%s);\n",
				quoteIdent(indexName(table.Name, field)),
				quoteIdent(string(table.Name)),
				fieldExpr(field),
			)
		}
	}
	return b.String()
}

func indexName(collection Collection, field string) string {
	return fmt.Sprintf("idx_%s_%s", strings.ReplaceAll(string(collection), "-", "_"), field)
}

// fieldExpr must match between index DDL and list queries so SQLite uses the index.
func fieldExpr(field string) string {
	return fmt.Sprintf("json_extract(value, '$.%s')", field)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
