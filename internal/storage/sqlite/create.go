package sqlite

import (
	"fmt"
	"strings"

	"starschema/internal/storage"
)

// MapType maps a logical column type to a SQLite type affinity. Timestamps
// are stored as ISO-8601 text.
func MapType(t storage.ColumnType) string {
	switch t {
	case storage.TypeBigInt, storage.TypeInt:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL returns a SQLite CREATE TABLE IF NOT EXISTS statement
// with PRIMARY KEY rendered as a table constraint in declaration order.
func BuildCreateTableSQL(t storage.TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("sqlite %w", err)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		def := quoteIdent(c.Name) + " " + MapType(c.Type)
		if !c.Nullable {
			def += " NOT NULL"
		}
		cols = append(cols, def)
		if c.PrimaryKey {
			pks = append(pks, quoteIdent(c.Name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		quoteFQN(t.FQN),
		strings.Join(cols, ",\n  "),
	), nil
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func quoteFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, quoteIdent(p))
	}
	return strings.Join(out, ".")
}
