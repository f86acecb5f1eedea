package postgres

import (
	"fmt"
	"sort"
	"strings"

	"starschema/internal/storage"
)

// MapType maps a logical column type to a Postgres type.
func MapType(t storage.ColumnType) string {
	switch t {
	case storage.TypeBigInt:
		return "BIGINT"
	case storage.TypeInt:
		return "INTEGER"
	case storage.TypeTimestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// BuildCreateTableSQL builds a deterministic CREATE TABLE IF NOT EXISTS
// statement. Primary-key columns are always NOT NULL and the PRIMARY KEY
// constraint lists them sorted.
func BuildCreateTableSQL(t storage.TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("postgres %w", err)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	pks := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		def := quoteIdent(c.Name) + " " + MapType(c.Type)
		if !c.Nullable || c.PrimaryKey {
			def += " NOT NULL"
		}
		cols = append(cols, def)
		if c.PrimaryKey {
			pks = append(pks, quoteIdent(c.Name))
		}
	}
	if len(pks) > 0 {
		sort.Strings(pks)
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		quoteFQN(t.FQN),
		strings.Join(cols, ",\n  "),
	), nil
}

// quoteIdent quotes a single identifier segment, e.g. `weird"name` => `"weird""name"`.
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// quoteFQN quotes a possibly schema-qualified name like "public.etl_runs" to
// `"public"."etl_runs"`. Empty segments are ignored.
func quoteFQN(f string) string {
	parts := strings.Split(f, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, quoteIdent(p))
	}
	return strings.Join(out, ".")
}
