package mysql

import (
	"fmt"
	"strings"

	"starschema/internal/storage"
)

// MapType maps a logical column type to a MySQL type. Key columns use VARCHAR
// because TEXT cannot be part of a primary key without a prefix length.
func MapType(c storage.ColumnDef) string {
	switch c.Type {
	case storage.TypeBigInt:
		return "BIGINT"
	case storage.TypeInt:
		return "INT"
	case storage.TypeTimestamp:
		return "DATETIME(3)"
	default:
		if c.PrimaryKey {
			return "VARCHAR(255)"
		}
		return "TEXT"
	}
}

// BuildCreateTableSQL returns a MySQL CREATE TABLE IF NOT EXISTS statement.
func BuildCreateTableSQL(t storage.TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("mysql %w", err)
	}

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		def := quoteIdent(c.Name) + " " + MapType(c)
		if !c.Nullable || c.PrimaryKey {
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
		"CREATE TABLE IF NOT EXISTS %s (\n  %s\n) DEFAULT CHARSET=utf8mb4;",
		quoteFQN(t.FQN),
		strings.Join(cols, ",\n  "),
	), nil
}
