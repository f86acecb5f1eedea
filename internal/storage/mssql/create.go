package mssql

import (
	"fmt"
	"strings"

	"starschema/internal/storage"
)

// MapType maps a logical column type to a SQL Server type. Key columns use a
// bounded NVARCHAR because NVARCHAR(MAX) cannot be indexed.
func MapType(c storage.ColumnDef) string {
	switch c.Type {
	case storage.TypeBigInt:
		return "BIGINT"
	case storage.TypeInt:
		return "INT"
	case storage.TypeTimestamp:
		return "DATETIMEOFFSET(3)"
	default:
		if c.PrimaryKey {
			return "NVARCHAR(256)"
		}
		return "NVARCHAR(MAX)"
	}
}

// BuildCreateTableSQL returns a T-SQL script that creates t unless it exists.
// T-SQL has no CREATE TABLE IF NOT EXISTS, so the statement is wrapped in an
// OBJECT_ID guard:
//
//	IF OBJECT_ID(N'[dbo].[etl_runs]', N'U') IS NULL
//	BEGIN
//	  CREATE TABLE [dbo].[etl_runs] (...);
//	END
func BuildCreateTableSQL(t storage.TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("mssql %w", err)
	}
	fqn := msFQN(t.FQN)

	cols := make([]string, 0, len(t.Columns)+1)
	var pks []string
	for _, c := range t.Columns {
		def := msIdent(c.Name) + " " + MapType(c)
		if !c.Nullable || c.PrimaryKey {
			def += " NOT NULL"
		} else {
			def += " NULL"
		}
		cols = append(cols, def)
		if c.PrimaryKey {
			pks = append(pks, msIdent(c.Name))
		}
	}
	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}

	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL\nBEGIN\n  CREATE TABLE %s (\n    %s\n  );\nEND",
		strings.ReplaceAll(fqn, "'", "''"),
		fqn,
		strings.Join(cols, ",\n    "),
	), nil
}
