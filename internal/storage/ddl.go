package storage

import (
	"context"
	"fmt"
	"sync"
)

// ColumnType is a logical column type; backends map it to their SQL type.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeBigInt
	TypeInt
	TypeTimestamp
)

// ColumnDef describes one column of a TableDef.
type ColumnDef struct {
	Name       string
	Type       ColumnType
	Nullable   bool
	PrimaryKey bool
}

// TableDef is a backend-neutral table definition.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// DDLBuilder renders a CREATE TABLE IF NOT EXISTS statement in a backend's
// dialect.
type DDLBuilder func(t TableDef) (string, error)

var (
	ddlMu    sync.RWMutex
	builders = map[string]DDLBuilder{}
)

// RegisterDDL installs (or replaces) the DDL builder for kind.
func RegisterDDL(kind string, b DDLBuilder) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	builders[kind] = b
}

// EnsureTable renders t with the builder registered for kind and applies it
// through repo.
func EnsureTable(ctx context.Context, kind string, repo Repository, t TableDef) error {
	ddlMu.RLock()
	b, ok := builders[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL builder registered for storage.kind=%q", kind)
	}
	stmt, err := b(t)
	if err != nil {
		return err
	}
	if err := repo.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("apply DDL for %s: %w", t.FQN, err)
	}
	return nil
}

// Validate checks the parts of t every dialect needs.
func (t TableDef) Validate() error {
	if t.FQN == "" {
		return fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("ddl: table %s: at least one column is required", t.FQN)
	}
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("ddl: table %s: column with empty name", t.FQN)
		}
	}
	return nil
}
