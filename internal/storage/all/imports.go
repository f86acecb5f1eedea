// Package all wires the built-in storage backends into the storage factory.
//
// Importing it for side effects makes these kinds available to storage.New
// and storage.EnsureTable:
//
//   - "mssql"    (starschema/internal/storage/mssql)
//   - "mysql"    (starschema/internal/storage/mysql)
//   - "postgres" (starschema/internal/storage/postgres)
//   - "sqlite"   (starschema/internal/storage/sqlite)
package all

import (
	_ "starschema/internal/storage/mssql"
	_ "starschema/internal/storage/mysql"
	_ "starschema/internal/storage/postgres"
	_ "starschema/internal/storage/sqlite"
)
