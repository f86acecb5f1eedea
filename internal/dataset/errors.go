package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch is matched (errors.Is) by every *SchemaError.
var ErrSchemaMismatch = errors.New("schema mismatch")

// SchemaError reports columns an operation needed but the dataset does not
// have. It carries the dataset's inferred schema for diagnosis.
type SchemaError struct {
	Dataset string
	Missing []string
	Schema  Schema
	// Reason optionally replaces the default "missing columns" wording.
	Reason string
}

func (e *SchemaError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "missing columns " + strings.Join(e.Missing, ", ")
	}
	return fmt.Sprintf("dataset %q: %s: %s\n%s", e.Dataset, ErrSchemaMismatch, reason, e.Schema.TreeString())
}

// Is makes errors.Is(err, ErrSchemaMismatch) work for wrapped SchemaErrors.
func (e *SchemaError) Is(target error) bool { return target == ErrSchemaMismatch }
