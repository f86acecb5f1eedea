// Package lock provides mutual exclusion on an output destination so that two
// runs never overwrite the same tables at the same time.
//
// Kinds:
//
//   - "file": an flock on a file in a local directory; excludes runs on the
//     same host.
//   - "postgres": a session advisory lock; excludes runs on any host that
//     share the database.
//   - "none": no exclusion.
//
// Acquisition never waits: a held lock fails fast with ErrHeld.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"

	"starschema/internal/datasource"
)

// ErrHeld is returned when another run holds the lock.
var ErrHeld = errors.New("destination is locked by another run")

// Lock is a held lock.
type Lock interface {
	Release() error
}

// Locker acquires locks keyed by destination.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lock, error)
}

// Config selects a Locker.
type Config struct {
	Kind string
	// Dir holds lock files for Kind "file". Defaults to os.TempDir().
	Dir string
	// DSN is the Postgres connection string for Kind "postgres".
	DSN string
}

// New returns the Locker for cfg.Kind.
func New(cfg Config) (Locker, error) {
	switch cfg.Kind {
	case "", "none":
		return Noop{}, nil
	case "file":
		dir := cfg.Dir
		if dir == "" {
			dir = os.TempDir()
		}
		return &File{Dir: dir}, nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, fmt.Errorf("lock: postgres lock requires a DSN")
		}
		return &Postgres{DSN: cfg.DSN}, nil
	default:
		return nil, fmt.Errorf("lock: unsupported kind %q", cfg.Kind)
	}
}

// Noop never excludes anything.
type Noop struct{}

func (Noop) Acquire(context.Context, string) (Lock, error) { return noopLock{}, nil }

type noopLock struct{}

func (noopLock) Release() error { return nil }

// CanonicalKey renders a destination so that every spelling of it locks the
// same thing. Local paths become absolute and clean; object-store URLs use
// the s3 scheme and a clean key without a trailing slash.
func CanonicalKey(dest string) string {
	loc, err := datasource.Parse(dest)
	if err != nil {
		return dest
	}
	if loc.Scheme == datasource.SchemeS3 {
		loc.Path = strings.Trim(path.Clean("/"+loc.Path), "/")
		return loc.String()
	}
	abs, err := filepath.Abs(loc.Path)
	if err != nil {
		return filepath.Clean(loc.Path)
	}
	return abs
}

// keyHash maps a destination to a stable 64-bit lock id.
func keyHash(key string) uint64 { return xxh3.HashString(CanonicalKey(key)) }

func keyName(key string) string { return "starschema-" + strconv.FormatUint(keyHash(key), 16) + ".lock" }
