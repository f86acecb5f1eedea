package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// File locks a destination with an exclusive flock on
// <Dir>/starschema-<hash>.lock. The file itself is left in place.
type File struct {
	Dir string
}

func (l *File) Acquire(ctx context.Context, key string) (Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("lock: %w", err)
	}
	path := filepath.Join(l.Dir, keyName(key))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lock: open %s: %w", path, err)
	}
	if err := tryLock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s (%s): %w", key, path, err)
	}
	_ = f.Truncate(0)
	_, _ = fmt.Fprintf(f, "pid %d\n%s\n", os.Getpid(), CanonicalKey(key))
	return &fileLock{f: f}, nil
}

type fileLock struct {
	f *os.File
}

func (l *fileLock) Release() error {
	if l.f == nil {
		return nil
	}
	err := unlock(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}
