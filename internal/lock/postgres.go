package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Postgres locks a destination with pg_try_advisory_lock on a dedicated
// connection. The lock lives as long as that session, so a crashed run
// releases it automatically.
type Postgres struct {
	DSN string
}

func (l *Postgres) Acquire(ctx context.Context, key string) (Lock, error) {
	conn, err := pgx.Connect(ctx, l.DSN)
	if err != nil {
		return nil, fmt.Errorf("lock: connect: %w", err)
	}
	id := int64(keyHash(key))
	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", id).Scan(&ok); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("lock: advisory lock: %w", err)
	}
	if !ok {
		conn.Close(ctx)
		return nil, fmt.Errorf("lock %s: %w", key, ErrHeld)
	}
	return &pgLock{conn: conn, id: id}, nil
}

type pgLock struct {
	conn *pgx.Conn
	id   int64
}

func (l *pgLock) Release() error {
	if l.conn == nil {
		return nil
	}
	// The caller's context may already be canceled at this point.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", l.id)
	if cerr := l.conn.Close(ctx); err == nil {
		err = cerr
	}
	l.conn = nil
	return err
}
