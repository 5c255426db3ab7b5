package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const pingTimeout = 5 * time.Second

// poolLimits returns the connection pool shape for a dialect. SQLite
// serializes writers, so more than one open connection only produces
// "database is locked" errors under concurrent recording inserts.
func poolLimits(d Dialect) (maxOpen, maxIdle int, lifetime time.Duration) {
	if d == SQLite {
		return 1, 1, 0
	}
	return 10, 5, 30 * time.Minute
}

func openPool(ctx context.Context, driverName, dsn string, d Dialect) (*sql.DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driverName, err)
	}
	maxOpen, maxIdle, lifetime := poolLimits(d)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxIdle)
	sqlDB.SetConnMaxLifetime(lifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return sqlDB, nil
}

// Ping backs the readiness check. The caller's deadline applies.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping failed: %w", err)
	}
	return nil
}

// InTx runs fn in a transaction, committing only when fn returns nil.
// A panic inside fn rolls back before propagating.
func (db *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}
