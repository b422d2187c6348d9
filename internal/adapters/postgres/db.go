package postgres

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/jackc/pgx/v5"
    "github.com/jackc/pgx/v5/pgconn"
    "github.com/jackc/pgx/v5/pgxpool"
    "github.com/sethvargo/go-retry"
)

// Options tunes the pool and the retry policy. Zero values take defaults.
type Options struct {
    MaxConns        int32
    ConnectAttempts uint64
    RetryBase       time.Duration
    TxAttempts      uint64
}

func (o Options) withDefaults() Options {
    if o.MaxConns <= 0 { o.MaxConns = 10 }
    if o.ConnectAttempts == 0 { o.ConnectAttempts = 5 }
    if o.RetryBase <= 0 { o.RetryBase = 100 * time.Millisecond }
    if o.TxAttempts == 0 { o.TxAttempts = 3 }
    return o
}

type DB struct {
    Pool *pgxpool.Pool
    opts Options
}

// Connect opens a pool, retrying the initial ping with exponential backoff.
func Connect(ctx context.Context, url string, opts Options) (*DB, error) {
    opts = opts.withDefaults()
    cfg, err := pgxpool.ParseConfig(url)
    if err != nil {
        return nil, err
    }
    cfg.MaxConns = opts.MaxConns
    cfg.HealthCheckPeriod = 30 * time.Second

    var pool *pgxpool.Pool
    b := retry.WithMaxRetries(opts.ConnectAttempts-1, retry.NewExponential(opts.RetryBase))
    err = retry.Do(ctx, b, func(ctx context.Context) error {
        p, err := pgxpool.NewWithConfig(ctx, cfg)
        if err != nil {
            return err
        }
        if err := p.Ping(ctx); err != nil {
            p.Close()
            log.Printf("postgres not ready: %v", err)
            return retry.RetryableError(err)
        }
        pool = p
        return nil
    })
    if err != nil {
        return nil, fmt.Errorf("connect postgres: %w", err)
    }
    return &DB{Pool: pool, opts: opts}, nil
}

func (db *DB) Close() { db.Pool.Close() }

// withTx runs fn in a transaction, committing on nil and rolling back
// otherwise. Serialization failures and deadlocks are retried under the
// configured policy; every other error is returned as is.
func (db *DB) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
    b := retry.WithMaxRetries(db.opts.TxAttempts-1, retry.WithJitterPercent(20, retry.NewExponential(db.opts.RetryBase)))
    return retry.Do(ctx, b, func(ctx context.Context) error {
        err := db.runTx(ctx, fn)
        if isTransient(err) {
            return retry.RetryableError(err)
        }
        return err
    })
}

func (db *DB) runTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
    tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
    if err != nil { return err }
    defer func() {
        if err != nil { _ = tx.Rollback(ctx) } else { err = tx.Commit(ctx) }
    }()
    return fn(tx)
}

func isTransient(err error) bool {
    var pgErr *pgconn.PgError
    if !errors.As(err, &pgErr) {
        return false
    }
    switch pgErr.Code {
    case "40001", "40P01": // serialization_failure, deadlock_detected
        return true
    }
    return false
}
