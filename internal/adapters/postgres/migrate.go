package postgres

import (
    "context"
    "fmt"
    "log"

    "github.com/jackc/pgx/v5/stdlib"
    "github.com/pressly/goose/v3"

    "tripcrew/internal/adapters/postgres/migrations"
)

// Migrate applies the embedded goose migrations through the pool.
func (db *DB) Migrate(ctx context.Context) error {
    sqlDB := stdlib.OpenDBFromPool(db.Pool)
    defer sqlDB.Close()

    provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.FS)
    if err != nil {
        return fmt.Errorf("migration provider: %w", err)
    }
    results, err := provider.Up(ctx)
    if err != nil {
        return fmt.Errorf("run migrations: %w", err)
    }
    for _, r := range results {
        log.Printf("migration applied: %s (%s)", r.Source.Path, r.Duration)
    }
    return nil
}
