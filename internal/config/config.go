package config

import (
    "fmt"
    "time"

    "github.com/caarlos0/env/v11"
)

const (
    DriverPostgres = "postgres"
    DriverSQLite   = "sqlite"
    DriverMemory   = "memory"
)

type Config struct {
    Env        string `env:"APP_ENV" envDefault:"development"`
    ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

    StoreDriver    string `env:"STORE_DRIVER" envDefault:"postgres"`
    DatabaseURL    string `env:"DATABASE_URL"`
    SQLitePath     string `env:"SQLITE_PATH" envDefault:"tripcrew.db"`
    MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`

    DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
    DBConnectAttempts uint64        `env:"DB_CONNECT_ATTEMPTS" envDefault:"5"`
    DBRetryBase       time.Duration `env:"DB_RETRY_BASE" envDefault:"100ms"`
    DBTxAttempts      uint64        `env:"DB_TX_ATTEMPTS" envDefault:"3"`

    ResolveConcurrency int `env:"RESOLVE_CONCURRENCY" envDefault:"8"`

    // AdminToken guards the administrative unlock route. Empty disables it.
    AdminToken string `env:"ADMIN_TOKEN"`
}

// Load reads the environment. A missing DATABASE_URL for the postgres driver
// is returned alongside the parsed config so callers can decide.
func Load() (Config, error) {
    var cfg Config
    if err := env.Parse(&cfg); err != nil {
        return cfg, fmt.Errorf("parse env: %w", err)
    }
    switch cfg.StoreDriver {
    case DriverPostgres:
        if cfg.DatabaseURL == "" {
            return cfg, fmt.Errorf("DATABASE_URL not set")
        }
    case DriverSQLite, DriverMemory:
    default:
        return cfg, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
    }
    return cfg, nil
}
