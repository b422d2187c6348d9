package main

import (
    "context"
    "errors"
    "fmt"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    httpadapter "tripcrew/internal/adapters/http"
    "tripcrew/internal/adapters/memory"
    pg "tripcrew/internal/adapters/postgres"
    "tripcrew/internal/adapters/sqlite"
    "tripcrew/internal/config"
    "tripcrew/internal/metrics"
    "tripcrew/internal/ports"
    "tripcrew/internal/services/assignment"
    "tripcrew/internal/services/availability"
    "tripcrew/internal/services/lifecycle"
)

type stores struct {
    calendar ports.CalendarStore
    profiles ports.CandidatePoolProvider
    close    func()
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
    switch cfg.StoreDriver {
    case config.DriverPostgres:
        db, err := pg.Connect(ctx, cfg.DatabaseURL, pg.Options{
            MaxConns:        cfg.DBMaxConns,
            ConnectAttempts: cfg.DBConnectAttempts,
            RetryBase:       cfg.DBRetryBase,
            TxAttempts:      cfg.DBTxAttempts,
        })
        if err != nil {
            return stores{}, err
        }
        if cfg.MigrateOnStart {
            if err := db.Migrate(ctx); err != nil {
                db.Close()
                return stores{}, err
            }
        }
        return stores{calendar: db, profiles: db, close: db.Close}, nil
    case config.DriverSQLite:
        s, err := sqlite.Open(ctx, cfg.SQLitePath)
        if err != nil {
            return stores{}, err
        }
        return stores{calendar: s, profiles: s, close: func() { _ = s.Close() }}, nil
    case config.DriverMemory:
        return stores{calendar: memory.NewCalendar(), profiles: memory.NewProfiles(), close: func() {}}, nil
    }
    return stores{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

func main() {
    cfg, err := config.Load()
    if err != nil {
        log.Fatalf("config: %v", err)
    }

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    st, err := openStores(ctx, cfg)
    if err != nil {
        log.Fatalf("store init error: %v", err)
    }
    defer st.close()
    log.Printf("calendar store: %s", cfg.StoreDriver)

    m, err := metrics.NewPrometheus(prometheus.DefaultRegisterer, "tripcrew")
    if err != nil {
        log.Fatalf("metrics: %v", err)
    }

    // Wire the store ports into the services
    manager := lifecycle.New(st.calendar, m, nil)
    engine := assignment.New(availability.New(st.calendar, cfg.ResolveConcurrency), manager, assignment.Options{Metrics: m})

    srv := httpadapter.New(engine, manager, st.profiles, cfg.AdminToken, promhttp.Handler())
    r := chi.NewRouter()
    r.Mount("/", srv.Routes())
    if cfg.AdminToken == "" {
        log.Printf("ADMIN_TOKEN not set; trip lock release route disabled")
    }

    httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
    errCh := make(chan error, 1)
    go func() { errCh <- httpSrv.ListenAndServe() }()
    log.Printf("listening on %s", cfg.ListenAddr)

    // graceful shutdown
    sigCh := make(chan os.Signal, 1)
    signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
    select {
    case sig := <-sigCh:
        log.Printf("shutting down on %s", sig)
        shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
        defer stop()
        if err := httpSrv.Shutdown(shutdownCtx); err != nil {
            log.Printf("shutdown: %v", err)
        }
        cancel()
    case err := <-errCh:
        if !errors.Is(err, http.ErrServerClosed) {
            log.Fatal(fmt.Errorf("server error: %w", err))
        }
    }
}
