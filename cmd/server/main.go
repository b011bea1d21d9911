// AdWatch - ad viewing verification and quota-gated publishing
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"adwatch/internal/adstore"
	"adwatch/internal/config"
	"adwatch/internal/logger"
	"adwatch/internal/repository"
	"adwatch/internal/repository/memory"
	"adwatch/internal/repository/postgres"
	"adwatch/internal/repository/redis"
	"adwatch/internal/repository/sqlite"
	"adwatch/internal/server"
	"adwatch/internal/templates"
	"adwatch/internal/watch"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not read .env: %v", err)
	}

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	lg, err := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Debug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	lg.Info("starting adwatch",
		zap.Bool("debug", cfg.Debug),
		zap.String("driver", cfg.Database.Driver))

	repos, closeRepos, err := openRepositories(ctx, cfg, lg)
	if err != nil {
		return err
	}
	defer closeRepos()

	store, err := adstore.New(repos, cfg.Watch.RequiredViews, adstore.WithLogger(lg))
	if err != nil {
		return fmt.Errorf("create ad store: %w", err)
	}

	if err := createDefaultAdmin(ctx, cfg, store, lg); err != nil {
		lg.Warn("could not create default admin", zap.Error(err))
	}

	sessions, err := watch.NewRegistry(cfg.WatchConfig(), store,
		watch.WithLogger(lg),
		watch.WithSessionTTL(cfg.SessionTTL()))
	if err != nil {
		return err
	}

	tmpl, err := templates.NewManager(templates.Embedded(), cfg.Debug)
	if err != nil {
		return fmt.Errorf("load templates: %w", err)
	}

	srv := server.New(cfg, store, sessions, tmpl, lg)
	lg.Info("server listening", zap.String("addr", "http://"+cfg.Address()))
	return srv.Run(ctx)
}

// openRepositories connects the configured database and code ledger
func openRepositories(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*repository.Repositories, func(), error) {
	repos := &repository.Repositories{}
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		repos.Users = postgres.NewUserRepo(pool)
		repos.Ads = postgres.NewAdRepo(pool)
		repos.Views = postgres.NewViewRepo(pool)
		repos.Quotas = postgres.NewQuotaRepo(pool)
	default:
		db, err := sqlite.New(cfg.GetDatabasePath())
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		if err := db.Migrate(); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		repos.Users = sqlite.NewUserRepo(db)
		repos.Ads = sqlite.NewAdRepo(db)
		repos.Views = sqlite.NewViewRepo(db)
		repos.Quotas = sqlite.NewQuotaRepo(db)
	}
	lg.Info("database initialized", zap.String("driver", cfg.Database.Driver))

	if cfg.Redis.Addr != "" {
		client, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		repos.Codes = redis.NewCodeLedger(client)
		lg.Info("code ledger on redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		repos.Codes = memory.NewCodeLedger(nil)
		lg.Info("code ledger in memory")
	}

	return repos, closeAll, nil
}

// createDefaultAdmin creates the admin account when no users exist. Without a
// configured password a random one is generated and logged once.
func createDefaultAdmin(ctx context.Context, cfg *config.Config, store *adstore.Service, lg *zap.Logger) error {
	password := cfg.Admin.Password
	generated := password == ""
	if generated {
		buf := make([]byte, 12)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		password = hex.EncodeToString(buf)
	}

	created, err := store.EnsureAdmin(ctx, cfg.Admin.Email, password)
	if err != nil || !created {
		return err
	}

	fields := []zap.Field{zap.String("email", cfg.Admin.Email)}
	if generated {
		fields = append(fields, zap.String("password", password))
	}
	lg.Warn("default admin user created, change the password in production", fields...)
	return nil
}
