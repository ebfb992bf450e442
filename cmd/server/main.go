package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/serial-fiction-service/api"
	"github.com/UkralStul/serial-fiction-service/internal/config"
	"github.com/UkralStul/serial-fiction-service/internal/ratelimit"
	"github.com/UkralStul/serial-fiction-service/internal/service"
	"github.com/UkralStul/serial-fiction-service/internal/storage"
	"github.com/UkralStul/serial-fiction-service/internal/storage/gormdb"
	"github.com/UkralStul/serial-fiction-service/internal/storage/inmemory"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()
	var configFile string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	rootCmd := &cobra.Command{
		Use:   "server",
		Short: "Serial fiction publication and rating service",
		Long: `Serves stories, chapters, ratings and comments over a JSON HTTP API.

Storage backends:
  - in-memory (default, optionally seeded with demo data)
  - postgres  (DATABASE_URL)
  - sqlite    (single file, for local development)`,
		SilenceUsage: true,
		RunE:         serveCmd.RunE,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema (postgres and sqlite storage)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, configFile)
			if err != nil {
				return err
			}
			if cfg.Storage == config.StorageInMemory {
				return errors.New("in-memory storage has no schema to migrate")
			}
			log, err := newLogger(cfg, os.Stderr)
			if err != nil {
				return err
			}
			_, closeStore, err := openStorage(cfg)
			if err != nil {
				return err
			}
			defer closeStore()
			log.Info("schema_migrated", slog.String("storage", cfg.Storage))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a config file (default ./config.yaml)")
	flags.String("port", "8080", "HTTP port")
	flags.String("storage", "", "Storage type: in-memory, postgres or sqlite")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.String("sqlite-path", "fiction.db", "SQLite database file")
	flags.String("jwt-secret", "", "HS256 secret for reader tokens (empty enables X-Reader-ID development mode)")
	flags.String("redis-addr", "", "Redis address for the shared rating rate limiter")
	flags.Int("ratings-per-minute", 30, "Ratings a reader may submit per minute (0 disables the limit)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")
	flags.Bool("seed", false, "Fill in-memory storage with demo data")
	for _, name := range []string{"port", "storage", "database-url", "sqlite-path", "jwt-secret", "redis-addr", "ratings-per-minute", "log-level", "log-format", "seed"} {
		_ = v.BindPFlag(flagKey(name), flags.Lookup(name))
	}

	rootCmd.AddCommand(serveCmd, migrateCmd)
	return rootCmd
}

// flagKey переводит имя флага в ключ конфигурации: database-url -> database_url.
func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func loadConfig(v *viper.Viper, configFile string) (*config.Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}
	return config.Load(v)
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// gormLogLevel: SQL-запросы пишутся только на уровне debug.
func gormLogLevel(cfg *config.Config) logger.LogLevel {
	level, _ := cfg.SlogLevel()
	switch {
	case level <= slog.LevelDebug:
		return logger.Info
	case level >= slog.LevelError:
		return logger.Error
	}
	return logger.Warn
}

func openStorage(cfg *config.Config) (storage.Storage, func(), error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		store, err := gormdb.OpenPostgres(cfg.DatabaseURL, gormLogLevel(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case config.StorageSQLite:
		store, err := gormdb.OpenSQLite(cfg.SQLitePath, gormLogLevel(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
	return inmemory.New(), func() {}, nil
}

// newLimiter выбирает Redis, если он настроен и отвечает, иначе счетчики в памяти процесса.
func newLimiter(ctx context.Context, cfg *config.Config, log *slog.Logger) (ratelimit.Limiter, func()) {
	if cfg.RatingsPerMinute == 0 {
		return nil, func() {}
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			log.Info("rate_limiter", slog.String("backend", "redis"), slog.String("addr", cfg.RedisAddr))
			return ratelimit.NewRedis(client, cfg.RatingsPerMinute, time.Minute), func() { _ = client.Close() }
		}
		// Недоступный Redis не останавливает запуск: лимит считается в памяти процесса
		log.Warn("redis_unavailable", slog.String("addr", cfg.RedisAddr), slog.String("error", err.Error()))
		_ = client.Close()
	}
	log.Info("rate_limiter", slog.String("backend", "memory"))
	return ratelimit.NewMemory(cfg.RatingsPerMinute, time.Minute), func() {}
}

func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log, err := newLogger(cfg, os.Stdout)
	if err != nil {
		return err
	}

	log.Info("starting server", slog.String("storage", cfg.Storage), slog.String("port", cfg.Port))
	store, closeStore, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := service.New(store, log)
	if cfg.Seed {
		if err := fillWithMockData(ctx, svc, log); err != nil {
			return err
		}
	}

	limiter, closeLimiter := newLimiter(ctx, cfg, log)
	defer closeLimiter()

	if cfg.JWTSecret == "" {
		log.Warn("jwt_secret is empty: readers are identified by the X-Reader-ID header")
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: api.NewRouter(api.Deps{
			Service:  svc,
			Store:    store,
			Auth:     api.NewAuthenticator(cfg.JWTSecret),
			Limiter:  limiter,
			Observer: api.NewRatingObserver(),
			Logger:   log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("listening on http://localhost:%s/", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
