package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"civic-document-service/config"
	"civic-document-service/migrations"
	"civic-document-service/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
)

type options struct {
	ConfigPath string `long:"config" env:"CONFIG_PATH" description:"Path to config.yaml (database section is used)"`
	Down       bool   `long:"down" description:"Roll back all migrations instead of applying them"`
	Steps      int    `long:"steps" description:"Apply (or with --down roll back) only N migrations"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintf(os.Stderr, "failed to parse flags: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.WithComponent(logger.New(cfg.Log.Level, cfg.Log.Pretty), "migrate")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, migrationURL(cfg.Database.DSN()), log); err != nil {
		log.Fatal().Err(err).Msg("migration run failed")
	}
}

// migrationURL rewrites a postgres:// DSN to the pgx/v5 driver scheme.
func migrationURL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, scheme) {
			return "pgx5://" + strings.TrimPrefix(dsn, scheme)
		}
	}
	return dsn
}

func run(ctx context.Context, opts options, databaseURL string, log zerolog.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := iofs.New(migrations.Postgres, "postgres")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrate: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Warn().Err(srcErr).Msg("migration source close error")
		}
		if dbErr != nil {
			log.Warn().Err(dbErr).Msg("migration database close error")
		}
	}()

	go func() {
		<-ctx.Done()
		m.GracefulStop <- true
	}()

	switch {
	case opts.Steps > 0 && opts.Down:
		err = m.Steps(-opts.Steps)
	case opts.Steps > 0:
		err = m.Steps(opts.Steps)
	case opts.Down:
		err = m.Down()
	default:
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info().Msg("no migrations to apply")
			return nil
		}
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("read migration version: %w", err)
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations applied successfully")
	return nil
}
