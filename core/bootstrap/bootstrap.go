// Package bootstrap prepares the infrastructure a bot needs before it starts
// serving updates.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/doorshop/core/config"
	coredatabase "github.com/m3rciful/doorshop/core/database"
	"github.com/m3rciful/doorshop/core/logger"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config
	Seeders  []Seeder
	// Dirs are created before the database is touched, e.g. the media root.
	Dirs []string

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, creates the working directories, connects to
// the database, applies migrations and runs the seeders in order. The
// connection is closed again when a later step fails.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	loggerInit, connect, migrate := opts.LoggerInit, opts.Connect, opts.Migrate
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if connect == nil {
		connect = coredatabase.Connect
	}
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}

	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	for _, dir := range opts.Dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("bootstrap: create %s: %w", dir, err)
		}
	}

	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	fail := func(err error) (*Result, error) {
		_ = db.Close()
		return nil, err
	}

	if err := migrate(opts.Database); err != nil {
		return fail(fmt.Errorf("bootstrap: migrations failed: %w", err))
	}
	for _, s := range opts.Seeders {
		start := time.Now()
		err := s.Seed(ctx, db)
		logger.Info(ctx, logger.CompSeed, "seed",
			slog.String("status", logger.Status(err)),
			slog.String("seeder", s.Name()),
			slog.Duration("duration", logger.Took(start)),
			logger.Err(err),
		)
		if err != nil {
			return fail(fmt.Errorf("bootstrap: seeder %s failed: %w", s.Name(), err))
		}
	}
	return &Result{DB: db}, nil
}
