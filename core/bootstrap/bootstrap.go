package bootstrap

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/mihaja/abobot/core/config"
	coredatabase "github.com/mihaja/abobot/core/database"
	"github.com/mihaja/abobot/core/logger"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// WaitTimeout bounds the initial wait for the database to come up;
	// 0 -> default (30s).
	WaitTimeout time.Duration

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, connects to the database, and applies migrations.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		wait := opts.WaitTimeout
		if wait <= 0 {
			wait = 30 * time.Second
		}
		if err := coredatabase.WaitForPostgres(opts.Database.DSN(), wait); err != nil {
			return nil, fmt.Errorf("bootstrap: database not reachable: %w", err)
		}
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	return &Result{DB: db}, nil
}
