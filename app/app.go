package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/mihaja/abobot/app/admin"
	"github.com/mihaja/abobot/app/backup"
	"github.com/mihaja/abobot/app/flows"
	"github.com/mihaja/abobot/app/services"
	"github.com/mihaja/abobot/app/storage"
	"github.com/mihaja/abobot/core/bootstrap"
	coreconfig "github.com/mihaja/abobot/core/config"
	coredatabase "github.com/mihaja/abobot/core/database"
	coretelegram "github.com/mihaja/abobot/core/telegram"
	"github.com/mihaja/abobot/core/telegram/router"
	"github.com/mihaja/abobot/core/telegram/state"

	tele "gopkg.in/telebot.v4"
)

// sweepInterval is how often idle sessions are checked against the TTL.
const sweepInterval = 5 * time.Minute

// Config is the full application configuration: the shared core section plus
// the database block.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
}

// CoreConfig satisfies the runner's ConfigCarrier interface.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// LoadConfig reads the YAML file, applies the env overlay and validates.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}
	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// App aggregates the wired application.
type App struct {
	cfg *Config
	db  *sqlx.DB

	users *services.Users
	codes *services.Codes
	front *flows.Flows
	admin *admin.Admin

	sessions state.Manager[flows.Form]
}

// Bootstrap initializes infrastructure and wires the domain services.
func Bootstrap(cfg *Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	usersRepo := storage.NewUsersRepo(res.DB)
	codesRepo := storage.NewCodesRepo(res.DB)

	var publisher services.Publisher
	if pub := backup.New(cfg.Core.Backup, usersRepo, codesRepo); pub != nil {
		publisher = pub
	}

	users := services.NewUsers(usersRepo, publisher)
	codes := services.NewCodes(codesRepo, publisher)

	ttl := time.Duration(cfg.Core.Session.TTLMinutes) * time.Minute
	sessions := state.NewMemoryManager[flows.Form](ttl)

	return &App{
		cfg:      cfg,
		db:       res.DB,
		users:    users,
		codes:    codes,
		front:    flows.New(sessions, users, codes),
		admin:    admin.New(users, codes, cfg.Core.Telegram.AdminIDs),
		sessions: sessions,
	}, nil
}

// TelegramRunOptions assembles routes, middlewares and lifecycle hooks for
// the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return c.Send("Action non prise en charge.")
	})
	a.front.Register(reg)
	a.admin.Register(reg)

	access := a.admin.Access()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminIDs:      access.AdminIDs,
		OnAdminReject: access.OnReject,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.sessions, reg, router.TextOptions{})...)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, _ coretelegram.Runtime) error {
			a.sessions.StartSweeper(ctx, sweepInterval)
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			return a.db.Close()
		},
	}, nil
}
