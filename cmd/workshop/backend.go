package main

import (
	"context"
	"io"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-workshop/backend/local"
	"github.com/goliatone/go-workshop/backend/rest"
	"github.com/goliatone/go-workshop/config"
	"github.com/goliatone/go-workshop/persistence"
	"github.com/goliatone/go-workshop/repository"
	"github.com/goliatone/go-workshop/web"
	"github.com/uptrace/bun"
)

// backend is the configured session factory plus whatever it holds open.
type backend struct {
	factory web.SessionFactory
	service *local.Service
	db      *bun.DB
}

func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// openBackend wires the backend named by the config. mailOut receives the
// console reset emails of the local backend.
func openBackend(ctx context.Context, opts *rootOptions, mailOut io.Writer) (*backend, error) {
	cfg := opts.cfg

	switch cfg.Backend {
	case config.BackendREST:
		// the hosted client cannot rebuild a session from an access token alone
		return &backend{
			factory: func(string) (web.Session, error) {
				client, err := rest.New(cfg.Hosted.URL, cfg.Hosted.AnonKey, rest.WithLogger(opts.logger))
				if err != nil {
					return nil, err
				}
				return client, nil
			},
		}, nil

	case config.BackendLocal:
		db, err := openDatabase(ctx, opts)
		if err != nil {
			return nil, err
		}

		service, err := local.NewService(repository.NewManager(db), []byte(cfg.Auth.SigningKey),
			local.WithLogger(opts.logger),
			local.WithMailer(local.ConsoleMailer{Out: mailOut, LinkBase: resetLinkBase(cfg)}),
			local.WithBcryptCost(cfg.Auth.BcryptCost),
			local.WithHashid(cfg.Auth.UseHashid),
			local.WithTokenTTL(cfg.Auth.TokenTTL),
			local.WithRefreshTTL(cfg.Auth.RefreshTTL),
			local.WithIssuer(cfg.Auth.Issuer),
			local.WithAudience(cfg.Auth.Audience),
			local.WithLoginThrottle(cfg.Auth.MaxLoginAttempts, cfg.Auth.CoolDown),
		)
		if err != nil {
			_ = db.Close()
			return nil, err
		}

		return &backend{
			db:      db,
			service: service,
			factory: func(token string) (web.Session, error) {
				return local.NewClient(service,
					local.WithAccessToken(token),
					local.WithClientLogger(opts.logger),
				), nil
			},
		}, nil

	default:
		return nil, goerrors.New("unknown backend "+cfg.Backend, goerrors.CategoryValidation).
			WithTextCode("BACKEND_UNKNOWN")
	}
}

func resetLinkBase(cfg *config.Config) string {
	addr := cfg.HTTP.Addr
	if len(addr) > 0 && addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/password-reset"
}

// openDatabase connects with the configured database settings and applies
// pending migrations.
func openDatabase(ctx context.Context, opts *rootOptions) (*bun.DB, error) {
	client, err := persistence.Connect(ctx, persistence.Config{
		DSN:            opts.cfg.Database.DSN,
		Debug:          opts.cfg.Database.Debug,
		PingTimeout:    opts.cfg.Database.PingTimeout,
		OtelIdentifier: "workshop",
	}, opts.logger)
	if err != nil {
		return nil, err
	}

	if err := persistence.Migrate(ctx, client, opts.logger); err != nil {
		_ = client.DB().Close()
		return nil, err
	}

	return client.DB(), nil
}
