package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/nhle/tempmail/internal/accounts"
	"github.com/nhle/tempmail/internal/credential"
	"github.com/nhle/tempmail/internal/detail"
	"github.com/nhle/tempmail/internal/janitor"
	"github.com/nhle/tempmail/internal/logging"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/provider"
	"github.com/nhle/tempmail/internal/provision"
	"github.com/nhle/tempmail/internal/store"
	appsync "github.com/nhle/tempmail/internal/sync"
)

// env is the wired application shared by every command.
type env struct {
	cfg      *model.AppConfig
	logger   *zap.Logger
	store    *store.SQLiteStore
	inbox    *appsync.Synchronizer
	accounts *accounts.Manager
	fetcher  *detail.Fetcher
}

// openEnv loads configuration and wires the core. With logToFile set,
// logs go to a file under the config directory unless one is configured,
// so they do not draw over the terminal client.
func openEnv(c *cli.Context, logToFile bool) (*env, error) {
	cfg, err := model.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.Bool("debug") {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if logToFile && cfg.Log.File == "" {
		cfg.Log.File = filepath.Join(filepath.Dir(cfg.Storage.DBPath), "tempmail.log")
	}

	for _, dir := range []string{filepath.Dir(cfg.Storage.DBPath), cfg.Storage.KeyringDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	registry, err := provider.Build(cfg, logger)
	if err != nil {
		return nil, err
	}
	policy := provision.PolicyFromConfig(cfg.Provisioning, registry.IDs())
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	prov := provision.New(registry, policy, provision.WithLogger(logger))

	ring, err := credential.Open(cfg.Storage.KeyringDir)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	inbox := appsync.New(registry, st,
		appsync.WithInterval(cfg.Poll.Interval()),
		appsync.WithLogger(logger),
	)
	mgr := accounts.NewManager(prov, credential.NewStore(ring), st, cfg.Limits,
		accounts.WithInbox(inbox),
		accounts.WithLogger(logger),
	)
	if err := mgr.Restore(c.Context); err != nil {
		st.Close()
		return nil, err
	}

	return &env{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		inbox:    inbox,
		accounts: mgr,
		fetcher:  detail.NewFetcher(registry, logger),
	}, nil
}

// janitor starts the cleanup schedule. The returned func stops it.
func (e *env) janitor(ctx context.Context) (func(), error) {
	cfg, err := janitor.LoadConfig()
	if err != nil {
		return nil, err
	}
	j := janitor.New(cfg, e.store, e.logger)
	if err := j.RunOnce(ctx); err != nil {
		e.logger.Warn("initial cleanup failed", zap.Error(err))
	}
	if err := j.Start(); err != nil {
		return nil, err
	}
	return j.Stop, nil
}

// activeMailbox returns the active mailbox or accounts.ErrNoActiveMailbox.
func (e *env) activeMailbox() (*model.Mailbox, error) {
	mb := e.accounts.Active()
	if mb == nil {
		return nil, fmt.Errorf("%w; create one with 'tempmail new'", accounts.ErrNoActiveMailbox)
	}
	return mb, nil
}

func (e *env) Close() {
	e.inbox.Stop()
	if err := e.store.Close(); err != nil {
		e.logger.Warn("closing store", zap.Error(err))
	}
	_ = e.logger.Sync()
}
