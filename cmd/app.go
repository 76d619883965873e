package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/epunch/internal/config"
	"github.com/Tiliavir/epunch/internal/database"
	"github.com/Tiliavir/epunch/internal/firebase"
	"github.com/Tiliavir/epunch/internal/storage"
	"github.com/Tiliavir/epunch/internal/tracker"
)

var errNoUser = errors.New(`no user given: pass --user or set "user" in config.json`)

// app is what every command runs against.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	loc   *time.Location
	svc   *tracker.Service
	close func() error
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, &setupError{err: err}
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, &setupError{err: err}
	}
	zap.ReplaceGlobals(logger)

	loc, err := cfg.Location()
	if err != nil {
		return nil, &setupError{err: err}
	}

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, &setupError{err: err}
	}
	logger.Debug("store opened", zap.String("driver", cfg.Store.Driver))

	return &app{
		cfg: cfg,
		log: logger,
		loc: loc,
		svc: tracker.New(store, tracker.WithLogger(logger), tracker.WithLocation(loc)),
		close: func() error {
			_ = logger.Sync()
			return closeStore()
		},
	}, nil
}

// Close releases the store. Errors are ignored; nothing is buffered.
func (a *app) Close() {
	_ = a.close()
}

// user returns the acting user id.
func (a *app) user() (string, error) {
	if userFlag != "" {
		return userFlag, nil
	}
	if a.cfg.User != "" {
		return a.cfg.User, nil
	}
	return "", errNoUser
}

func newLogger(c config.LogConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	if c.Format == "json" {
		zc = zap.NewProductionConfig()
	}
	zc.Level = level
	zc.DisableStacktrace = true
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

func openStore(ctx context.Context, c config.StoreConfig) (tracker.Store, func() error, error) {
	switch c.Driver {
	case config.DriverSQLite:
		db, err := database.New(c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case config.DriverFirestore:
		client, err := firebase.NewClient(ctx, c.Firestore.ProjectID, c.Firestore.CredentialsFile)
		if err != nil {
			return nil, nil, err
		}
		fs := firebase.New(client)
		return fs, fs.Close, nil
	default:
		fs, err := storage.New(c.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() error { return nil }, nil
	}
}
