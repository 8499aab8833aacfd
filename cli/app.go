package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"

	"github.com/yulifengwx/RazorRockstars/config"
	"github.com/yulifengwx/RazorRockstars/logging"
	"github.com/yulifengwx/RazorRockstars/service"
	"github.com/yulifengwx/RazorRockstars/storage"
	"github.com/yulifengwx/RazorRockstars/views"
)

// app is everything a command needs, built from the config.
type app struct {
	cfg *config.Config
	log hclog.Logger

	store    *storage.Store
	renderer *views.Renderer
	service  *service.Service

	// memory is set when the memory backend is in use.
	memory *storage.MemoryBackend
}

// openApp loads the config and opens the backend. Views are loaded
// only when withViews is set and the config names a source.
func openApp(ctx context.Context, opts *RootOptions, logOutput io.Writer, withViews bool) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON, logOutput)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: logger}

	backend, err := a.openBackend(ctx)
	if err != nil {
		return nil, err
	}
	a.store = storage.NewStore(backend)

	if withViews {
		resources, err := a.openResources(ctx)
		if err != nil {
			a.store.Close()
			return nil, err
		}

		if resources != nil {
			a.renderer = views.NewRenderer(resources, logger.Named("views"))
			if err := a.renderer.Load(ctx); err != nil {
				a.store.Close()
				return nil, fmt.Errorf("loading views: %w", err)
			}
		}
	}

	// a nil renderer must reach the service as a nil interface
	var templates service.Templates
	if a.renderer != nil {
		templates = a.renderer
	}
	a.service = service.New(a.store, templates, logger.Named("service"))

	return a, nil
}

func (a *app) openBackend(ctx context.Context) (storage.Backend, error) {
	logger := a.log.Named("storage")
	cfg := a.cfg.Storage

	switch cfg.Backend {
	case config.BackendMemory:
		if cfg.DataDir == "" {
			a.memory = storage.NewMemoryBackend(logger)
			return a.memory, nil
		}

		backend, err := storage.OpenMemoryBackend(cfg.DataDir, logger)
		if err != nil {
			return nil, err
		}
		a.memory = backend
		return backend, nil

	case config.BackendSQLite:
		backend, err := storage.OpenSQLiteBackend(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return backend, nil

	case config.BackendDynamoDB:
		awsCfg, err := loadAWSConfig(ctx, a.cfg.AWS)
		if err != nil {
			return nil, err
		}

		backend := storage.NewDynamoBackend(newDynamoClient(awsCfg, cfg.DynamoDB), storage.DynamoOptions{
			Table:    cfg.DynamoDB.Table,
			AgeIndex: cfg.DynamoDB.AgeIndex,
			SeqTable: cfg.DynamoDB.SeqTable,
		}, logger)

		if cfg.DynamoDB.CreateTables {
			if err := backend.CreateTables(ctx); err != nil {
				return nil, err
			}
		}
		return backend, nil
	}

	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func (a *app) openResources(ctx context.Context) (views.Resources, error) {
	cfg := a.cfg.Views

	switch cfg.Source {
	case config.ViewsDir:
		return views.NewDirResources(cfg.Dir), nil

	case config.ViewsS3:
		awsCfg, err := loadAWSConfig(ctx, a.cfg.AWS)
		if err != nil {
			return nil, err
		}
		return views.NewS3Resources(newS3Client(awsCfg, cfg), cfg.Bucket, cfg.Prefix), nil
	}

	return nil, nil
}

func (a *app) startCompactor(ctx context.Context) {
	if a.memory == nil || a.cfg.Storage.DataDir == "" {
		return
	}

	compactor := storage.NewCompactor(a.memory, a.log.Named("compactor"))
	if a.cfg.Storage.CompactInterval > 0 {
		compactor.Interval = a.cfg.Storage.CompactInterval
	}
	if a.cfg.Storage.CompactThreshold > 0 {
		compactor.Threshold = a.cfg.Storage.CompactThreshold
	}

	compactor.StartCompactor(ctx)
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Error("error closing store", "error", err)
	}
}
