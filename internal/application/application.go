// Package application assembles the publication service from configuration.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/masterfile/internal/config"
	"github.com/JonMunkholm/masterfile/internal/core"
	"github.com/JonMunkholm/masterfile/internal/counter"
	"github.com/JonMunkholm/masterfile/internal/notify"
	"github.com/JonMunkholm/masterfile/internal/storage"
)

// Options overrides parts of the assembly.
type Options struct {
	// Registerer receives the publication metrics. Nil disables them.
	Registerer prometheus.Registerer

	// Notifier replaces the configured notifier, e.g. for dry runs.
	Notifier core.Notifier

	// Now replaces the clock.
	Now func() time.Time
}

// App holds the service and the resources it owns.
type App struct {
	Service  *core.Service
	Store    storage.Store
	Counter  counter.Store
	Location *time.Location
}

// New registers the dataset catalog and builds the service with its
// storage, counter and notifier. Call Close when done.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	loc, err := time.LoadLocation(cfg.Masterfile.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone: %w", err)
	}

	specs, err := config.LoadDatasets(cfg.Masterfile.DatasetsFile)
	if err != nil {
		return nil, err
	}
	if err := config.RegisterDatasets(specs); err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, storage.Config{
		Driver: cfg.Storage.Driver,
		Root:   cfg.Storage.Root,
		S3: storage.S3Config{
			Region:          cfg.Storage.S3.Region,
			Bucket:          cfg.Storage.S3.Bucket,
			Prefix:          cfg.Storage.S3.Prefix,
			Endpoint:        cfg.Storage.S3.Endpoint,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			SessionToken:    cfg.Storage.S3.SessionToken,
			PathStyle:       cfg.Storage.S3.PathStyle,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}

	counterStore, err := counter.Open(ctx, counter.Config{
		Driver:   cfg.Counter.Driver,
		Path:     cfg.CounterPath(),
		Name:     cfg.Counter.Name,
		DSN:      cfg.Counter.DSN,
		MaxConns: cfg.Counter.MaxConns,
	}, store)
	if err != nil {
		return nil, fmt.Errorf("counter store: %w", err)
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier, err = notify.New(notify.Config{
			Driver: cfg.Notify.Driver,
			SMTP: notify.SMTPConfig{
				Host:     cfg.Notify.Host,
				Port:     cfg.Notify.Port,
				Username: cfg.Notify.Username,
				Password: cfg.Notify.Password,
				TLS:      cfg.Notify.TLS,
				SSL:      cfg.Notify.SSL,
				Timeout:  cfg.Notify.Timeout,
				From:     cfg.Notify.From,
				To:       cfg.Notify.To,
				Cc:       cfg.Notify.Cc,
			},
		})
		if err != nil {
			counterStore.Close()
			return nil, err
		}
	}

	var metrics *core.Metrics
	if opts.Registerer != nil {
		metrics = core.NewMetrics(opts.Registerer)
	}

	report := core.DefaultReportConfig()
	report.Title = cfg.Masterfile.Title

	svc, err := core.NewService(core.Options{
		Store:    store,
		Counter:  core.NewVersionCounter(counterStore, loc, opts.Now),
		Notifier: notifier,
		Layout: core.Layout{
			Folder:       cfg.Masterfile.Folder,
			BackupFolder: cfg.Masterfile.BackupFolder,
		},
		Report:   report,
		Location: loc,
		Now:      opts.Now,
		Limiter:  core.NewPublishLimiter(cfg.Publish.MaxConcurrent, cfg.Publish.MaxWaitTime),
		Metrics:  metrics,
	})
	if err != nil {
		counterStore.Close()
		return nil, err
	}

	slog.Info("service assembled",
		"storage", store.Driver(),
		"counter", cfg.Counter.Driver,
		"notifier", cfg.Notify.Driver,
		"datasets", core.DatasetCount(),
		"timezone", loc.String())

	return &App{
		Service:  svc,
		Store:    store,
		Counter:  counterStore,
		Location: loc,
	}, nil
}

// Close releases the counter store. It does not wait for publications.
func (a *App) Close() error {
	if a == nil || a.Counter == nil {
		return nil
	}
	return a.Counter.Close()
}
