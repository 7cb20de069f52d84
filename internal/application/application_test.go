package application

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JonMunkholm/masterfile/internal/config"
	"github.com/JonMunkholm/masterfile/internal/core"
	"github.com/JonMunkholm/masterfile/internal/notify"
	"github.com/JonMunkholm/masterfile/internal/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Storage:    config.StorageConfig{Driver: "memory"},
		Masterfile: config.MasterfileConfig{Folder: "Masterfile", BackupFolder: "Backups", TimeZone: "America/Costa_Rica", Title: "Masterfile Sutel Fijo y Movilidad"},
		Counter:    config.CounterConfig{Driver: "file", MaxConns: 1},
		Notify:     config.NotifyConfig{Driver: "log"},
		Publish:    config.PublishConfig{MaxConcurrent: 1, MaxWaitTime: time.Second},
	}
}

func TestNew(t *testing.T) {
	core.Clear()
	t.Cleanup(core.Clear)

	now := time.Date(2025, 3, 14, 18, 0, 0, 0, time.UTC)
	app, err := New(context.Background(), testConfig(t), Options{
		Registerer: prometheus.NewRegistry(),
		Now:        func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer app.Close()

	if app.Store.Driver() != storage.DriverMemory {
		t.Errorf("Store.Driver() = %q, want %q", app.Store.Driver(), storage.DriverMemory)
	}
	if app.Location.String() != "America/Costa_Rica" {
		t.Errorf("Location = %q", app.Location)
	}

	infos := app.Service.ListDatasets()
	if len(infos) != 2 || infos[0].Key != "Fijo" || infos[1].Key != "Movilidad" {
		t.Errorf("ListDatasets() = %+v", infos)
	}

	status, err := app.Service.CounterStatus(context.Background())
	if err != nil {
		t.Fatalf("CounterStatus() error = %v", err)
	}
	// 18:00 UTC is 12:00 in Costa Rica, same calendar day.
	if status.Date != "14032025" || status.NextVersion != 1 {
		t.Errorf("CounterStatus() = %+v", status)
	}
	if status.NextSubject != "Masterfile Sutel Fijo y Movilidad 14032025" {
		t.Errorf("NextSubject = %q", status.NextSubject)
	}
}

func TestNew_NotifierOverride(t *testing.T) {
	core.Clear()
	t.Cleanup(core.Clear)

	cfg := testConfig(t)
	cfg.Notify.Driver = "smtp" // Invalid without a host, but overridden

	app, err := New(context.Background(), cfg, Options{Notifier: notify.Log{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	app.Close()
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad zone", func(c *config.Config) { c.Masterfile.TimeZone = "Nowhere/Special" }},
		{"missing catalog", func(c *config.Config) { c.Masterfile.DatasetsFile = "/nonexistent/datasets.yaml" }},
		{"bad storage", func(c *config.Config) { c.Storage.Driver = "tape" }},
		{"bad counter", func(c *config.Config) { c.Counter.Driver = "abacus" }},
		{"bad notifier", func(c *config.Config) { c.Notify.Driver = "smtp" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core.Clear()
			t.Cleanup(core.Clear)

			cfg := testConfig(t)
			tt.mutate(cfg)
			if _, err := New(context.Background(), cfg, Options{}); err == nil {
				t.Errorf("New() with %s expected error", tt.name)
			}
		})
	}
}
