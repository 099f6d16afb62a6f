// Package cli wires the bank connect client, export archive and refresh
// scheduler behind the bankconnect command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FACorreiaa/bankconnect-go/pkg/bankconnect"
	"github.com/FACorreiaa/bankconnect-go/pkg/config"
	"github.com/FACorreiaa/bankconnect-go/pkg/connector"
	"github.com/FACorreiaa/bankconnect-go/pkg/cron"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
	"github.com/FACorreiaa/bankconnect-go/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger

	Registry *prometheus.Registry
	Metrics  *connector.Metrics
	Client   *bankconnect.Client
	Archive  storage.Archive
}

// NewLogger builds the JSON logger used by the command.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics()

	if err := deps.initClient(); err != nil {
		return nil, fmt.Errorf("failed to init client: %w", err)
	}

	if err := deps.initArchive(); err != nil {
		return nil, fmt.Errorf("failed to init archive: %w", err)
	}

	logger.Debug("all dependencies initialized successfully")

	return deps, nil
}

func (d *Dependencies) initMetrics() {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = connector.NewMetrics(d.Registry)
}

func (d *Dependencies) initClient() error {
	client, err := bankconnect.New(d.Config.BankConnect,
		bankconnect.WithLogger(d.Logger),
		bankconnect.WithMetrics(d.Metrics),
	)
	if err != nil {
		return err
	}
	d.Client = client
	return nil
}

func (d *Dependencies) initArchive() error {
	archive, err := storage.NewLocalArchive(d.Config.Export.Dir)
	if err != nil {
		return err
	}
	d.Archive = archive
	return nil
}

// NewScheduler builds a refresh scheduler over the archive. One run of one
// entity may poll every requested read to its timeout.
func (d *Dependencies) NewScheduler(schedule string, categories model.Category) *cron.Scheduler {
	reads := 0
	for _, c := range model.AllCategories {
		if categories.Has(c) {
			reads++
		}
	}
	return cron.NewScheduler(d.Archive, cron.Options{
		Schedule:   schedule,
		Categories: categories,
		Keep:       d.Config.Export.Keep,
		RunTimeout: time.Duration(max(reads, 1))*d.Config.BankConnect.PollTimeout + time.Minute,
	}, d.Logger)
}

// ServeMetrics exposes /metrics until ctx is done.
func (d *Dependencies) ServeMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", d.Config.Observability.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.Logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	d.Logger.Info("metrics server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
