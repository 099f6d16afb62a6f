// Package cron runs periodic refreshes of watched entities using robfig/cron.
package cron

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/bankconnect-go/pkg/bankconnect"
	"github.com/FACorreiaa/bankconnect-go/pkg/export"
	"github.com/FACorreiaa/bankconnect-go/pkg/model"
	"github.com/FACorreiaa/bankconnect-go/pkg/storage"
)

// Options configure a Scheduler.
type Options struct {
	// Schedule is a standard 5-field cron spec or a descriptor such as "@every 1h".
	Schedule   string
	Categories model.Category
	// Keep is passed to Archive.Prune after each export.
	Keep int
	// RunTimeout bounds one refresh of one entity.
	RunTimeout time.Duration
}

// Result is the outcome of one entity refresh.
type Result struct {
	EntityID string
	File     *storage.FileInfo
	Pruned   int
	Err      error
}

// Scheduler manages background refresh jobs using robfig/cron.
type Scheduler struct {
	cron    *cron.Cron
	archive storage.Archive
	opts    Options
	logger  *slog.Logger

	// base is the parent context of scheduled runs; Stop cancels it.
	base   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	entities []*bankconnect.Entity
}

// NewScheduler creates a scheduler that archives refreshed exports.
func NewScheduler(archive storage.Archive, opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Categories == 0 {
		opts.Categories = model.CategoryAccounts | model.CategoryTransactions
	}
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	base, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:    c,
		archive: archive,
		opts:    opts,
		logger:  logger,
		base:    base,
		cancel:  cancel,
	}
}

// Watch adds an entity to every subsequent run.
func (s *Scheduler) Watch(entity *bankconnect.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append(s.entities, entity)
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.opts.Schedule, func() { s.RunNow(s.base) }); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", s.opts.Schedule, err)
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.String("schedule", s.opts.Schedule),
		slog.Int("entities", len(s.watched())),
	)
	return nil
}

// Stop stops scheduling and cancels in-flight refreshes. The returned context
// is done when running jobs have returned.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	s.cancel()
	return s.cron.Stop()
}

// RunNow refreshes every watched entity once, synchronously.
func (s *Scheduler) RunNow(ctx context.Context) []Result {
	entities := s.watched()
	results := make([]Result, 0, len(entities))

	s.logger.Info("starting entity refresh", slog.Int("entities", len(entities)))
	failed := 0
	for _, entity := range entities {
		res := s.refresh(ctx, entity)
		if res.Err != nil {
			s.logger.Warn("failed to refresh entity",
				slog.String("entity_id", res.EntityID),
				slog.Any("error", res.Err),
			)
			failed++
		}
		results = append(results, res)
	}

	s.logger.Info("entity refresh completed",
		slog.Int("entities_refreshed", len(entities)-failed),
		slog.Int("entities_failed", failed),
	)
	return results
}

func (s *Scheduler) refresh(ctx context.Context, entity *bankconnect.Entity) Result {
	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}

	var res Result
	entityID, err := entity.EntityID(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.EntityID = entityID

	snapshot, err := export.Collect(ctx, entity, s.opts.Categories, bankconnect.Query{Reload: true})
	if err != nil {
		res.Err = err
		return res
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, snapshot); err != nil {
		res.Err = fmt.Errorf("write export: %w", err)
		return res
	}
	name := fmt.Sprintf("%s_%s.xlsx", entityID, snapshot.TakenAt.Format("20060102T150405"))
	res.File, err = s.archive.Save(ctx, entityID, name, storage.ContentTypeXLSX, &buf)
	if err != nil {
		res.Err = fmt.Errorf("archive export: %w", err)
		return res
	}

	res.Pruned, err = s.archive.Prune(ctx, entityID, s.opts.Keep)
	if err != nil {
		res.Err = fmt.Errorf("prune archive: %w", err)
		return res
	}

	s.logger.Debug("entity refreshed",
		slog.String("entity_id", entityID),
		slog.String("file", res.File.Name),
		slog.Int("pruned", res.Pruned),
	)
	return res
}

func (s *Scheduler) watched() []*bankconnect.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*bankconnect.Entity(nil), s.entities...)
}
