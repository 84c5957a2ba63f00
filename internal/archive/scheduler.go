package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/newsdesk/internal/kv"
)

// Destination receives a JSONL snapshot (S3, git, etc.).
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// Result summarizes one export run.
type Result struct {
	Bytes        int `json:"bytes"`
	Destinations int `json:"destinations"`
	Failed       int `json:"failed"`
}

// Scheduler exports the store to its destinations on an interval, and on
// demand through RunOnce.
type Scheduler struct {
	store        kv.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu     sync.Mutex // serializes runs
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler exporting store to destinations every
// interval.
func NewScheduler(store kv.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:        store,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		now:          time.Now,
	}
}

// Start runs an export immediately, then on each tick. A non-positive
// interval disables the periodic loop.
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.RunOnce(ctx) //nolint:errcheck // logged

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx) //nolint:errcheck // logged
		}
	}
}

// RunOnce exports once and writes to every destination. A failing
// destination is logged and counted but does not stop the others; only a
// failed export is returned as an error.
func (s *Scheduler) RunOnce(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf, s.now()); err != nil {
		s.logger.Error("archive export failed", "err", err)
		return nil, fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()

	res := &Result{Bytes: len(data), Destinations: len(s.destinations)}
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			res.Failed++
			s.logger.Error("archive destination write failed", "destination", i, "err", err)
		}
	}

	s.logger.Info("archive completed", "destinations", len(s.destinations), "failed", res.Failed, "bytes", len(data))
	return res, nil
}
