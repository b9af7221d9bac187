// Package sync backs up decision records by exporting them as JSONL to S3
// and git on a fixed interval.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alfredjeanlab/hazel/internal/store"
)

// Destination is a backup target.
type Destination interface {
	Name() string
	// Write stores the full JSONL payload, replacing the previous one.
	Write(ctx context.Context, data []byte) error
}

// Scheduler exports the configured channels every interval and hands the
// payload to each destination.
type Scheduler struct {
	store        store.Store
	channels     []string
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger
	now          func() time.Time

	stop context.CancelFunc
	done chan struct{}
}

func NewScheduler(s store.Store, channels []string, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		channels:     channels,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		now:          time.Now,
	}
}

// Start exports once right away, then on every tick until Stop.
func (s *Scheduler) Start() {
	ctx, stop := context.WithCancel(context.Background())
	s.stop, s.done = stop, make(chan struct{})
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			_ = s.SyncOnce(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop waits for an in-flight export. Calling it without Start is a no-op.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	s.stop()
	<-s.done
}

// SyncOnce exports once and writes all destinations in parallel. A failing
// destination does not keep the others from being written; the returned
// error joins every failure.
func (s *Scheduler) SyncOnce(ctx context.Context) error {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, s.channels, s.now(), &buf); err != nil {
		s.logger.Error("sync export failed", "err", err)
		return fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()

	errs := make([]error, len(s.destinations))
	var g errgroup.Group
	for i, dest := range s.destinations {
		g.Go(func() error {
			start := time.Now()
			if err := dest.Write(ctx, data); err != nil {
				s.logger.Error("sync destination failed", "destination", dest.Name(), "err", err)
				errs[i] = fmt.Errorf("%s: %w", dest.Name(), err)
				return nil
			}
			s.logger.Debug("sync destination written", "destination", dest.Name(), "duration", time.Since(start))
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	failed := 0
	for _, e := range errs {
		if e != nil {
			failed++
		}
	}
	s.logger.Info("sync completed", "destinations", len(s.destinations), "failed", failed, "bytes", len(data))
	return err
}
