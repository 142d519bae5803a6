// Package reconcile is the polling engine shared by every reconciliation job.
//
// A Loop fetches pages of due items, processes each page on a bounded worker pool and
// re-fetches until nothing is due. Runs never overlap, and an item is never processed
// twice at the same time, whether it came from a page or from a direct ProcessOne call.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize    = 1000
	defaultConcurrency = 1
)

type ItemResult string

const (
	ItemSucceeded ItemResult = "succeeded"
	ItemFailed    ItemResult = "failed"
	ItemSkipped   ItemResult = "skipped"
)

// Observer receives run and item outcomes, typically to export metrics.
type Observer interface {
	RunFinished(job string, duration time.Duration, err error)
	ItemFinished(job string, result ItemResult)
}

type Config[T any] struct {
	Name        string
	PageSize    int
	Concurrency int
	Fetch       func(ctx context.Context, limit int) ([]T, error)
	Process     func(ctx context.Context, item T) error
	Key         func(item T) string
	// AfterRun runs once per completed run, after the last empty fetch.
	AfterRun func(ctx context.Context) error
	Logger   logrus.FieldLogger
	Observer Observer
}

type Loop[T any] struct {
	cfg      Config[T]
	guard    RunGuard
	inFlight *InFlight
	logger   logrus.FieldLogger
}

func New[T any](cfg Config[T]) *Loop[T] {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = factory.NewModuleLogger("reconcile")
	}

	return &Loop[T]{
		cfg:      cfg,
		inFlight: NewInFlight(),
		logger:   logger.WithField("job", cfg.Name),
	}
}

func (l *Loop[T]) Name() string {
	return l.cfg.Name
}

func (l *Loop[T]) Running() bool {
	return l.guard.Running()
}

// RunOnce drains the due set. It returns nil straight away when another run is in progress.
func (l *Loop[T]) RunOnce(ctx context.Context) error {
	if !l.guard.TryAcquire() {
		l.logger.Debug("run_skipped")
		return nil
	}
	defer l.guard.Release()

	start := time.Now()
	err := l.run(ctx)
	if l.cfg.Observer != nil {
		l.cfg.Observer.RunFinished(l.cfg.Name, time.Since(start), err)
	}
	return err
}

func (l *Loop[T]) run(ctx context.Context) error {
	seen := map[string]struct{}{}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		items, err := l.cfg.Fetch(ctx, l.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("fetch due %s: %w", l.cfg.Name, err)
		}
		if len(items) == 0 {
			break
		}

		// An item still due after being handled in this run waits for the next tick.
		fresh := make([]T, 0, len(items))
		for _, item := range items {
			key := l.cfg.Key(item)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			fresh = append(fresh, item)
		}
		if len(fresh) == 0 {
			break
		}

		start := time.Now()
		var g errgroup.Group
		g.SetLimit(l.cfg.Concurrency)
		for _, item := range fresh {
			g.Go(func() error {
				_, _ = l.ProcessOne(ctx, item)
				return nil
			})
		}
		_ = g.Wait()

		elapsed := time.Since(start)
		l.logger.WithFields(logrus.Fields{
			"count":   len(fresh),
			"latency": elapsed.String(),
			"rate":    fmt.Sprintf("%.2f/sec", float64(len(fresh))/elapsed.Seconds()),
		}).Info("batch_processed")
	}

	if l.cfg.AfterRun != nil {
		if err := l.cfg.AfterRun(ctx); err != nil {
			l.logger.WithError(err).Warn("after_run_failed")
		}
	}
	return nil
}

// ProcessOne handles a single item unless it is already in flight, in which case it reports
// false without calling Process. Failures are logged here and also returned to the caller.
func (l *Loop[T]) ProcessOne(ctx context.Context, item T) (bool, error) {
	key := l.cfg.Key(item)
	if !l.inFlight.TryAcquire(key) {
		l.logger.WithField("id", key).Debug("item_in_flight")
		l.observe(ItemSkipped)
		return false, nil
	}
	defer l.inFlight.Release(key)

	start := time.Now()
	err := l.safeProcess(ctx, item)
	entry := l.logger.WithField("id", key).WithField("latency", time.Since(start).String())
	if err != nil {
		entry.WithError(err).Error("item_failed")
		l.observe(ItemFailed)
		return true, err
	}
	entry.Debug("item_processed")
	l.observe(ItemSucceeded)
	return true, nil
}

func (l *Loop[T]) safeProcess(ctx context.Context, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s item: %v", l.cfg.Name, r)
		}
	}()
	return l.cfg.Process(ctx, item)
}

func (l *Loop[T]) observe(result ItemResult) {
	if l.cfg.Observer != nil {
		l.cfg.Observer.ItemFinished(l.cfg.Name, result)
	}
}
