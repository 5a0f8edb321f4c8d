package main

import (
	"context"
	"log"
	"time"

	"github.com/opst/drydock/pkg/domain"
	lockdb "github.com/opst/drydock/pkg/domain/eventlock/db"
	jobdb "github.com/opst/drydock/pkg/domain/job/db"
	"github.com/opst/drydock/pkg/jobs"
	"github.com/opst/drydock/pkg/loop"
	"github.com/opst/drydock/pkg/loop/recurring"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

func WithTimestamp() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetFlags(l.Flags() | log.Ldate | log.Ltime | log.Lmicroseconds)
		return l
	}
}

// monitor logs each run of task.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		logger.Printf("task start: #0x%X", counter)
		defer func() {
			logger.Printf(
				"task end: #0x%X (takes %s): %s", counter, time.Since(timestamp), next,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// LoopManifest determines how the loop should behave.
type LoopManifest struct {
	Type domain.LoopType

	// Policy for the looping
	Policy recurring.Policy

	// finished jobs older than this are purged by HousekeepingLoop.
	Retention time.Duration

	// each run of the task is cancelled after this. zero means no limit.
	Timeout time.Duration
}

func (m LoopManifest) options() []loop.Option {
	if m.Timeout <= 0 {
		return nil
	}
	return []loop.Option{loop.WithTimeout(m.Timeout)}
}

// JobTask pops a job of the router's kinds and handles it.
//
// The value is the number of jobs handled so far.
// A run returns error only when the queue itself fails: failures of handlers
// are recorded in jobs.
func JobTask(
	logger *log.Logger,
	queue jobdb.Interface,
	router jobs.Router,
	metrics *JobMetrics,
) recurring.Task[uint64] {
	kinds := router.Kinds()
	handler := func(ctx context.Context, job domain.Job) domain.JobOutcome {
		started := time.Now()
		outcome := router.Run(ctx, job)
		metrics.Observe(job.Kind, outcome, time.Since(started))
		if outcome.Err() != nil {
			logger.Printf("job #%d (%s, attempt %d): %s", job.JobId, job.Kind, job.Attempts+1, outcome)
		}
		return outcome
	}

	return func(ctx context.Context, handled uint64) (uint64, bool, error) {
		_, ok, err := queue.Pop(ctx, kinds, handler)
		if err != nil {
			return handled, false, err
		}
		if !ok {
			return handled, false, nil
		}
		return handled + 1, true, nil
	}
}

// HousekeepingTask purges finished jobs older than retention, and sweeps expired event locks.
//
// It is said to have worked when something is removed.
func HousekeepingTask(
	logger *log.Logger,
	queue jobdb.Interface,
	locks lockdb.Interface,
	retention time.Duration,
) recurring.Task[struct{}] {
	return func(ctx context.Context, v struct{}) (struct{}, bool, error) {
		purged, err := queue.Purge(ctx, time.Now().Add(-retention))
		if err != nil {
			return v, false, err
		}
		swept, err := locks.Sweep(ctx)
		if err != nil {
			return v, false, err
		}
		if purged != 0 || swept != 0 {
			logger.Printf("purged %d jobs, swept %d event locks", purged, swept)
		}
		return v, purged+swept != 0, nil
	}
}

// StartLoop runs the loop of the manifest until its policy breaks it.
func StartLoop(
	ctx context.Context,
	logger *log.Logger,
	queue jobdb.Interface,
	locks lockdb.Interface,
	routes map[domain.LoopType]jobs.Router,
	metrics *JobMetrics,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("["+manifest.Type.String()+" loop] "), WithTimestamp())

	if manifest.Type == domain.HousekeepingLoop {
		_, err := loop.Start(
			ctx, struct{}{},
			monitor(l, HousekeepingTask(l, queue, locks, manifest.Retention).Applied(manifest.Policy)),
			manifest.options()...,
		)
		return err
	}

	router, ok := routes[manifest.Type]
	if !ok {
		return domain.ErrUnknownLoopType
	}
	_, err := loop.Start(
		ctx, uint64(0),
		monitor(l, JobTask(l, queue, router, metrics).Applied(manifest.Policy)),
		manifest.options()...,
	)
	return err
}
