// AngelaMos | 2026
// jobs.go

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 2 * time.Minute

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

// newScheduler registers jobs on a cron that recovers panics and never
// overlaps two runs of the same job. Each run gets its own deadline.
func newScheduler(ctx context.Context, logger *slog.Logger, jobs ...job) (*cron.Cron, error) {
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	for _, j := range jobs {
		_, err := c.AddFunc(j.spec, func() {
			runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
			defer cancel()

			start := time.Now()
			if err := j.run(runCtx); err != nil {
				logger.Error("job failed", "job", j.name, "error", err)
				return
			}
			logger.Debug("job finished", "job", j.name, "duration", time.Since(start))
		})
		if err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.name, err)
		}
	}
	return c, nil
}

func every(d time.Duration) string {
	return "@every " + d.String()
}
