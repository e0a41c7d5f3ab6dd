// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// jobTimeout bounds a single publish run.
const jobTimeout = 5 * time.Minute

// Publisher pushes issued artifacts that have not reached the authoritative index yet.
type Publisher interface {
	PublishPending(ctx context.Context) (int, error)
}

// SchedulePublish registers the publish job and starts the cron runner. The
// runner stops when ctx is done; overlapping runs are skipped.
func SchedulePublish(ctx context.Context, spec string, pub Publisher, log zerolog.Logger) (*cron.Cron, error) {
	cl := cronLogger{log: log}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		),
	)
	if _, err := c.AddFunc(spec, publishJob(ctx, pub, log)); err != nil {
		return nil, fmt.Errorf("scheduling publish job %q: %w", spec, err)
	}
	c.Start()

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()

	log.Info().Str("schedule", spec).Msg("publish job scheduled")
	return c, nil
}

func publishJob(ctx context.Context, pub Publisher, log zerolog.Logger) func() {
	return func() {
		if ctx.Err() != nil {
			return
		}
		runCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()

		n, err := pub.PublishPending(runCtx)
		if err != nil {
			log.Warn().Err(err).Int("published", n).Msg("publish run incomplete")
			return
		}
		if n > 0 {
			log.Info().Int("published", n).Msg("published pending documents")
		}
	}
}

// cronLogger routes cron's own messages (skips, recovered panics) to zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
