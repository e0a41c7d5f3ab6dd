package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPublisher struct {
	calls atomic.Int32
	n     int
	err   error
}

func (p *stubPublisher) PublishPending(context.Context) (int, error) {
	p.calls.Add(1)
	return p.n, p.err
}

func TestPublishJob_CallsPublisher(t *testing.T) {
	pub := &stubPublisher{n: 3}
	publishJob(context.Background(), pub, zerolog.Nop())()
	assert.Equal(t, int32(1), pub.calls.Load())
}

func TestPublishJob_ErrorIsAbsorbed(t *testing.T) {
	pub := &stubPublisher{n: 1, err: errors.New("2 documents still unpublished")}
	assert.NotPanics(t, publishJob(context.Background(), pub, zerolog.Nop()))
	assert.Equal(t, int32(1), pub.calls.Load())
}

func TestPublishJob_SkipsAfterShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pub := &stubPublisher{}
	publishJob(ctx, pub, zerolog.Nop())()
	assert.Zero(t, pub.calls.Load())
}

func TestSchedulePublish_InvalidSpec(t *testing.T) {
	_, err := SchedulePublish(context.Background(), "every now and then", &stubPublisher{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestSchedulePublish_Runs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := &stubPublisher{}
	c, err := SchedulePublish(ctx, "@every 1s", pub, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)

	assert.Eventually(t, func() bool { return pub.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestCronLogger_RecoveredPanicGoesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	cl := cronLogger{log: zerolog.New(&buf)}

	job := cron.NewChain(cron.Recover(cl)).Then(cron.FuncJob(func() { panic("index unreachable") }))
	require.NotPanics(t, job.Run)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "panic", line["message"])
	assert.Equal(t, "index unreachable", line["error"])
	assert.Contains(t, line, "stack")
}

func TestCronLogger_InfoIsDebug(t *testing.T) {
	var buf bytes.Buffer
	cl := cronLogger{log: zerolog.New(&buf).Level(zerolog.InfoLevel)}

	cl.Info("skip")
	assert.Empty(t, buf.String())

	cl = cronLogger{log: zerolog.New(&buf)}
	cl.Info("schedule", "entry", 1)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "debug", line["level"])
	assert.Equal(t, float64(1), line["entry"])
}
