package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweeperFunc func(ctx context.Context, age time.Duration) (int64, error)

func (f sweeperFunc) MarkOverdueInvoices(ctx context.Context, age time.Duration) (int64, error) {
	return f(ctx, age)
}

func TestOverdueJob_RunOnce(t *testing.T) {
	var gotAge time.Duration
	job := NewOverdueJob(sweeperFunc(func(ctx context.Context, age time.Duration) (int64, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		gotAge = age
		return 3, nil
	}), 72*time.Hour, time.Second)

	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, 72*time.Hour, gotAge)
}

func TestOverdueJob_Error(t *testing.T) {
	boom := errors.New("boom")
	job := NewOverdueJob(sweeperFunc(func(context.Context, time.Duration) (int64, error) {
		return 0, boom
	}), time.Hour, time.Second)

	_, err := job.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	job.Run()
}

func TestOverdueJob_SkipsOverlappingRuns(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex
	job := NewOverdueJob(sweeperFunc(func(context.Context, time.Duration) (int64, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return 1, nil
	}), time.Hour, time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = job.RunOnce(context.Background())
	}()
	<-started

	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	close(release)
	<-done
	assert.Equal(t, 1, calls)
}

func TestNewScheduler(t *testing.T) {
	job := NewOverdueJob(sweeperFunc(func(context.Context, time.Duration) (int64, error) { return 0, nil }), time.Hour, 0)

	c, err := NewScheduler("@midnight", job)
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = NewScheduler("every tuesday", job)
	assert.Error(t, err)
}
