package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"
)

// InvoiceSweeper flags unpaid invoices older than age as overdue.
type InvoiceSweeper interface {
	MarkOverdueInvoices(ctx context.Context, age time.Duration) (int64, error)
}

// OverdueJob is a cron.Job. Runs never overlap; a tick that arrives while
// the previous sweep is still going is skipped.
type OverdueJob struct {
	sweeper InvoiceSweeper
	after   time.Duration
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

func NewOverdueJob(sweeper InvoiceSweeper, after, timeout time.Duration) *OverdueJob {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &OverdueJob{sweeper: sweeper, after: after, timeout: timeout}
}

func (j *OverdueJob) Run() {
	if _, err := j.RunOnce(context.Background()); err != nil {
		log.Error().Err(err).Msg("overdue invoice sweep failed")
	}
}

// RunOnce performs a single sweep and returns the number of invoices flagged.
func (j *OverdueJob) RunOnce(ctx context.Context) (int64, error) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		log.Warn().Msg("overdue invoice sweep still running, skipping tick")
		return 0, nil
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.sweeper.MarkOverdueInvoices(ctx, j.after)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	log.Info().Int64("flagged", n).Dur("took", time.Since(start)).Msg("overdue invoice sweep finished")
	return n, nil
}

// NewScheduler registers job under schedule. The caller starts and stops
// the returned scheduler.
func NewScheduler(schedule string, job cron.Job) (*cron.Cron, error) {
	c := cron.New()
	if err := c.AddJob(schedule, job); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return c, nil
}
