package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/pdfnotes/internal/compose"
	"github.com/local/pdfnotes/internal/layout"
	"github.com/local/pdfnotes/internal/metrics"
	"github.com/local/pdfnotes/internal/store"
)

// Runner executes a single job.
type Runner interface {
	RunJob(ctx context.Context, job Job) (*compose.Result, error)
}

// ComposeRunner runs jobs with a compose.Service built per job from Base,
// so each job gets its own pairing and order.
type ComposeRunner struct {
	Base      compose.Options
	Opener    compose.DocumentOpener
	Publisher *compose.Publisher
}

func (r *ComposeRunner) RunJob(ctx context.Context, job Job) (*compose.Result, error) {
	opts := r.Base
	if job.Mode == compose.ModeTwoUp {
		if job.Pairing != "" {
			p, err := layout.ParsePairing(job.Pairing)
			if err != nil {
				return nil, err
			}
			opts.Pairing = p
		}
		if job.Order != "" {
			o, err := layout.ParseOrder(job.Order)
			if err != nil {
				return nil, err
			}
			opts.Order = o
		}
	}
	svc := compose.New(opts, r.Opener)
	if r.Publisher != nil {
		svc.WithPublisher(r.Publisher)
	}
	switch job.Mode {
	case compose.ModeInterleave:
		return svc.Interleave(ctx, job.Main, job.Insert, job.Output)
	case compose.ModeTwoUp:
		return svc.TwoUp(ctx, job.Main, job.Insert, job.Output)
	case compose.ModeMergeThenTwoUp:
		return svc.MergeThenTwoUp(ctx, job.Main, job.Insert, job.Output)
	default:
		return nil, fmt.Errorf("unknown mode %q", job.Mode)
	}
}

// JobResult is the outcome of one job. Exactly one of Result and Err is set.
type JobResult struct {
	Name   string
	Result *compose.Result
	Err    error
}

// Run validates m, then runs its jobs with at most concurrency in flight.
// A failed job does not stop the others; the returned error joins every
// job error. Results are in manifest order.
func Run(ctx context.Context, m *Manifest, runner Runner, status store.StatusStore, concurrency int) ([]JobResult, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if status == nil {
		status = store.NewMemoryStatus()
	}
	metrics.Init()

	for _, j := range m.Jobs {
		setStatus(ctx, status, j.Name, store.Status{Status: store.StateQueued, Metadata: map[string]interface{}{"mode": j.Mode}})
	}

	results := make([]JobResult, len(m.Jobs))
	var mu sync.Mutex
	var errs []error

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i, j := range m.Jobs {
		g.Go(func() error {
			res, err := runOne(ctx, runner, status, j)
			results[i] = JobResult{Name: j.Name, Result: res, Err: err}
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("job %s: %w", j.Name, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Info().Int("jobs", len(results)).Int("failed", failed).Msg("batch finished")
	return results, errors.Join(errs...)
}

func runOne(ctx context.Context, runner Runner, status store.StatusStore, j Job) (*compose.Result, error) {
	start := time.Now()
	meta := map[string]interface{}{"mode": j.Mode}
	if err := ctx.Err(); err != nil {
		end := time.Now()
		setStatus(ctx, status, j.Name, store.Status{Status: store.StateFailed, Message: err.Error(), End: &end, Metadata: meta})
		metrics.IncBatchJob("failed")
		return nil, err
	}
	setStatus(ctx, status, j.Name, store.Status{Status: store.StateRunning, Start: &start, Metadata: meta})

	res, err := runner.RunJob(ctx, j)
	end := time.Now()
	if err != nil {
		setStatus(ctx, status, j.Name, store.Status{Status: store.StateFailed, Message: err.Error(), Start: &start, End: &end, Metadata: meta})
		metrics.IncBatchJob("failed")
		log.Error().Err(err).Str("job", j.Name).Msg("batch job failed")
		return nil, err
	}
	meta["run_id"] = res.RunID
	setStatus(ctx, status, j.Name, store.Status{
		Status:   store.StateDone,
		Output:   res.Output,
		Pages:    res.Pages,
		Start:    &start,
		End:      &end,
		Metadata: meta,
	})
	metrics.IncBatchJob("done")
	return res, nil
}

// setStatus never fails a job; store errors are logged.
func setStatus(ctx context.Context, s store.StatusStore, name string, st store.Status) {
	if err := s.Set(context.WithoutCancel(ctx), name, st); err != nil {
		log.Warn().Err(err).Str("job", name).Str("status", st.Status).Msg("status update failed")
	}
}
