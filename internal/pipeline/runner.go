package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/look-pyrenees/internal/store"
)

// ErrBusy is returned when a run is already in progress.
var ErrBusy = errors.New("a run is already in progress")

// Runner serialises runs of a Service and keeps their reports.
type Runner struct {
	svc     *Service
	runs    *store.RunStore[Report]
	timeout time.Duration

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewRunner creates a Runner. A positive timeout bounds every run.
func NewRunner(svc *Service, runs *store.RunStore[Report], timeout time.Duration) *Runner {
	return &Runner{svc: svc, runs: runs, timeout: timeout}
}

// Service returns the underlying pipeline service.
func (r *Runner) Service() *Service {
	return r.svc
}

func (r *Runner) acquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return false
	}
	r.running = true
	return true
}

func (r *Runner) release() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

// Running reports whether a run is in progress.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Run executes a run synchronously, or returns ErrBusy.
func (r *Runner) Run(ctx context.Context, zones []string) (Report, error) {
	if !r.acquire() {
		return Report{}, ErrBusy
	}
	defer r.release()
	return r.run(ctx, zones), nil
}

// Start executes a run in the background, or returns ErrBusy. The run is
// detached from ctx cancellation; use Wait to join it.
func (r *Runner) Start(ctx context.Context, zones []string) error {
	if !r.acquire() {
		return ErrBusy
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release()
		r.run(context.WithoutCancel(ctx), zones)
	}()
	return nil
}

// Wait blocks until background runs have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, zones []string) Report {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	rep := r.svc.Run(ctx, zones)
	if r.runs != nil {
		r.runs.Save(rep.RunID, rep.Started, rep)
	}
	return rep
}

// Latest returns the report of the most recent finished run.
func (r *Runner) Latest() (Report, error) {
	if r.runs == nil {
		return Report{}, store.ErrNotFound
	}
	return r.runs.Latest()
}

// Get returns the report of the run with the given id.
func (r *Runner) Get(id string) (Report, error) {
	if r.runs == nil {
		return Report{}, store.ErrNotFound
	}
	return r.runs.Get(id)
}
