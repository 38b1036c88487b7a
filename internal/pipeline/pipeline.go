// Package pipeline coordinates compression jobs: it filters intake,
// dispatches jobs onto the worker pool and applies results to the job
// store.
//
// All job state changes happen on the caller's goroutine (dispatch) or
// on the engine's single collector goroutine (completion). Workers never
// touch the store. A job is dispatched only when a worker is free, so no
// more jobs are compressing than there are workers.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/export"
	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/job"
	"github.com/AnyUserName/imgpress-cli/internal/quality"
	"github.com/AnyUserName/imgpress-cli/internal/worker"
)

// ErrClosed is returned by operations on a closed engine.
var ErrClosed = errors.New("engine closed")

// File is one submitted input.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Config holds engine parameters.
type Config struct {
	Workers  int
	Registry *codec.Registry
	Logger   *slog.Logger

	// OnUpdate, if set, receives a snapshot after every state change. It
	// runs outside engine locks.
	OnUpdate func(job.Job)

	// StoreOptions are passed to job.NewStore. A release hook may run
	// under the engine lock and must not call back into the Engine.
	StoreOptions []job.Option
}

// Engine orchestrates compression jobs.
type Engine struct {
	store    *job.Store
	pool     *worker.Pool
	registry *codec.Registry
	logger   *slog.Logger
	onUpdate func(job.Job)
	workers  int

	mu       sync.Mutex
	idle     *sync.Cond
	ready    []string
	retrying map[string]bool
	inflight int
	rejected []error
	closed   bool

	collected chan struct{}
}

// New creates an engine and starts its workers.
func New(cfg Config) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Registry == nil {
		cfg.Registry = codec.NewDefaultRegistry(codec.Options{Logger: cfg.Logger})
	}

	e := &Engine{
		store:     job.NewStore(cfg.StoreOptions...),
		registry:  cfg.Registry,
		logger:    cfg.Logger,
		onUpdate:  cfg.OnUpdate,
		workers:   cfg.Workers,
		retrying:  make(map[string]bool),
		collected: make(chan struct{}),
	}
	e.idle = sync.NewCond(&e.mu)
	e.pool = worker.New(cfg.Workers, NewExecutor(cfg.Registry), cfg.Logger)

	go e.collect()
	return e
}

// SubmitFiles creates one pending job per accepted file and starts as
// many as there are free workers. Files with unsupported media types are
// filtered out and never become jobs. Settings with no encoder path fail
// before any job is created.
func (e *Engine) SubmitFiles(files []File, s job.Settings) ([]string, error) {
	if !s.Preset.Valid() {
		return nil, fmt.Errorf("submit: %w", &format.ConfigurationError{
			Format: string(s.Format),
			Reason: fmt.Sprintf("invalid quality preset %d", int(s.Preset)),
		})
	}

	var accepted []File
	var rejected []error
	checked := make(map[format.Format]bool)
	for _, f := range files {
		if !format.Accepted(f.MediaType) {
			err := &format.UnsupportedFormatError{Name: f.Name, MediaType: f.MediaType}
			e.logger.Warn("skipping file", "name", f.Name, "error", err)
			rejected = append(rejected, err)
			continue
		}
		src, _ := format.Resolve(f.MediaType)
		target := OutputFormat(src, s.Format)
		if !checked[target] {
			if err := e.checkEncodable(target); err != nil {
				return nil, fmt.Errorf("submit: %w", err)
			}
			checked[target] = true
		}
		accepted = append(accepted, f)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	e.rejected = append(e.rejected, rejected...)
	ids := make([]string, 0, len(accepted))
	var created []job.Job
	for _, f := range accepted {
		j := e.store.Add(f.Name, f.MediaType, f.Data, s)
		ids = append(ids, j.ID)
		created = append(created, j)
		e.ready = append(e.ready, j.ID)
	}
	started := e.pumpLocked()
	e.mu.Unlock()

	e.logger.Info("files submitted",
		"accepted", len(accepted),
		"rejected", len(rejected),
		"format", string(s.Format),
		"preset", int(s.Preset),
		"lossless", s.Lossless,
	)
	e.notify(created...)
	e.notify(started...)
	return ids, nil
}

func (e *Engine) checkEncodable(target format.Format) error {
	enc := format.EncodeTarget(target)
	if !format.Encodable(enc) {
		return &format.ConfigurationError{Format: string(target), Reason: "no encoder path"}
	}
	if !e.registry.CanEncode(enc) {
		return &format.ConfigurationError{Format: string(target), Reason: "encoder not available"}
	}
	return nil
}

// Retry queues a failed job to run again from its original source.
func (e *Engine) Retry(id string) error {
	j, ok := e.store.Get(id)
	if !ok {
		return fmt.Errorf("retry: %w: %s", job.ErrNotFound, id)
	}
	if j.Status != job.StatusError {
		return fmt.Errorf("retry: %w: job %s is %s", job.ErrInvalidTransition, id, j.Status)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.retrying[id] {
		e.mu.Unlock()
		return fmt.Errorf("retry: %w: job %s already queued", job.ErrInvalidTransition, id)
	}
	e.retrying[id] = true
	e.ready = append(e.ready, id)
	started := e.pumpLocked()
	e.mu.Unlock()

	e.notify(started...)
	return nil
}

// Remove deletes a job. A running job finishes but its result is
// discarded.
func (e *Engine) Remove(id string) error {
	if err := e.store.Remove(id); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	e.logger.Debug("job removed", "job_id", id)
	return nil
}

// ClearAll releases every job and empties the collection.
func (e *Engine) ClearAll() {
	e.mu.Lock()
	e.ready = nil
	e.retrying = make(map[string]bool)
	e.rejected = nil
	if e.inflight == 0 {
		e.idle.Broadcast()
	}
	e.mu.Unlock()

	e.store.Clear()
	e.logger.Debug("jobs cleared")
}

// ExportAll writes every done job into a zip archive.
func (e *Engine) ExportAll(w io.Writer) (*export.Manifest, error) {
	return export.Archive(w, e.store.List())
}

// Jobs returns all jobs in submission order.
func (e *Engine) Jobs() []job.Job { return e.store.List() }

// Job returns one job.
func (e *Engine) Job(id string) (job.Job, bool) { return e.store.Get(id) }

// Counts returns the number of jobs per status.
func (e *Engine) Counts() map[job.Status]int { return e.store.Counts() }

// Rejected returns the intake errors for files that never became jobs.
func (e *Engine) Rejected() []error {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]error, len(e.rejected))
	copy(out, e.rejected)
	return out
}

// PoolStats exposes worker pool counters.
func (e *Engine) PoolStats() worker.Stats { return e.pool.Stats() }

// Wait blocks until no job is queued or running.
func (e *Engine) Wait() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.inflight > 0 || len(e.ready) > 0 {
		e.idle.Wait()
	}
}

// Close waits for running jobs and stops the workers.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.pool.Close()
	<-e.collected
}

// pumpLocked dispatches ready jobs while workers are free. The
// pending→compressing (or error→compressing) transition always happens
// before the request reaches the pool. e.mu must be held.
func (e *Engine) pumpLocked() []job.Job {
	var started []job.Job
	for e.inflight < e.workers && len(e.ready) > 0 {
		id := e.ready[0]
		e.ready = e.ready[1:]

		var j job.Job
		var err error
		if e.retrying[id] {
			delete(e.retrying, id)
			j, err = e.store.Retry(id)
		} else {
			j, err = e.store.Dispatch(id)
		}
		if err != nil {
			e.logger.Debug("skipping dispatch", "job_id", id, "error", err)
			continue
		}

		req := worker.Request{
			ID:        j.ID,
			Name:      j.Name,
			Source:    j.Source,
			MediaType: j.MediaType,
			Settings:  j.Settings,
		}
		if err := e.pool.Submit(req); err != nil {
			// Only possible after Close; record it on the job.
			failed, _ := e.store.Fail(id, err.Error())
			started = append(started, failed)
			continue
		}
		e.inflight++
		started = append(started, j)
	}
	if e.inflight == 0 && len(e.ready) == 0 {
		e.idle.Broadcast()
	}
	return started
}

// collect is the only goroutine that applies results to the store.
func (e *Engine) collect() {
	defer close(e.collected)
	for resp := range e.pool.Results() {
		j, err := e.apply(resp)

		e.mu.Lock()
		e.inflight--
		started := e.pumpLocked()
		e.mu.Unlock()

		if err == nil {
			e.notify(j)
		}
		e.notify(started...)
	}
}

func (e *Engine) apply(resp worker.Response) (job.Job, error) {
	var j job.Job
	var err error
	if resp.Success {
		j, err = e.store.Complete(resp.ID, resp.Output, format.Format(resp.OutputFormat), resp.Elapsed)
	} else {
		j, err = e.store.Fail(resp.ID, resp.Error)
	}
	if err != nil {
		// Removed or cleared while running.
		e.logger.Debug("dropping result", "job_id", resp.ID, "error", err)
		return job.Job{}, err
	}

	switch j.Status {
	case job.StatusDone:
		e.logger.Info("job done",
			"job_id", j.ID,
			"name", j.Name,
			"format", string(j.OutputFormat),
			"original_bytes", j.OriginalSize,
			"compressed_bytes", j.CompressedSize,
			"ratio", *j.Ratio,
			"elapsed_ms", j.Elapsed.Milliseconds(),
		)
	case job.StatusError:
		e.logger.Warn("job failed", "job_id", j.ID, "name", j.Name, "error", j.Error)
	}
	return j, nil
}

func (e *Engine) notify(jobs ...job.Job) {
	if e.onUpdate == nil {
		return
	}
	for _, j := range jobs {
		e.onUpdate(j)
	}
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() job.Settings {
	return job.Settings{Format: format.KeepOriginal, Preset: quality.DefaultPreset}
}
