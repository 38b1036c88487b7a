// Package worker runs compression requests on a fixed set of goroutines.
//
// Requests wait in a FIFO queue; each worker handles one request at a
// time. Responses are delivered on a single channel and carry the job ID,
// in completion order. A panic inside one request is turned into a
// failure response for that ID only.
package worker

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/job"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("worker pool closed")

// Request is one unit of work.
type Request struct {
	ID        string
	Name      string
	Source    []byte
	MediaType string
	Settings  job.Settings
}

// Response is the result for Request.ID.
type Response struct {
	ID           string
	Success      bool
	Output       []byte
	OutputFormat string
	Elapsed      time.Duration
	Error        string
}

// Func executes one request. It runs on a worker goroutine.
type Func func(Request) Response

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers    int
	Queued     int
	Active     int
	PeakActive int
	Completed  int
}

// Pool is a fixed-size worker pool with an unbounded FIFO queue.
type Pool struct {
	exec   Func
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Request
	closed  bool
	active  int
	peak    int
	done    int
	workers int

	results chan Response
	wg      sync.WaitGroup
}

// New starts size workers. size <= 0 means runtime.NumCPU().
func New(size int, exec Func, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Pool{
		exec:    exec,
		logger:  logger,
		workers: size,
		results: make(chan Response, size),
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.loop(i)
	}
	return p
}

// Submit enqueues req. It never blocks on busy workers.
func (p *Pool) Submit(req Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.queue = append(p.queue, req)
	p.cond.Signal()
	return nil
}

// Results delivers one response per submitted request. It is closed
// after Close once every queued request has finished.
func (p *Pool) Results() <-chan Response {
	return p.results
}

// Close stops accepting requests, lets the queue drain and waits for
// the workers before closing Results. The Results channel must keep
// being drained while Close runs.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	p.wg.Wait()
	close(p.results)
}

// Stats returns current counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers:    p.workers,
		Queued:     len(p.queue),
		Active:     p.active,
		PeakActive: p.peak,
		Completed:  p.done,
	}
}

// next blocks until a request is available or the pool is closed and
// drained.
func (p *Pool) next() (Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return Request{}, false
	}
	req := p.queue[0]
	p.queue[0] = Request{}
	p.queue = p.queue[1:]
	p.active++
	if p.active > p.peak {
		p.peak = p.active
	}
	return req, true
}

func (p *Pool) loop(worker int) {
	defer p.wg.Done()
	for {
		req, ok := p.next()
		if !ok {
			return
		}

		p.logger.Debug("job started", "worker", worker, "job_id", req.ID, "name", req.Name)
		resp := p.run(req)

		p.mu.Lock()
		p.active--
		p.done++
		p.mu.Unlock()

		p.results <- resp
	}
}

// run isolates one request: a panic fails only that job.
func (p *Pool) run(req Request) (resp Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("job panicked", "job_id", req.ID, "panic", r, "stack", string(debug.Stack()))
			resp = Response{
				ID:      req.ID,
				Success: false,
				Elapsed: time.Since(start),
				Error:   fmt.Sprintf("internal error: %v", r),
			}
		}
	}()

	resp = p.exec(req)
	resp.ID = req.ID
	if resp.Elapsed == 0 {
		resp.Elapsed = time.Since(start)
	}
	return resp
}
