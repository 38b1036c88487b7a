package job

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown job IDs.
var ErrNotFound = errors.New("job not found")

// ErrInvalidTransition is returned when a transition is not allowed from
// the job's current state.
var ErrInvalidTransition = errors.New("invalid transition")

// Store is the authoritative, insertion-ordered job collection.
type Store struct {
	mu      sync.RWMutex
	order   []string
	jobs    map[string]*Job
	release func(Job)
	newID   func() string
}

// Option configures a Store.
type Option func(*Store)

// WithReleaseHook registers fn to run whenever a job's buffers are
// dropped: on removal, on clear, and for the previous output on retry.
// Callers use it to revoke display handles tied to the job. fn runs
// outside the store lock but may run while the caller holds its own.
func WithReleaseHook(fn func(Job)) Option {
	return func(s *Store) { s.release = fn }
}

// WithIDFunc overrides ID generation.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		jobs:  make(map[string]*Job),
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add creates a pending job. The store keeps src as is; callers must not
// modify it afterwards.
func (s *Store) Add(name, mediaType string, src []byte, settings Settings) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := &Job{
		ID:           s.newID(),
		Name:         name,
		MediaType:    mediaType,
		Source:       src,
		Settings:     settings,
		Status:       StatusPending,
		OriginalSize: int64(len(src)),
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)
	return *j
}

func (s *Store) transition(id string, from, to Status) (*Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if j.Status != from {
		return nil, fmt.Errorf("%w: %s -> %s (job %s is %s)", ErrInvalidTransition, from, to, id, j.Status)
	}
	j.Status = to
	return j, nil
}

// Dispatch moves a pending job to compressing. It must be called before
// the job is handed to a worker.
func (s *Store) Dispatch(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.transition(id, StatusPending, StatusCompressing)
	if err != nil {
		return Job{}, err
	}
	j.Attempts++
	return *j, nil
}

// Complete moves a compressing job to done and records its output.
func (s *Store) Complete(id string, output []byte, outFormat format.Format, elapsed time.Duration) (Job, error) {
	if len(output) == 0 {
		return s.Fail(id, "encoder returned empty output")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.transition(id, StatusCompressing, StatusDone)
	if err != nil {
		return Job{}, err
	}
	ratio := Ratio(j.OriginalSize, int64(len(output)))
	j.Output = output
	j.CompressedSize = int64(len(output))
	j.OutputFormat = outFormat
	j.Ratio = &ratio
	j.Elapsed = elapsed
	j.Error = ""
	return *j, nil
}

// Fail moves a compressing job to error.
func (s *Store) Fail(id, message string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.transition(id, StatusCompressing, StatusError)
	if err != nil {
		return Job{}, err
	}
	if message == "" {
		message = "compression failed"
	}
	j.Error = message
	j.Output = nil
	j.CompressedSize = 0
	j.Ratio = nil
	return *j, nil
}

// Retry moves a failed job back to compressing. The returned snapshot
// carries the original source bytes, never a previous output.
func (s *Store) Retry(id string) (Job, error) {
	s.mu.Lock()
	j, err := s.transition(id, StatusError, StatusCompressing)
	if err != nil {
		s.mu.Unlock()
		return Job{}, err
	}
	prev := *j
	j.Error = ""
	j.Output = nil
	j.CompressedSize = 0
	j.Ratio = nil
	j.Elapsed = 0
	j.Attempts++
	snap := *j
	s.mu.Unlock()

	s.fireRelease(prev)
	return snap, nil
}

// Remove deletes a job and releases its buffers.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.jobs, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	snap := *j
	j.Source, j.Output = nil, nil
	s.mu.Unlock()

	s.fireRelease(snap)
	return nil
}

// Clear releases every job and empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	released := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		j := s.jobs[id]
		released = append(released, *j)
		j.Source, j.Output = nil, nil
	}
	s.jobs = make(map[string]*Job)
	s.order = nil
	s.mu.Unlock()

	for _, j := range released {
		s.fireRelease(j)
	}
}

func (s *Store) fireRelease(j Job) {
	if s.release != nil {
		s.release(j)
	}
}

// Get returns a snapshot of one job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// List returns snapshots in insertion order.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.jobs[id])
	}
	return out
}

// Counts returns the number of jobs per status.
func (s *Store) Counts() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Status]int, 4)
	for _, j := range s.jobs {
		out[j.Status]++
	}
	return out
}

// Len returns the number of jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
