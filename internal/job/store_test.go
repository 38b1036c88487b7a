package job

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/quality"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("job-%d", n)
	}
}

var testSettings = Settings{Format: format.WebP, Preset: quality.Balanced}

// checkOutputInvariant verifies Output != nil exactly when status is done.
func checkOutputInvariant(t *testing.T, s *Store) {
	t.Helper()
	for _, j := range s.List() {
		if (j.Output != nil) != (j.Status == StatusDone) {
			t.Fatalf("%s: output present=%v with status %s", j.ID, j.Output != nil, j.Status)
		}
	}
}

func TestRatio(t *testing.T) {
	cases := []struct {
		orig, comp int64
		want       int
	}{
		{1000, 400, 60},
		{400, 1000, -150},
		{1000, 1000, 0},
		{3, 2, 33},
		{0, 10, 0},
	}
	for _, c := range cases {
		if got := Ratio(c.orig, c.comp); got != c.want {
			t.Errorf("Ratio(%d, %d) = %d, want %d", c.orig, c.comp, got, c.want)
		}
	}
}

func TestHappyPath(t *testing.T) {
	s := NewStore(WithIDFunc(seqIDs()))
	src := bytes.Repeat([]byte{1}, 1000)
	j := s.Add("a.png", "image/png", src, testSettings)

	if j.Status != StatusPending || j.OriginalSize != 1000 {
		t.Fatalf("new job: %+v", j)
	}
	checkOutputInvariant(t, s)

	if _, err := s.Dispatch(j.ID); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	checkOutputInvariant(t, s)

	done, err := s.Complete(j.ID, make([]byte, 400), format.WebP, 5*time.Millisecond)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != StatusDone || done.CompressedSize != 400 {
		t.Errorf("done job: status=%s size=%d", done.Status, done.CompressedSize)
	}
	if done.Ratio == nil || *done.Ratio != 60 {
		t.Errorf("ratio = %v, want 60", done.Ratio)
	}
	if done.OriginalSize != 1000 {
		t.Errorf("original size changed: %d", done.OriginalSize)
	}
	checkOutputInvariant(t, s)
}

func TestRetryUsesSource(t *testing.T) {
	s := NewStore(WithIDFunc(seqIDs()))
	src := []byte("original-source")
	j := s.Add("a.jpg", "image/jpeg", src, testSettings)

	s.Dispatch(j.ID)
	failed, err := s.Fail(j.ID, "decode jpeg: bad marker")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Error == "" || failed.Output != nil {
		t.Fatalf("failed job: %+v", failed)
	}
	checkOutputInvariant(t, s)

	retried, err := s.Retry(j.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Status != StatusCompressing {
		t.Errorf("status after retry = %s", retried.Status)
	}
	if !bytes.Equal(retried.Source, src) {
		t.Errorf("retry source = %q", retried.Source)
	}
	if retried.Error != "" || retried.Attempts != 2 {
		t.Errorf("retry state: error=%q attempts=%d", retried.Error, retried.Attempts)
	}

	if _, err := s.Complete(j.ID, []byte("ok"), format.JPEG, 0); err != nil {
		t.Fatalf("complete after retry: %v", err)
	}
	checkOutputInvariant(t, s)
}

func TestInvalidTransitions(t *testing.T) {
	s := NewStore(WithIDFunc(seqIDs()))
	j := s.Add("a.png", "image/png", []byte("x"), testSettings)

	if _, err := s.Complete(j.ID, []byte("y"), format.PNG, 0); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("complete pending: err = %v", err)
	}
	if _, err := s.Retry(j.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("retry pending: err = %v", err)
	}

	s.Dispatch(j.ID)
	if _, err := s.Dispatch(j.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double dispatch: err = %v", err)
	}

	s.Complete(j.ID, []byte("y"), format.PNG, 0)
	if _, err := s.Retry(j.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("retry done: err = %v", err)
	}
	if _, err := s.Fail(j.ID, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("fail done: err = %v", err)
	}
	if _, err := s.Dispatch("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v", err)
	}
}

func TestCompleteEmptyOutputFails(t *testing.T) {
	s := NewStore(WithIDFunc(seqIDs()))
	j := s.Add("a.png", "image/png", []byte("x"), testSettings)
	s.Dispatch(j.ID)

	got, err := s.Complete(j.ID, nil, format.PNG, 0)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.Status != StatusError {
		t.Errorf("status = %s, want error", got.Status)
	}
	checkOutputInvariant(t, s)
}

func TestOrderAndRemove(t *testing.T) {
	var released []string
	s := NewStore(WithIDFunc(seqIDs()), WithReleaseHook(func(j Job) {
		released = append(released, j.ID)
	}))
	for _, name := range []string{"a", "b", "c"} {
		s.Add(name, "image/png", []byte(name), testSettings)
	}

	if err := s.Remove("job-2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	var names []string
	for _, j := range s.List() {
		names = append(names, j.Name)
	}
	if fmt.Sprint(names) != "[a c]" {
		t.Errorf("order after remove = %v", names)
	}
	if err := s.Remove("job-2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second remove: err = %v", err)
	}

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("len after clear = %d", s.Len())
	}
	if fmt.Sprint(released) != "[job-2 job-1 job-3]" {
		t.Errorf("released = %v", released)
	}
}

func TestCounts(t *testing.T) {
	s := NewStore(WithIDFunc(seqIDs()))
	a := s.Add("a", "image/png", []byte("a"), testSettings)
	s.Add("b", "image/png", []byte("b"), testSettings)
	s.Dispatch(a.ID)

	c := s.Counts()
	if c[StatusPending] != 1 || c[StatusCompressing] != 1 {
		t.Errorf("counts = %v", c)
	}
}
