package worker

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func collect(p *Pool, n int) map[string]Response {
	got := make(map[string]Response, n)
	for i := 0; i < n; i++ {
		r := <-p.Results()
		got[r.ID] = r
	}
	return got
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const size, n = 3, 20
	var running, peak atomic.Int32

	p := New(size, func(req Request) Response {
		cur := running.Add(1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return Response{Success: true, Output: []byte(req.ID)}
	}, nil)

	for i := 0; i < n; i++ {
		if err := p.Submit(Request{ID: fmt.Sprintf("j%d", i)}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	got := collect(p, n)
	if len(got) != n {
		t.Fatalf("got %d responses, want %d", len(got), n)
	}
	for id, r := range got {
		if string(r.Output) != id {
			t.Errorf("response for %s carries %q", id, r.Output)
		}
	}
	if peak.Load() > size {
		t.Errorf("peak concurrency %d exceeds pool size %d", peak.Load(), size)
	}
	if s := p.Stats(); s.PeakActive > size || s.Completed != n {
		t.Errorf("stats = %+v", s)
	}
	p.Close()
}

func TestPoolFIFO(t *testing.T) {
	var order []string
	p := New(1, func(req Request) Response {
		order = append(order, req.ID)
		return Response{Success: true}
	}, nil)

	for _, id := range []string{"a", "b", "c", "d"} {
		p.Submit(Request{ID: id})
	}
	collect(p, 4)
	p.Close()

	if fmt.Sprint(order) != "[a b c d]" {
		t.Errorf("execution order = %v", order)
	}
}

func TestPoolIsolatesPanics(t *testing.T) {
	p := New(2, func(req Request) Response {
		if req.ID == "bad" {
			panic("codec exploded")
		}
		return Response{Success: true}
	}, nil)

	for _, id := range []string{"ok1", "bad", "ok2", "ok3"} {
		p.Submit(Request{ID: id})
	}
	got := collect(p, 4)
	p.Close()

	if got["bad"].Success || got["bad"].Error == "" {
		t.Errorf("panicking job: %+v", got["bad"])
	}
	for _, id := range []string{"ok1", "ok2", "ok3"} {
		if !got[id].Success {
			t.Errorf("%s affected by sibling panic: %+v", id, got[id])
		}
	}
}

func TestPoolClose(t *testing.T) {
	p := New(2, func(req Request) Response {
		return Response{Success: true}
	}, nil)
	p.Submit(Request{ID: "x"})

	go func() {
		for range p.Results() {
		}
	}()
	p.Close()
	p.Close()

	if err := p.Submit(Request{ID: "y"}); !errors.Is(err, ErrClosed) {
		t.Errorf("submit after close: err = %v", err)
	}
}

func TestPoolSetsElapsedAndID(t *testing.T) {
	p := New(1, func(req Request) Response {
		time.Sleep(time.Millisecond)
		return Response{Success: true}
	}, nil)
	p.Submit(Request{ID: "timed"})
	r := <-p.Results()
	p.Close()

	if r.ID != "timed" || r.Elapsed <= 0 {
		t.Errorf("response = %+v", r)
	}
}
