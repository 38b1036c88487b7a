package pipeline

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AnyUserName/imgpress-cli/internal/codec"
	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/job"
	"github.com/AnyUserName/imgpress-cli/internal/quality"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeDecoder returns a fixed image and records every payload it saw.
type fakeDecoder struct {
	mu   sync.Mutex
	seen [][]byte
}

func (d *fakeDecoder) Format() format.Format { return format.PNG }

func (d *fakeDecoder) Decode(data []byte) (image.Image, error) {
	d.mu.Lock()
	d.seen = append(d.seen, data)
	d.mu.Unlock()
	return image.NewNRGBA(image.Rect(0, 0, 4, 4)), nil
}

// fakeEncoder runs hook before writing a small payload to scratch.
type fakeEncoder struct {
	arena *codec.Arena
	hook  func() error
}

func (e *fakeEncoder) Format() format.Format { return format.WebP }

func (e *fakeEncoder) Encode(image.Image, quality.Params) (*codec.Scratch, error) {
	if e.hook != nil {
		if err := e.hook(); err != nil {
			return nil, err
		}
	}
	s := e.arena.Get()
	s.Write([]byte("webp!"))
	return s, nil
}

func fakeRegistry(dec *fakeDecoder, hook func() error) *codec.Registry {
	r := codec.NewRegistry(codec.Options{})
	r.RegisterDecoder(format.PNG, func(codec.Tools) (codec.Decoder, error) { return dec, nil })
	r.RegisterEncoder(format.WebP, func(_ codec.Tools, a *codec.Arena) (codec.Encoder, error) {
		return &fakeEncoder{arena: a, hook: hook}, nil
	})
	return r
}

var webpSettings = job.Settings{Format: format.WebP, Preset: quality.Balanced}

func TestHappyPath(t *testing.T) {
	e := New(Config{Workers: 2})
	defer e.Close()

	src := pngBytes(t, 40, 30)
	settings := job.Settings{Format: format.JPEG, Preset: quality.High}
	ids, err := e.SubmitFiles([]File{{Name: "shot.png", MediaType: "image/png", Data: src}}, settings)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	settings.Preset = quality.Small // must not reach the in-flight job
	e.Wait()

	j, ok := e.Job(ids[0])
	if !ok {
		t.Fatal("job missing")
	}
	if j.Status != job.StatusDone {
		t.Fatalf("status = %s (%s)", j.Status, j.Error)
	}
	if j.Settings.Preset != quality.High {
		t.Errorf("settings snapshot changed: %v", j.Settings.Preset)
	}
	if j.OutputFormat != format.JPEG || j.CompressedSize != int64(len(j.Output)) || j.CompressedSize == 0 {
		t.Errorf("output: format=%s size=%d", j.OutputFormat, j.CompressedSize)
	}
	if j.Ratio == nil || *j.Ratio != job.Ratio(int64(len(src)), j.CompressedSize) {
		t.Errorf("ratio = %v", j.Ratio)
	}
	if j.OriginalSize != int64(len(src)) {
		t.Errorf("original size = %d", j.OriginalSize)
	}
}

func TestRetryAfterError(t *testing.T) {
	var calls atomic.Int32
	dec := &fakeDecoder{}
	reg := fakeRegistry(dec, func() error {
		if calls.Add(1) == 1 {
			return errors.New("out of memory")
		}
		return nil
	})
	e := New(Config{Workers: 1, Registry: reg})
	defer e.Close()

	src := []byte("original png bytes")
	ids, err := e.SubmitFiles([]File{{Name: "a.png", MediaType: "image/png", Data: src}}, webpSettings)
	if err != nil {
		t.Fatal(err)
	}
	e.Wait()

	j, _ := e.Job(ids[0])
	if j.Status != job.StatusError || j.Error == "" || j.Output != nil {
		t.Fatalf("after first run: %+v", j)
	}

	if err := e.Retry(ids[0]); err != nil {
		t.Fatalf("retry: %v", err)
	}
	e.Wait()

	j, _ = e.Job(ids[0])
	if j.Status != job.StatusDone || string(j.Output) != "webp!" {
		t.Fatalf("after retry: status=%s output=%q", j.Status, j.Output)
	}
	if j.Attempts != 2 {
		t.Errorf("attempts = %d", j.Attempts)
	}
	if len(dec.seen) != 2 {
		t.Fatalf("decoder calls = %d", len(dec.seen))
	}
	for i, data := range dec.seen {
		if !bytes.Equal(data, src) {
			t.Errorf("decode %d got %q, want original source", i, data)
		}
	}

	if err := e.Retry(ids[0]); !errors.Is(err, job.ErrInvalidTransition) {
		t.Errorf("retry of done job: err = %v", err)
	}
}

func TestConcurrencyBound(t *testing.T) {
	const workers, n = 2, 12
	var e *Engine
	var ready sync.WaitGroup
	ready.Add(1)
	var peak atomic.Int32

	reg := fakeRegistry(&fakeDecoder{}, func() error {
		ready.Wait()
		c := int32(e.Counts()[job.StatusCompressing])
		for {
			old := peak.Load()
			if c <= old || peak.CompareAndSwap(old, c) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return nil
	})
	e = New(Config{Workers: workers, Registry: reg})
	defer e.Close()

	files := make([]File, n)
	for i := range files {
		files[i] = File{Name: "f.png", MediaType: "image/png", Data: []byte{byte(i)}}
	}
	if _, err := e.SubmitFiles(files, webpSettings); err != nil {
		t.Fatal(err)
	}
	if c := e.Counts()[job.StatusCompressing]; c > workers {
		t.Errorf("compressing right after submit = %d", c)
	}
	ready.Done()
	e.Wait()

	if peak.Load() > workers {
		t.Errorf("peak compressing = %d, want <= %d", peak.Load(), workers)
	}
	if got := e.Counts()[job.StatusDone]; got != n {
		t.Errorf("done = %d, want %d", got, n)
	}
}

func TestUnknownMediaTypeFiltered(t *testing.T) {
	e := New(Config{Workers: 1, Registry: fakeRegistry(&fakeDecoder{}, nil)})
	defer e.Close()

	ids, err := e.SubmitFiles([]File{
		{Name: "doc.pdf", MediaType: "application/pdf", Data: []byte("%PDF")},
		{Name: "x.png", MediaType: "image/png", Data: []byte("png")},
	}, webpSettings)
	if err != nil {
		t.Fatal(err)
	}
	e.Wait()

	if len(ids) != 1 || len(e.Jobs()) != 1 {
		t.Fatalf("ids=%v jobs=%d", ids, len(e.Jobs()))
	}
	rej := e.Rejected()
	if len(rej) != 1 || !errors.Is(rej[0], format.ErrUnsupportedFormat) {
		t.Errorf("rejected = %v", rej)
	}
}

func TestHEICOutputIsJPEG(t *testing.T) {
	e := New(Config{Workers: 2})
	defer e.Close()

	for _, p := range quality.Presets() {
		ids, err := e.SubmitFiles([]File{{Name: "x.png", MediaType: "image/png", Data: pngBytes(t, 8, 8)}},
			job.Settings{Format: format.HEIC, Preset: p})
		if err != nil {
			t.Fatal(err)
		}
		e.Wait()
		j, _ := e.Job(ids[0])
		if j.Status != job.StatusDone || j.OutputFormat != format.JPEG {
			t.Fatalf("preset %d: status=%s format=%s err=%s", p, j.Status, j.OutputFormat, j.Error)
		}
		if j.Output[0] != 0xFF || j.Output[1] != 0xD8 {
			t.Errorf("preset %d: not jpeg bytes", p)
		}
	}
}

func TestConfigurationErrorBeforeDispatch(t *testing.T) {
	reg := codec.NewRegistry(codec.Options{})
	e := New(Config{Workers: 1, Registry: reg})
	defer e.Close()

	_, err := e.SubmitFiles([]File{{Name: "x.png", MediaType: "image/png", Data: []byte("x")}}, webpSettings)
	var cfgErr *format.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("err = %v, want ConfigurationError", err)
	}
	if len(e.Jobs()) != 0 {
		t.Errorf("jobs created despite configuration error: %d", len(e.Jobs()))
	}

	_, err = e.SubmitFiles(nil, job.Settings{Format: format.PNG, Preset: 70})
	if !errors.As(err, &cfgErr) {
		t.Errorf("invalid preset: err = %v", err)
	}
}

func TestDecodeFailureIsolated(t *testing.T) {
	e := New(Config{Workers: 2})
	defer e.Close()

	ids, err := e.SubmitFiles([]File{
		{Name: "bad.png", MediaType: "image/png", Data: []byte("definitely not png")},
		{Name: "good.png", MediaType: "image/png", Data: pngBytes(t, 6, 6)},
	}, job.Settings{Format: format.PNG, Preset: quality.High})
	if err != nil {
		t.Fatal(err)
	}
	e.Wait()

	bad, _ := e.Job(ids[0])
	good, _ := e.Job(ids[1])
	if bad.Status != job.StatusError || bad.Error == "" {
		t.Errorf("bad job: %s %q", bad.Status, bad.Error)
	}
	if good.Status != job.StatusDone {
		t.Errorf("good job: %s %q", good.Status, good.Error)
	}
}

func TestClearAllAndExport(t *testing.T) {
	var released atomic.Int32
	e := New(Config{
		Workers:      1,
		StoreOptions: []job.Option{job.WithReleaseHook(func(job.Job) { released.Add(1) })},
	})
	defer e.Close()

	e.SubmitFiles([]File{
		{Name: "a.png", MediaType: "image/png", Data: pngBytes(t, 4, 4)},
		{Name: "b.png", MediaType: "image/png", Data: []byte("broken")},
	}, DefaultSettings())
	e.Wait()

	var buf bytes.Buffer
	m, err := e.ExportAll(&buf)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(m.Entries) != 1 || m.Entries[0].Name != "a.png" {
		t.Errorf("entries = %+v", m.Entries)
	}

	e.ClearAll()
	if len(e.Jobs()) != 0 {
		t.Errorf("jobs after clear = %d", len(e.Jobs()))
	}
	if released.Load() != 2 {
		t.Errorf("released = %d, want 2", released.Load())
	}
}

func TestOutputFormat(t *testing.T) {
	cases := []struct {
		src, req, want format.Format
	}{
		{format.WebP, format.KeepOriginal, format.WebP},
		{format.HEIC, format.KeepOriginal, format.HEIC},
		{format.Unknown, format.KeepOriginal, format.PNG},
		{format.PNG, format.AVIF, format.AVIF},
	}
	for _, c := range cases {
		if got := OutputFormat(c.src, c.req); got != c.want {
			t.Errorf("OutputFormat(%q, %q) = %q, want %q", c.src, c.req, got, c.want)
		}
	}
}
