package codec

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/quality"
	"github.com/disintegration/imaging"
)

var errNoCodec = errors.New("no codec registered")

// slot memoizes one codec instance. init runs exactly once no matter how
// many jobs ask for it concurrently.
type slot struct {
	once  sync.Once
	init  func() (any, error)
	value any
	err   error
	loads atomic.Int32
}

func (s *slot) get() (any, error) {
	s.once.Do(func() {
		s.loads.Add(1)
		s.value, s.err = s.init()
	})
	return s.value, s.err
}

// Options configures a Registry.
type Options struct {
	Tools       Tools
	RetainBytes int
	Logger      *slog.Logger
}

// Registry holds one lazily built decoder and encoder per format.
type Registry struct {
	mu       sync.RWMutex
	decoders map[format.Format]*slot
	encoders map[format.Format]*slot

	tools  Tools
	arena  *Arena
	logger *slog.Logger
}

// NewRegistry creates an empty registry. Use NewDefaultRegistry for the
// built-in codecs.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Registry{
		decoders: make(map[format.Format]*slot),
		encoders: make(map[format.Format]*slot),
		tools:    opts.Tools.withDefaults(),
		arena:    NewArena(opts.RetainBytes),
		logger:   logger,
	}
}

// NewDefaultRegistry registers every built-in codec. Nothing is loaded
// until a format is first used.
func NewDefaultRegistry(opts Options) *Registry {
	r := NewRegistry(opts)

	r.RegisterDecoder(format.JPEG, newJPEGDecoder)
	r.RegisterEncoder(format.JPEG, newJPEGEncoder)
	r.RegisterDecoder(format.PNG, newPNGDecoder)
	r.RegisterEncoder(format.PNG, newPNGEncoder)
	r.RegisterDecoder(format.WebP, newWebPDecoder)
	r.RegisterEncoder(format.WebP, newWebPEncoder)
	r.RegisterDecoder(format.AVIF, newAVIFDecoder)
	r.RegisterEncoder(format.AVIF, newAVIFEncoder)
	r.RegisterDecoder(format.JXL, newJXLDecoder)
	r.RegisterEncoder(format.JXL, newJXLEncoder)
	r.RegisterDecoder(format.HEIC, newHEICDecoder)

	return r
}

// RegisterDecoder installs or replaces the decoder factory for f.
func (r *Registry) RegisterDecoder(f format.Format, factory DecoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[f] = &slot{init: func() (any, error) { return factory(r.tools) }}
}

// RegisterEncoder installs or replaces the encoder factory for f.
func (r *Registry) RegisterEncoder(f format.Format, factory EncoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[f] = &slot{init: func() (any, error) { return factory(r.tools, r.arena) }}
}

func (r *Registry) lookup(table map[format.Format]*slot, f format.Format) (any, error) {
	r.mu.RLock()
	s, ok := table[f]
	r.mu.RUnlock()
	if !ok {
		return nil, errNoCodec
	}
	first := s.loads.Load() == 0
	v, err := s.get()
	if first && err != nil {
		r.logger.Debug("codec unavailable", "format", string(f), "error", err)
	}
	return v, err
}

func (r *Registry) decoder(f format.Format) (Decoder, error) {
	v, err := r.lookup(r.decoders, f)
	if err != nil {
		return nil, err
	}
	return v.(Decoder), nil
}

func (r *Registry) encoder(f format.Format) (Encoder, error) {
	v, err := r.lookup(r.encoders, f)
	if err != nil {
		return nil, err
	}
	return v.(Encoder), nil
}

// Decode returns the pixels of data as NRGBA. Unknown formats, and
// formats without a registered decoder, go through the generic bitmap
// path.
func (r *Registry) Decode(f format.Format, data []byte) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Format: f, Err: errors.New("empty input")}
	}
	if f == format.Unknown {
		return decodeBitmap(data)
	}

	dec, err := r.decoder(f)
	if errors.Is(err, errNoCodec) {
		return decodeBitmap(data)
	}
	if err != nil {
		return nil, &DecodeError{Format: f, Err: err}
	}

	img, err := dec.Decode(data)
	if err != nil {
		return nil, &DecodeError{Format: f, Err: err}
	}
	if img == nil || img.Bounds().Empty() {
		return nil, &DecodeError{Format: f, Err: errors.New("empty image")}
	}
	return toNRGBA(img), nil
}

// Encode encodes img as f and returns a buffer the caller exclusively
// owns.
//
// Encoder output may alias arena memory that is reused by the next
// encode. The bytes are always copied before the scratch is released, so
// nothing returned from here shares memory with a codec. A nil or empty
// result is an EncodeError, never a success.
func (r *Registry) Encode(f format.Format, img image.Image, p quality.Params) ([]byte, error) {
	target := format.EncodeTarget(f)
	if p.Format != target {
		return nil, &EncodeError{Format: target, Err: fmt.Errorf("params are for %q", p.Format)}
	}

	enc, err := r.encoder(target)
	if errors.Is(err, errNoCodec) {
		return nil, &format.ConfigurationError{Format: string(f), Reason: "no encoder available"}
	}
	if err != nil {
		return nil, &format.ConfigurationError{Format: string(f), Reason: err.Error()}
	}

	s, err := enc.Encode(img, p)
	if err != nil {
		s.Release()
		return nil, &EncodeError{Format: target, Err: err}
	}
	if s.Len() == 0 {
		s.Release()
		return nil, &EncodeError{Format: target, Err: ErrEmptyOutput}
	}

	out := make([]byte, s.Len())
	copy(out, s.Bytes())
	s.Release()
	return out, nil
}

// CanEncode reports whether an encoder for f's target can be loaded.
func (r *Registry) CanEncode(f format.Format) bool {
	_, err := r.encoder(format.EncodeTarget(f))
	return err == nil
}

// CanDecode reports whether a dedicated decoder for f can be loaded.
func (r *Registry) CanDecode(f format.Format) bool {
	_, err := r.decoder(f)
	return err == nil
}

// Loads returns how many times codecs for f were initialized.
func (r *Registry) Loads(f format.Format) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	if s, ok := r.decoders[f]; ok {
		n += int(s.loads.Load())
	}
	if s, ok := r.encoders[f]; ok {
		n += int(s.loads.Load())
	}
	return n
}

// Arena exposes the shared scratch arena.
func (r *Registry) Arena() *Arena { return r.arena }

// String returns a summary of loadable encoders.
func (r *Registry) String() string {
	var avail []string
	for _, f := range format.All() {
		if format.Encodable(f) && r.CanEncode(f) {
			avail = append(avail, string(f))
		}
	}
	if len(avail) == 0 {
		return "no encoders available"
	}
	return fmt.Sprintf("encoders: %s", strings.Join(avail, ", "))
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
