// Package codec provides decode/encode implementations per image format
// behind a memoizing Registry.
//
// Encoders write into scratch buffers drawn from a shared Arena. Those
// buffers are reused across calls, so a Scratch is only valid until it is
// released. Registry.Encode is the only place that turns scratch memory
// into durable output: it copies the bytes into a fresh slice and
// releases the scratch before returning.
package codec

import (
	"errors"
	"fmt"
	"image"

	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/quality"
)

// Decoder turns encoded bytes into pixels.
type Decoder interface {
	Format() format.Format
	Decode(data []byte) (image.Image, error)
}

// Encoder turns pixels into encoded bytes. The returned Scratch aliases
// arena memory; callers must copy what they keep and Release it.
type Encoder interface {
	Format() format.Format
	Encode(img image.Image, p quality.Params) (*Scratch, error)
}

// DecoderFactory builds a Decoder. It runs at most once per registry.
type DecoderFactory func(tools Tools) (Decoder, error)

// EncoderFactory builds an Encoder. It runs at most once per registry.
type EncoderFactory func(tools Tools, arena *Arena) (Encoder, error)

// ErrEmptyOutput is reported when an encoder succeeds without producing
// any bytes.
var ErrEmptyOutput = errors.New("encoder returned empty output")

// ErrToolMissing is wrapped when an external codec binary is not found.
var ErrToolMissing = errors.New("codec tool not found")

// DecodeError reports a corrupt or unsupported payload.
type DecodeError struct {
	Format format.Format
	Err    error
}

func (e *DecodeError) Error() string {
	name := string(e.Format)
	if name == "" {
		name = "bitmap"
	}
	return fmt.Sprintf("decode %s: %v", name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports a codec failure, including empty results.
type EncodeError struct {
	Format format.Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
