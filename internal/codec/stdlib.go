package codec

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/quality"
)

// jpegCodec uses Go's standard library.
type jpegCodec struct {
	arena *Arena
}

func newJPEGDecoder(Tools) (Decoder, error) { return &jpegCodec{}, nil }

func newJPEGEncoder(_ Tools, arena *Arena) (Encoder, error) {
	return &jpegCodec{arena: arena}, nil
}

func (c *jpegCodec) Format() format.Format { return format.JPEG }

func (c *jpegCodec) Decode(data []byte) (image.Image, error) {
	return jpeg.Decode(bytes.NewReader(data))
}

func (c *jpegCodec) Encode(img image.Image, p quality.Params) (*Scratch, error) {
	if p.JPEG == nil {
		return nil, errors.New("missing jpeg params")
	}
	s := c.arena.Get()
	if err := jpeg.Encode(s, img, &jpeg.Options{Quality: p.JPEG.Quality}); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

// pngCodec uses Go's standard library. Output is always lossless.
type pngCodec struct {
	arena *Arena
}

func newPNGDecoder(Tools) (Decoder, error) { return &pngCodec{}, nil }

func newPNGEncoder(_ Tools, arena *Arena) (Encoder, error) {
	return &pngCodec{arena: arena}, nil
}

func (c *pngCodec) Format() format.Format { return format.PNG }

func (c *pngCodec) Decode(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

func (c *pngCodec) Encode(img image.Image, p quality.Params) (*Scratch, error) {
	if p.PNG == nil {
		return nil, errors.New("missing png params")
	}
	s := c.arena.Get()
	enc := &png.Encoder{CompressionLevel: p.PNG.Level}
	if err := enc.Encode(s, img); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}
