package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strconv"

	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/AnyUserName/imgpress-cli/internal/quality"
	"golang.org/x/image/webp"
)

// webpDecoder is pure Go via x/image/webp.
type webpDecoder struct{}

func newWebPDecoder(Tools) (Decoder, error) { return webpDecoder{}, nil }

func (webpDecoder) Format() format.Format { return format.WebP }

func (webpDecoder) Decode(data []byte) (image.Image, error) {
	return webp.Decode(bytes.NewReader(data))
}

// webpEncoder shells out to cwebp.
// Install: brew install webp / apt install webp
type webpEncoder struct {
	arena *Arena
	path  string
}

func newWebPEncoder(tools Tools, arena *Arena) (Encoder, error) {
	path, err := lookTool(tools.CWebP)
	if err != nil {
		return nil, err
	}
	return &webpEncoder{arena: arena, path: path}, nil
}

func (e *webpEncoder) Format() format.Format { return format.WebP }

func (e *webpEncoder) Encode(img image.Image, p quality.Params) (*Scratch, error) {
	if p.WebP == nil {
		return nil, errors.New("missing webp params")
	}
	args := []string{"-m", strconv.Itoa(p.WebP.Method), "-mt", "-quiet"}
	if p.WebP.Lossless {
		args = append(args, "-lossless", "-exact")
	} else {
		args = append(args, "-q", strconv.Itoa(p.WebP.Quality))
	}
	return encodeWithTool(e.arena, "webp", img, func(src, dst string) error {
		return run(e.path, append(args, src, "-o", dst)...)
	})
}

// avifEncoder shells out to avifenc.
// Install: brew install libavif / apt install libavif-bin
type avifEncoder struct {
	arena *Arena
	path  string
}

func newAVIFEncoder(tools Tools, arena *Arena) (Encoder, error) {
	path, err := lookTool(tools.AVIFEnc)
	if err != nil {
		return nil, err
	}
	return &avifEncoder{arena: arena, path: path}, nil
}

func (e *avifEncoder) Format() format.Format { return format.AVIF }

func (e *avifEncoder) Encode(img image.Image, p quality.Params) (*Scratch, error) {
	if p.AVIF == nil {
		return nil, errors.New("missing avif params")
	}
	args := []string{"--speed", strconv.Itoa(p.AVIF.Speed), "-j", "all"}
	if p.AVIF.Lossless {
		args = append(args, "--lossless")
	} else {
		cq := strconv.Itoa(p.AVIF.CQLevel)
		args = append(args, "--min", cq, "--max", cq)
	}
	return encodeWithTool(e.arena, "avif", img, func(src, dst string) error {
		return run(e.path, append(args, src, dst)...)
	})
}

type avifDecoder struct {
	path string
}

func newAVIFDecoder(tools Tools) (Decoder, error) {
	path, err := lookTool(tools.AVIFDec)
	if err != nil {
		return nil, err
	}
	return &avifDecoder{path: path}, nil
}

func (d *avifDecoder) Format() format.Format { return format.AVIF }

func (d *avifDecoder) Decode(data []byte) (image.Image, error) {
	return decodeWithTool("avif", data, func(src, dst string) error {
		return run(d.path, src, dst)
	})
}

// jxlEncoder shells out to cjxl. Effort comes from quality.Effort, which
// keeps the encoder's memory bounded on large images.
type jxlEncoder struct {
	arena *Arena
	path  string
}

func newJXLEncoder(tools Tools, arena *Arena) (Encoder, error) {
	path, err := lookTool(tools.CJXL)
	if err != nil {
		return nil, err
	}
	return &jxlEncoder{arena: arena, path: path}, nil
}

func (e *jxlEncoder) Format() format.Format { return format.JXL }

func (e *jxlEncoder) Encode(img image.Image, p quality.Params) (*Scratch, error) {
	if p.JXL == nil {
		return nil, errors.New("missing jxl params")
	}
	dist := p.JXL.Distance
	if p.JXL.Lossless {
		dist = 0
	}
	args := []string{
		"-d", fmt.Sprintf("%.2f", dist),
		"-e", strconv.Itoa(p.JXL.Effort),
		"--quiet",
	}
	return encodeWithTool(e.arena, "jxl", img, func(src, dst string) error {
		return run(e.path, append([]string{src, dst}, args...)...)
	})
}

type jxlDecoder struct {
	path string
}

func newJXLDecoder(tools Tools) (Decoder, error) {
	path, err := lookTool(tools.DJXL)
	if err != nil {
		return nil, err
	}
	return &jxlDecoder{path: path}, nil
}

func (d *jxlDecoder) Format() format.Format { return format.JXL }

func (d *jxlDecoder) Decode(data []byte) (image.Image, error) {
	return decodeWithTool("jxl", data, func(src, dst string) error {
		return run(d.path, src, dst, "--quiet")
	})
}

// heicDecoder shells out to heif-convert. heic has no encoder; output
// requests are redirected to jpeg by format.EncodeTarget.
type heicDecoder struct {
	path string
}

func newHEICDecoder(tools Tools) (Decoder, error) {
	path, err := lookTool(tools.HeifConvert)
	if err != nil {
		return nil, err
	}
	return &heicDecoder{path: path}, nil
}

func (d *heicDecoder) Format() format.Format { return format.HEIC }

func (d *heicDecoder) Decode(data []byte) (image.Image, error) {
	return decodeWithTool("heic", data, func(src, dst string) error {
		return run(d.path, src, dst)
	})
}
