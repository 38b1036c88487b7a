package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"sync/atomic"
)

// Tools names the external codec binaries. Empty fields use the default
// name looked up in PATH.
type Tools struct {
	CWebP       string
	AVIFEnc     string
	AVIFDec     string
	CJXL        string
	DJXL        string
	HeifConvert string
}

// DefaultTools returns the binary names of the reference encoders.
func DefaultTools() Tools {
	return Tools{
		CWebP:       "cwebp",
		AVIFEnc:     "avifenc",
		AVIFDec:     "avifdec",
		CJXL:        "cjxl",
		DJXL:        "djxl",
		HeifConvert: "heif-convert",
	}
}

func (t Tools) withDefaults() Tools {
	d := DefaultTools()
	pick := func(v, def string) string {
		if v == "" {
			return def
		}
		return v
	}
	return Tools{
		CWebP:       pick(t.CWebP, d.CWebP),
		AVIFEnc:     pick(t.AVIFEnc, d.AVIFEnc),
		AVIFDec:     pick(t.AVIFDec, d.AVIFDec),
		CJXL:        pick(t.CJXL, d.CJXL),
		DJXL:        pick(t.DJXL, d.DJXL),
		HeifConvert: pick(t.HeifConvert, d.HeifConvert),
	}
}

// lookTool resolves a binary once, at factory time.
func lookTool(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolMissing, name)
	}
	return path, nil
}

// Atomic counter for unique temp file names across goroutines.
var tempCounter atomic.Int64

// tempPair creates a source and destination temp file and returns a
// cleanup func that removes both.
func tempPair(srcExt, dstExt string) (src *os.File, dstPath string, cleanup func(), err error) {
	id := tempCounter.Add(1)
	src, err = os.CreateTemp("", fmt.Sprintf("imgpress_src_%d_*.%s", id, srcExt))
	if err != nil {
		return nil, "", nil, fmt.Errorf("create temp: %w", err)
	}
	dst, err := os.CreateTemp("", fmt.Sprintf("imgpress_dst_%d_*.%s", id, dstExt))
	if err != nil {
		src.Close()
		os.Remove(src.Name())
		return nil, "", nil, fmt.Errorf("create temp: %w", err)
	}
	dstPath = dst.Name()
	dst.Close()

	srcPath := src.Name()
	cleanup = func() {
		os.Remove(srcPath)
		os.Remove(dstPath)
	}
	return src, dstPath, cleanup, nil
}

func run(path string, args ...string) error {
	cmd := exec.Command(path, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", path, err, bytes.TrimSpace(out))
	}
	return nil
}

// encodeWithTool writes img as a temporary PNG, runs the encoder and
// reads the result into arena scratch.
func encodeWithTool(arena *Arena, dstExt string, img image.Image, command func(src, dst string) error) (*Scratch, error) {
	src, dstPath, cleanup, err := tempPair("png", dstExt)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	// Fastest level: the temp file is read back once and discarded.
	enc := &png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(src, img); err != nil {
		src.Close()
		return nil, fmt.Errorf("encode temp png: %w", err)
	}
	if err := src.Close(); err != nil {
		return nil, fmt.Errorf("write temp png: %w", err)
	}

	if err := command(src.Name(), dstPath); err != nil {
		return nil, err
	}

	f, err := os.Open(dstPath)
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}
	defer f.Close()

	s := arena.Get()
	if _, err := s.ReadFrom(f); err != nil {
		s.Release()
		return nil, fmt.Errorf("read output: %w", err)
	}
	return s, nil
}

// decodeWithTool writes data to a temp file, runs a decoder that emits
// PNG and decodes that PNG.
func decodeWithTool(srcExt string, data []byte, command func(src, dst string) error) (image.Image, error) {
	src, dstPath, cleanup, err := tempPair(srcExt, "png")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if _, err := src.Write(data); err != nil {
		src.Close()
		return nil, fmt.Errorf("write temp input: %w", err)
	}
	if err := src.Close(); err != nil {
		return nil, fmt.Errorf("write temp input: %w", err)
	}

	if err := command(src.Name(), dstPath); err != nil {
		return nil, err
	}

	f, err := os.Open(dstPath)
	if err != nil {
		return nil, fmt.Errorf("read decoded png: %w", err)
	}
	defer f.Close()
	return png.Decode(f)
}
