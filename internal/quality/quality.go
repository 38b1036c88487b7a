// Package quality converts a quality preset and lossless flag into
// codec-specific encoder parameters.
//
// Map is pure: it never touches pixel data. Every preset table is fixed
// and monotonic, so preset 90 never yields a lower encoder quality than
// 80, and 80 never lower than 60.
package quality

import (
	"image/png"
	"math"

	"github.com/AnyUserName/imgpress-cli/internal/format"
)

// Effort levels for encoders whose cost scales steeply with effort.
const (
	EffortMin    = 1
	EffortLow    = 3
	EffortMedium = 5
	EffortMax    = 9
)

// Pixel-count breakpoints for effort degradation.
const (
	largePixels  = 5_000_000
	mediumPixels = 2_000_000
	smallPixels  = 1_000_000
)

const (
	// jpegLosslessQuality stands in for lossless, which jpeg does not have.
	jpegLosslessQuality = 95
	// heicFallbackQuality is the fixed tier used when heic output is
	// redirected to jpeg.
	heicFallbackQuality = 90

	webpMethod = 6
	avifSpeed  = 6
)

var (
	jpegTable = map[Preset]int{High: 90, Balanced: 80, Small: 60}
	jxlTable  = map[Preset]int{High: 90, Balanced: 80, Small: 60}
	webpTable = map[Preset]int{High: 85, Balanced: 75, Small: 50}
	avifTable = map[Preset]int{High: 80, Balanced: 65, Small: 45}
)

// Params carries the encoder settings for exactly one format. Format is
// the encoder that will run; only the matching field is non-nil.
type Params struct {
	Format format.Format

	JPEG *JPEGParams
	PNG  *PNGParams
	WebP *WebPParams
	AVIF *AVIFParams
	JXL  *JXLParams
}

type JPEGParams struct {
	Quality int // 1-100
}

type PNGParams struct {
	Level png.CompressionLevel
}

type WebPParams struct {
	Quality  int
	Lossless bool
	Method   int // 0=fast, 6=best
}

type AVIFParams struct {
	Quality  int
	CQLevel  int // 0 (best) - 63 (worst)
	Speed    int // 0=slowest, 10=fastest
	Lossless bool
}

type JXLParams struct {
	Quality  int
	Distance float64 // butteraugli distance; 0 is lossless
	Effort   int     // 1-9
	Lossless bool
}

// Lossless reports whether the params request a lossless encode.
func (p Params) Lossless() bool {
	switch {
	case p.PNG != nil:
		return true
	case p.WebP != nil:
		return p.WebP.Lossless
	case p.AVIF != nil:
		return p.AVIF.Lossless
	case p.JXL != nil:
		return p.JXL.Lossless
	}
	return false
}

// Quality returns the effective numeric quality knob, or 0 for formats
// without one (png) and for lossless requests.
func (p Params) Quality() int {
	switch {
	case p.JPEG != nil:
		return p.JPEG.Quality
	case p.WebP != nil && !p.WebP.Lossless:
		return p.WebP.Quality
	case p.AVIF != nil && !p.AVIF.Lossless:
		return p.AVIF.Quality
	case p.JXL != nil && !p.JXL.Lossless:
		return p.JXL.Quality
	}
	return 0
}

// Map returns encoder parameters for f. Invalid presets fall back to
// DefaultPreset. Formats without an encoder path return Params with
// Format set to format.Unknown.
func Map(f format.Format, preset Preset, lossless bool, pixelCount int) Params {
	if !preset.Valid() {
		preset = DefaultPreset
	}

	switch f {
	case format.JPEG:
		q := jpegTable[preset]
		if lossless {
			q = jpegLosslessQuality
		}
		return Params{Format: format.JPEG, JPEG: &JPEGParams{Quality: q}}

	case format.HEIC:
		return Params{Format: format.JPEG, JPEG: &JPEGParams{Quality: heicFallbackQuality}}

	case format.PNG:
		return Params{Format: format.PNG, PNG: &PNGParams{Level: png.BestCompression}}

	case format.WebP:
		if lossless {
			return Params{Format: format.WebP, WebP: &WebPParams{Lossless: true, Method: webpMethod}}
		}
		return Params{Format: format.WebP, WebP: &WebPParams{Quality: webpTable[preset], Method: webpMethod}}

	case format.AVIF:
		if lossless {
			return Params{Format: format.AVIF, AVIF: &AVIFParams{Speed: avifSpeed, Lossless: true}}
		}
		q := avifTable[preset]
		return Params{Format: format.AVIF, AVIF: &AVIFParams{
			Quality: q,
			CQLevel: cqLevel(q),
			Speed:   avifSpeed,
		}}

	case format.JXL:
		effort := Effort(pixelCount)
		if lossless {
			return Params{Format: format.JXL, JXL: &JXLParams{Effort: effort, Lossless: true}}
		}
		q := jxlTable[preset]
		return Params{Format: format.JXL, JXL: &JXLParams{
			Quality:  q,
			Distance: distance(q),
			Effort:   effort,
		}}
	}

	return Params{Format: format.Unknown}
}

// Effort bounds encoder memory by lowering effort as the image grows.
// It never increases with pixel count.
func Effort(pixelCount int) int {
	switch {
	case pixelCount > largePixels:
		return EffortMin
	case pixelCount > mediumPixels:
		return EffortLow
	case pixelCount > smallPixels:
		return EffortMedium
	default:
		return EffortMax
	}
}

// cqLevel inverts a 0-100 quality onto avif's 0-63 quantizer scale.
func cqLevel(q int) int {
	return int(math.Round((1 - float64(q)/100) * 63))
}

// distance follows libjxl's quality-to-distance mapping.
func distance(q int) float64 {
	if q >= 100 {
		return 0
	}
	if q >= 30 {
		return 0.1 + float64(100-q)*0.09
	}
	return 53.0/3000.0*float64(q*q) - 23.0/20.0*float64(q) + 25
}
