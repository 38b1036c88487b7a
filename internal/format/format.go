// Package format maps media types to internal format tags and back.
package format

import (
	"path/filepath"
	"strings"
)

// Format is an internal image encoding tag.
type Format string

const (
	Unknown Format = ""
	JPEG    Format = "jpeg"
	PNG     Format = "png"
	WebP    Format = "webp"
	AVIF    Format = "avif"
	JXL     Format = "jxl"
	HEIC    Format = "heic"

	// KeepOriginal requests output in the source's own format.
	KeepOriginal Format = "keep-original"
)

// mediaTypes is the resolve table. heic and heif alias to one tag.
var mediaTypes = map[string]Format{
	"image/jpeg":          JPEG,
	"image/jpg":           JPEG,
	"image/pjpeg":         JPEG,
	"image/png":           PNG,
	"image/webp":          WebP,
	"image/avif":          AVIF,
	"image/jxl":           JXL,
	"image/heic":          HEIC,
	"image/heif":          HEIC,
	"image/heic-sequence": HEIC,
	"image/heif-sequence": HEIC,
}

// bitmapTypes are accepted only through the generic bitmap decode path.
var bitmapTypes = map[string]bool{
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

var extensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".avif": "image/avif",
	".jxl":  "image/jxl",
	".heic": "image/heic",
	".heif": "image/heif",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// all lists tags in display priority order.
var all = []Format{JPEG, PNG, WebP, AVIF, JXL, HEIC}

func normalize(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

// Resolve returns the format tag for a media type. Unmatched types
// return Unknown and false.
func Resolve(mediaType string) (Format, bool) {
	f, ok := mediaTypes[normalize(mediaType)]
	return f, ok
}

// IsBitmap reports whether the media type has no tag of its own but can
// still be rasterized by the generic decode path.
func IsBitmap(mediaType string) bool {
	return bitmapTypes[normalize(mediaType)]
}

// Accepted reports whether a file of this media type may become a job.
func Accepted(mediaType string) bool {
	_, ok := Resolve(mediaType)
	return ok || IsBitmap(mediaType)
}

// MediaType returns the canonical media type for f.
func MediaType(f Format) string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case PNG:
		return "image/png"
	case WebP:
		return "image/webp"
	case AVIF:
		return "image/avif"
	case JXL:
		return "image/jxl"
	case HEIC:
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}

// Extension returns the output file extension for f, without dot.
func Extension(f Format) string {
	switch f {
	case JPEG:
		return "jpg"
	case PNG, WebP, AVIF, JXL, HEIC:
		return string(f)
	default:
		return "bin"
	}
}

// FromExtension guesses a media type from a file name. Unknown
// extensions return "".
func FromExtension(name string) string {
	return extensions[strings.ToLower(filepath.Ext(name))]
}

// EncodeTarget returns the format actually encoded when f is requested.
// heic is decode-only and always produces jpeg.
func EncodeTarget(f Format) Format {
	if f == HEIC {
		return JPEG
	}
	return f
}

// Encodable reports whether f has its own encoder path.
func Encodable(f Format) bool {
	switch f {
	case JPEG, PNG, WebP, AVIF, JXL:
		return true
	default:
		return false
	}
}

// All returns every known tag in priority order.
func All() []Format {
	out := make([]Format, len(all))
	copy(out, all)
	return out
}

// Parse converts a user-facing name into a format tag. Empty and
// "keep"-style names mean KeepOriginal.
func Parse(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "keep", "keep-original", "original", "auto":
		return KeepOriginal, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	case "avif":
		return AVIF, nil
	case "jxl":
		return JXL, nil
	case "heic", "heif":
		return HEIC, nil
	}
	return Unknown, &ConfigurationError{Format: name, Reason: "unknown output format"}
}
