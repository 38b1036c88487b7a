package codec

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/AnyUserName/imgpress-cli/internal/format"
	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// decodeBitmap rasterizes anything the image package can sniff onto an
// NRGBA surface, applying EXIF orientation.
func decodeBitmap(data []byte) (*image.NRGBA, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Format: format.Unknown, Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &DecodeError{Format: format.Unknown, Err: image.ErrFormat}
	}
	return toNRGBA(img), nil
}
