package export

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"
	// Extra still formats accepted from the picker
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"thirdcoast.systems/mediacrop/pkg/geometry"
)

// DecodeImage decodes a picked still, applying its EXIF orientation so the
// bounds match the natural size.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// CropImage extracts r (in image pixels, relative to the image's top-left)
// into a new image of exactly the rounded size of r. Area of r outside the
// source is opaque black. A rect that rounds to an empty size yields nil.
func CropImage(img image.Image, r geometry.Rect) image.Image {
	w := int(math.Round(r.W))
	h := int(math.Round(r.H))
	if img == nil || w <= 0 || h <= 0 {
		return nil
	}
	x := int(math.Round(r.X))
	y := int(math.Round(r.Y))

	dst := imaging.New(w, h, color.Black)
	return imaging.Paste(dst, img, image.Pt(-x, -y))
}

// EncodeImage writes img in the format implied by name's extension, JPEG
// when the extension is unknown.
func EncodeImage(w io.Writer, img image.Image, name string) error {
	format, err := imaging.FormatFromFilename(name)
	if err != nil {
		format = imaging.JPEG
	}
	if err := imaging.Encode(w, img, format, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("encode image: %w", err)
	}
	return nil
}

// ImageSize returns the bounds of img as a geometry size.
func ImageSize(img image.Image) geometry.Size {
	b := img.Bounds()
	return geometry.Size{W: float64(b.Dx()), H: float64(b.Dy())}
}
