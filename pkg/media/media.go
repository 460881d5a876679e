// Package media holds the values that flow between a crop session and its
// host: picked media, the crop window contract and the crop result.
package media

import (
	"fmt"
	"image"
	"strings"
)

// Kind is the general kind of picked media.
type Kind int

const (
	KindImage Kind = iota + 1
	KindVideo
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses "image" or "video".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image":
		return KindImage, nil
	case "video":
		return KindVideo, nil
	}
	return 0, fmt.Errorf("unknown media kind %q", s)
}

// Media is either an Image or a Video.
type Media interface {
	Kind() Kind
	// DeclaredType is the subtype reported by the picker (a UTI or MIME type).
	DeclaredType() string
	isMedia()
}

// Image is a picked still, held in memory in its encoded form.
type Image struct {
	Data    []byte
	Subtype string
}

// Video is a picked clip staged at Path. The session that received it owns
// the file.
type Video struct {
	Path    string
	Subtype string
}

func (Image) Kind() Kind             { return KindImage }
func (i Image) DeclaredType() string { return i.Subtype }
func (Image) isMedia()               {}
func (Video) Kind() Kind             { return KindVideo }
func (v Video) DeclaredType() string { return v.Subtype }
func (Video) isMedia()               {}

// CropWindow is the per-session geometry contract.
type CropWindow struct {
	// AspectRatio is height/width; 0 disables cropping.
	AspectRatio float64 `json:"aspect_ratio"`
	// Oval only changes the mask drawn by the host.
	Oval bool `json:"oval"`
	// PortraitOnly lets landscape and square media bypass cropping.
	PortraitOnly bool `json:"portrait_only"`
}

// RequiresCropping reports whether media of the given natural orientation
// has to go through the crop window.
func (w CropWindow) RequiresCropping(portrait bool) bool {
	return w.AspectRatio > 0 && (!w.PortraitOnly || portrait)
}

// Result is the terminal outcome handed to the host.
type Result interface {
	isResult()
}

// CroppedImage is the still extracted from the crop rectangle.
type CroppedImage struct {
	Image image.Image
}

// CroppedVideo is a transcoded clip. Ownership of Path moves to the receiver.
type CroppedVideo struct {
	Path string
}

// Passthrough delivers the picked media unmodified.
type Passthrough struct {
	Original Media
}

// Failure ends a session without a usable result, including cancellation.
type Failure struct {
	Err error
}

func (CroppedImage) isResult() {}
func (CroppedVideo) isResult() {}
func (Passthrough) isResult()  {}
func (Failure) isResult()      {}

// Describe returns a short label for logs.
func Describe(r Result) string {
	switch r := r.(type) {
	case CroppedImage:
		if r.Image == nil {
			return "cropped image (empty)"
		}
		b := r.Image.Bounds()
		return fmt.Sprintf("cropped image %dx%d", b.Dx(), b.Dy())
	case CroppedVideo:
		return "cropped video " + r.Path
	case Passthrough:
		return "passthrough " + r.Original.Kind().String()
	case Failure:
		return "failure: " + r.Err.Error()
	default:
		return fmt.Sprintf("%T", r)
	}
}
