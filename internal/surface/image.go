package surface

import (
	"image"

	"thirdcoast.systems/mediacrop/internal/export"
	"thirdcoast.systems/mediacrop/pkg/geometry"
	"thirdcoast.systems/mediacrop/pkg/media"
)

// ImageSurface shows a decoded still.
type ImageSurface struct {
	layout
	img image.Image
}

func NewImageSurface() *ImageSurface {
	return &ImageSurface{}
}

func (s *ImageSurface) Kind() media.Kind { return media.KindImage }

// SetImage replaces the still; its bounds become the natural size.
func (s *ImageSurface) SetImage(img image.Image) {
	s.mu.Lock()
	s.img = img
	s.mu.Unlock()
	if img == nil {
		s.setNatural(geometry.Size{})
		return
	}
	s.setNatural(export.ImageSize(img))
}

// Image returns the current still.
func (s *ImageSurface) Image() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.img
}

func (s *ImageSurface) Close() error {
	s.SetImage(nil)
	return nil
}
