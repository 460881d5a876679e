package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"thirdcoast.systems/mediacrop/pkg/geometry"
)

func TestNewManifestRect(t *testing.T) {
	tests := []struct {
		name string
		in   geometry.Rect
		want manifestRect
	}{
		{"whole pixels", geometry.Rect{X: 0, Y: 420, W: 1080, H: 1080}, manifestRect{0, 420, 1080, 1080}},
		{"fractional", geometry.Rect{X: 12.4, Y: 7.5, W: 299.6, H: 300.2}, manifestRect{12, 8, 300, 300}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *newManifestRect(tt.in))
		})
	}
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	mf := manifest{
		Input:     "in.jpg",
		Kind:      "image",
		Result:    "cropped image",
		Crop:      newManifestRect(geometry.Rect{X: 10.2, Y: 0, W: 500.7, H: 500.7}),
		Elapsed:   "1s",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, writeManifest(path, mf))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, map[string]any{"x": 10, "y": 0, "w": 501, "h": 501}, got["crop"])
	assert.Equal(t, "in.jpg", got["input"])
	assert.NotContains(t, got, "preset")
}
