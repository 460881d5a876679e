package picker

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/mediacrop/internal/scratch"
	"thirdcoast.systems/mediacrop/pkg/media"
)

func newPicker(t *testing.T, maxBytes uint64) (*Picker, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	dir, err := scratch.New(fs, "/scratch", nil)
	require.NoError(t, err)
	return &Picker{Dir: dir, MaxBytes: maxBytes}, fs
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// mp4Header is the start of an ISO BMFF file with an "isom" brand.
func mp4Header() []byte {
	return append([]byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0, 0, 2, 0, 'i', 's', 'o', 'm', 'm', 'p', '4', '1'},
		bytes.Repeat([]byte{0}, 64)...)
}

func TestStage_SniffedImage(t *testing.T) {
	p, _ := newPicker(t, 0)
	data := pngBytes(t)

	m, err := p.Stage(context.Background(), bytes.NewReader(data), "", "")
	require.NoError(t, err)

	img, ok := m.(media.Image)
	require.True(t, ok)
	assert.Equal(t, "image/png", img.Subtype)
	assert.Equal(t, data, img.Data)
}

func TestStage_DeclaredSubtypeWins(t *testing.T) {
	p, _ := newPicker(t, 0)

	m, err := p.Stage(context.Background(), bytes.NewReader(pngBytes(t)), "x.png", "public.jpeg")
	require.NoError(t, err)
	assert.Equal(t, media.KindImage, m.Kind())
	assert.Equal(t, "public.jpeg", m.DeclaredType())
}

func TestStage_Video(t *testing.T) {
	p, fs := newPicker(t, 0)
	data := mp4Header()

	m, err := p.Stage(context.Background(), bytes.NewReader(data), "clip.MOV", "com.apple.quicktime-movie")
	require.NoError(t, err)

	v, ok := m.(media.Video)
	require.True(t, ok)
	assert.Equal(t, ".mov", filepath.Ext(v.Path))
	assert.True(t, p.Dir.Owns(v.Path))

	got, err := afero.ReadFile(fs, v.Path)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestStage_SniffedVideoExtension(t *testing.T) {
	p, _ := newPicker(t, 0)

	m, err := p.Stage(context.Background(), bytes.NewReader(mp4Header()), "", "")
	require.NoError(t, err)
	v, ok := m.(media.Video)
	require.True(t, ok)
	assert.Equal(t, ".mp4", filepath.Ext(v.Path))
}

func TestStage_Unsupported(t *testing.T) {
	p, _ := newPicker(t, 0)

	_, err := p.Stage(context.Background(), strings.NewReader("just some text"), "notes.txt", "")
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = p.Stage(context.Background(), strings.NewReader("x"), "", "public.audio")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestStage_TooLarge(t *testing.T) {
	p, fs := newPicker(t, 16)

	_, err := p.Stage(context.Background(), bytes.NewReader(pngBytes(t)), "", "")
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = p.Stage(context.Background(), bytes.NewReader(mp4Header()), "a.mp4", "video/mp4")
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := afero.ReadDir(fs, "/scratch")
	require.NoError(t, err)
	assert.Empty(t, entries, "partial video copies are removed")
}

func TestStage_Cancelled(t *testing.T) {
	p, fs := newPicker(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Stage(ctx, bytes.NewReader(mp4Header()), "a.mp4", "video/mp4")
	assert.ErrorIs(t, err, context.Canceled)

	entries, _ := afero.ReadDir(fs, "/scratch")
	assert.Empty(t, entries)
}
