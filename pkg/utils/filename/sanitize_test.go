package filename

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "holiday", "holiday"},
		{"spaces", "  my  summer clip ", "my-summer-clip"},
		{"reserved characters", `a<b>c:d"e/f\g|h?i*j`, "a-b-c-d-e-f-g-h-i-j"},
		{"leading dots", "...hidden", "hidden"},
		{"underscores kept", "IMG_0042", "IMG_0042"},
		{"unicode letters", "café crème", "café-crème"},
		{"nothing usable", "???", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitizeTruncatesOnRuneBoundary(t *testing.T) {
	in := strings.Repeat("a", maxBase-1) + "éé"
	out := Sanitize(in)
	assert.LessOrEqual(t, len(out), maxBase)
	assert.Equal(t, strings.Repeat("a", maxBase-1), out)
}

func TestDerived(t *testing.T) {
	assert.Equal(t, "IMG_0042-cropped.jpg", Derived("/tmp/IMG_0042.HEIC", "cropped", ".jpg"))
	assert.Equal(t, "my-clip-cropped.mov", Derived("my clip.mp4", "cropped", ".mov"))
	assert.Equal(t, "cropped.mov", Derived("", "cropped", ".mov"))
	assert.Equal(t, "original.mov", Derived("???.mov", "original", ".mov"))
}
