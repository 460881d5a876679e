package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// General type identifiers, in the order they are tried during conformance
// lookup.
const (
	TypeMovie = "public.movie"
	TypeImage = "public.image"
)

var generalTypes = []struct {
	id   string
	kind Kind
}{
	{TypeMovie, KindVideo},
	{TypeImage, KindImage},
}

// conformsTo declares the parent of each known uniform type identifier.
// Lookups walk the chain until a general type is reached.
var conformsTo = map[string]string{
	"public.jpeg":               TypeImage,
	"public.png":                TypeImage,
	"public.tiff":               TypeImage,
	"public.heic":               "public.heif-standard",
	"public.heif":               "public.heif-standard",
	"public.heif-standard":      TypeImage,
	"public.avif":               TypeImage,
	"com.compuserve.gif":        TypeImage,
	"com.microsoft.bmp":         TypeImage,
	"org.webmproject.webp":      TypeImage,
	"public.camera-raw-image":   TypeImage,
	"com.adobe.raw-image":       "public.camera-raw-image",
	"com.apple.live-photo":      TypeImage,
	"public.video":              TypeMovie,
	"public.mpeg-4":             TypeMovie,
	"public.mpeg":               TypeMovie,
	"public.mpeg-2-video":       "public.video",
	"public.avi":                "public.video",
	"public.3gpp":               TypeMovie,
	"public.3gpp2":              TypeMovie,
	"com.apple.quicktime-movie": TypeMovie,
	"com.apple.m4v-video":       "public.mpeg-4",
	"org.matroska.mkv":          TypeMovie,
	"org.webmproject.webm":      TypeMovie,
}

// Classify resolves a declared media subtype to a general kind. An exact
// match on a general type (or the bare words "image"/"video") wins;
// otherwise the first general type the subtype conforms to is used.
// Conformance covers uniform type identifiers and MIME types.
func Classify(subtype string) (Kind, bool) {
	s := strings.ToLower(strings.TrimSpace(subtype))
	if s == "" {
		return 0, false
	}
	for _, g := range generalTypes {
		if s == g.id || s == g.kind.String() {
			return g.kind, true
		}
	}
	for _, g := range generalTypes {
		if conforms(s, g.id) {
			return g.kind, true
		}
	}
	return 0, false
}

func conforms(subtype, general string) bool {
	if strings.Contains(subtype, "/") {
		return mimeConforms(subtype, general)
	}
	seen := map[string]bool{}
	for t := subtype; t != "" && !seen[t]; t = conformsTo[t] {
		if t == general {
			return true
		}
		seen[t] = true
	}
	return false
}

// mimeConforms maps a MIME type onto the general types by its top-level
// type. Aliases known to mimetype (e.g. "image/jpg") resolve to their
// canonical form first.
func mimeConforms(subtype, general string) bool {
	if m := mimetype.Lookup(subtype); m != nil {
		subtype = m.String()
	}
	top, _, _ := strings.Cut(subtype, "/")
	switch general {
	case TypeImage:
		return top == "image"
	case TypeMovie:
		return top == "video"
	}
	return false
}
