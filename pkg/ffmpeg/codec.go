package ffmpeg

import (
	"fmt"
	"sort"
)

// ExportPreset is a named encoding recipe for cropped video exports. MaxWidth
// and MaxHeight cap the output resolution (matched to the output's
// orientation); zero means uncapped.
type ExportPreset struct {
	Name      string
	Encoder   string // encoder that must be present in the ffmpeg build
	MaxWidth  int
	MaxHeight int
	Video     []Option
	Audio     []Option
	// Passthrough copies streams; only usable when neither crop nor rotation
	// has to be baked into the pixels.
	Passthrough bool
}

// Preset names.
const (
	PresetHEVC1920x1080 = "hevc-1920x1080"
	PresetH2641920x1080 = "h264-1920x1080"
	PresetH2641280x720  = "h264-1280x720"
	PresetH264960x540   = "h264-960x540"
	PresetH264640x480   = "h264-640x480"
	PresetH264Highest   = "h264-highest"
	PresetPassthrough   = "passthrough"
)

func h264Video() []Option {
	return []Option{
		VideoCodec("libx264"),
		CRF(21),
		Preset("medium"),
		PixelFormat("yuv420p"),
	}
}

func aacAudio() []Option {
	return []Option{
		AudioCodec("aac"),
		AudioBitrate("192k"),
	}
}

var exportPresets = map[string]ExportPreset{
	PresetHEVC1920x1080: {
		Name:      PresetHEVC1920x1080,
		Encoder:   "libx265",
		MaxWidth:  1920,
		MaxHeight: 1080,
		Video: []Option{
			VideoCodec("libx265"),
			CRF(24),
			Preset("medium"),
			PixelFormat("yuv420p"),
			// QuickTime only plays HEVC tagged hvc1
			VideoTag("hvc1"),
		},
		Audio: aacAudio(),
	},
	PresetH2641920x1080: {Name: PresetH2641920x1080, Encoder: "libx264", MaxWidth: 1920, MaxHeight: 1080, Video: h264Video(), Audio: aacAudio()},
	PresetH2641280x720:  {Name: PresetH2641280x720, Encoder: "libx264", MaxWidth: 1280, MaxHeight: 720, Video: h264Video(), Audio: aacAudio()},
	PresetH264960x540:   {Name: PresetH264960x540, Encoder: "libx264", MaxWidth: 960, MaxHeight: 540, Video: h264Video(), Audio: aacAudio()},
	PresetH264640x480:   {Name: PresetH264640x480, Encoder: "libx264", MaxWidth: 640, MaxHeight: 480, Video: h264Video(), Audio: aacAudio()},
	PresetH264Highest:   {Name: PresetH264Highest, Encoder: "libx264", Video: h264Video(), Audio: aacAudio()},
	PresetPassthrough:   {Name: PresetPassthrough, Passthrough: true, Video: []Option{CopyAll}},
}

// presetPreference is the order in which presets are tried when none is
// configured: a modern codec first, then the universally supported one.
var presetPreference = []string{PresetHEVC1920x1080, PresetH2641920x1080}

// LookupExportPreset returns the named preset.
func LookupExportPreset(name string) (ExportPreset, bool) {
	p, ok := exportPresets[name]
	return p, ok
}

// ExportPresetNames lists all preset names, sorted.
func ExportPresetNames() []string {
	names := make([]string, 0, len(exportPresets))
	for name := range exportPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supported reports whether the ffmpeg build can run the preset.
func (p ExportPreset) Supported(encoders EncoderSet) bool {
	return p.Encoder == "" || encoders.Has(p.Encoder)
}

// OptimalExportPreset picks the first preferred preset the encoders support.
func OptimalExportPreset(encoders EncoderSet) (ExportPreset, error) {
	for _, name := range presetPreference {
		p := exportPresets[name]
		if p.Supported(encoders) {
			return p, nil
		}
	}
	return ExportPreset{}, fmt.Errorf("ffmpeg: none of %v is supported by this build", presetPreference)
}
