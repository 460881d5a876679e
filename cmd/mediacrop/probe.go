package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"thirdcoast.systems/mediacrop/internal/export"
	"thirdcoast.systems/mediacrop/pkg/ffmpeg"
	"thirdcoast.systems/mediacrop/pkg/media"
)

type probeReport struct {
	Path        string `yaml:"path"`
	MIME        string `yaml:"mime"`
	Kind        string `yaml:"kind"`
	NaturalSize string `yaml:"natural_size,omitempty"`
	StoredSize  string `yaml:"stored_size,omitempty"`
	Rotation    int    `yaml:"rotation,omitempty"`
	Mirrored    bool   `yaml:"mirrored,omitempty"`
	Duration    string `yaml:"duration,omitempty"`
	FPS         string `yaml:"fps,omitempty"`
	VideoCodec  string `yaml:"video_codec,omitempty"`
	AudioCodec  string `yaml:"audio_codec,omitempty"`
	Container   string `yaml:"container,omitempty"`
	Size        string `yaml:"size,omitempty"`
	NeedsCrop   bool   `yaml:"needs_crop"`
}

func newProbeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe <file>",
		Short: "Show how a file would enter a crop session",
		Long: `Prints the detected type, the natural (display-oriented) size and, for
videos, the ffprobe stream details. needs_crop reflects the configured crop
window.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			mt, err := mimetype.DetectFile(path)
			if err != nil {
				return fmt.Errorf("detect type: %w", err)
			}
			rep := probeReport{Path: path, MIME: mt.String(), Kind: "unsupported"}
			kind, ok := media.Classify(mt.String())
			if ok {
				rep.Kind = kind.String()
			}

			if ok && kind == media.KindVideo {
				res, err := ffmpeg.Probe(cmd.Context(), path)
				if err != nil {
					return err
				}
				track := export.TrackFromProbe(res)
				natural := track.NaturalSize()
				rep.NaturalSize = fmt.Sprintf("%.0fx%.0f", natural.W, natural.H)
				rep.StoredSize = fmt.Sprintf("%dx%d", res.Width, res.Height)
				rep.Rotation = res.Rotation
				rep.Mirrored = res.Mirrored
				rep.Duration = res.Duration.String()
				rep.FPS = fmt.Sprintf("%.2f", res.FPS)
				rep.VideoCodec = res.VideoCodec
				rep.AudioCodec = res.AudioCodec
				rep.Container = res.FormatName
				rep.Size = humanize.Bytes(uint64(res.Size))
				rep.NeedsCrop = a.cfg.CropWindow().RequiresCropping(natural.IsPortrait())
			}

			out, err := yaml.Marshal(rep)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().Float64("ratio", 1, "Crop window aspect ratio (height/width)")
	cmd.Flags().Bool("portrait-only", false, "Only crop portrait media")
	return cmd
}
