package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"thirdcoast.systems/mediacrop/internal/config"
	"thirdcoast.systems/mediacrop/internal/export"
	"thirdcoast.systems/mediacrop/internal/logging"
	"thirdcoast.systems/mediacrop/internal/scratch"
	"thirdcoast.systems/mediacrop/internal/session"
)

// configFlags maps flag names to the config keys they override. Only flags
// defined on the running command are bound.
var configFlags = map[string]string{
	"log-level":      "LOG_LEVEL",
	"log-format":     "LOG_FORMAT",
	"temp-dir":       "TEMP_DIR",
	"ratio":          "CROP_ASPECT_RATIO",
	"portrait-only":  "CROP_PORTRAIT_ONLY",
	"oval":           "OVAL_MASK",
	"preset":         "VIDEO_EXPORT_PRESET",
	"max-zoom":       "MAX_ZOOM",
	"passthrough":    "TRANSCODE_PASSTHROUGH",
	"port":           "WEBSERVER_PORT",
	"max-upload":     "MAX_UPLOAD_SIZE",
	"idle-timeout":   "SESSION_IDLE_TIMEOUT",
	"accepted-kinds": "ACCEPTED_KINDS",
}

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "mediacrop",
		Short: "Crop stills and video to a fixed crop window",
		Long: `mediacrop positions a picked image or video behind a fixed-aspect crop
window and exports the covered region: a cropped still, or a transcoded,
spatially cropped video.

It runs headless from the command line or as an HTTP API that drives the
same crop sessions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if err := config.BindFlags(cmd.Flags(), presentFlags(cmd.Flags())); err != nil {
				return err
			}
			cfg, err := config.LoadConfig(cmd.Context())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.Setup(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	cmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	cmd.PersistentFlags().String("temp-dir", "", "Directory for staged and exported files")

	cmd.AddCommand(newCropCmd(a))
	cmd.AddCommand(newProbeCmd(a))
	cmd.AddCommand(newPresetsCmd(a))
	cmd.AddCommand(newServeCmd(a))

	return cmd
}

func presentFlags(flags *pflag.FlagSet) map[string]string {
	keys := make(map[string]string, len(configFlags))
	for name, key := range configFlags {
		if flags.Lookup(name) != nil {
			keys[name] = key
		}
	}
	return keys
}

// newEngine opens the scratch directory and the ffmpeg-backed export engine.
func (a *app) newEngine() (*export.Engine, *scratch.Dir, error) {
	dir, err := scratch.NewOS(a.cfg.TempDir, a.logger)
	if err != nil {
		return nil, nil, err
	}
	return export.NewEngine(export.FFmpeg{}, dir, a.logger), dir, nil
}

func (a *app) sessionOptions() (session.Options, error) {
	kinds, err := a.cfg.Kinds()
	if err != nil {
		return session.Options{}, err
	}
	return session.Options{
		CropWindow:           a.cfg.CropWindow(),
		AcceptedKinds:        kinds,
		Preset:               a.cfg.VideoExportPreset,
		MaxZoom:              a.cfg.MaxZoom,
		ProgressInterval:     a.cfg.ProgressInterval,
		TranscodePassthrough: a.cfg.TranscodePassthrough,
	}, nil
}
