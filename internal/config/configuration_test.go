package config

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/mediacrop/pkg/media"
)

func TestLoadConfig_Success_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, 8080, cfg.WebServerPort)
	require.Equal(t, []string{"image", "video"}, cfg.AcceptedKinds)
	require.Equal(t, 1.0, cfg.CropAspectRatio)
	require.Equal(t, 5.0, cfg.MaxZoom)
	require.Equal(t, 33*time.Millisecond, cfg.ProgressInterval)
	require.Equal(t, 30*time.Minute, cfg.SessionIdleTimeout)
	require.Equal(t, uint64(512_000_000), cfg.MaxUploadBytes)
	require.Empty(t, cfg.VideoExportPreset)
	require.Equal(t, media.CropWindow{AspectRatio: 1}, cfg.CropWindow())

	kinds, err := cfg.Kinds()
	require.NoError(t, err)
	require.Equal(t, []media.Kind{media.KindImage, media.KindVideo}, kinds)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ACCEPTED_KINDS", "video")
	t.Setenv("CROP_ASPECT_RATIO", "1.7778")
	t.Setenv("CROP_PORTRAIT_ONLY", "true")
	t.Setenv("OVAL_MASK", "true")
	t.Setenv("VIDEO_EXPORT_PRESET", "h264-1280x720")
	t.Setenv("PROGRESS_INTERVAL", "100ms")
	t.Setenv("MAX_UPLOAD_SIZE", "1 GiB")

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"video"}, cfg.AcceptedKinds)
	require.Equal(t, media.CropWindow{AspectRatio: 1.7778, Oval: true, PortraitOnly: true}, cfg.CropWindow())
	require.Equal(t, "h264-1280x720", cfg.VideoExportPreset)
	require.Equal(t, 100*time.Millisecond, cfg.ProgressInterval)
	require.Equal(t, uint64(1<<30), cfg.MaxUploadBytes)
}

func TestLoadConfig_ValidationError(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"negative ratio", "CROP_ASPECT_RATIO", "-1"},
		{"zoom below one", "MAX_ZOOM", "0.5"},
		{"unknown kind", "ACCEPTED_KINDS", "image,audio"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"bad upload size", "MAX_UPLOAD_SIZE", "lots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			t.Setenv(tt.key, tt.val)

			cfg, err := LoadConfig(context.Background())
			require.Error(t, err)
			require.Nil(t, cfg)
		})
	}
}

func TestBindFlags(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("CROP_ASPECT_RATIO", "2")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Float64("ratio", 0, "")
	flags.String("preset", "", "")
	require.NoError(t, flags.Parse([]string{"--ratio", "0.5"}))

	require.NoError(t, BindFlags(flags, map[string]string{
		"ratio":  "CROP_ASPECT_RATIO",
		"preset": "VIDEO_EXPORT_PRESET",
	}))

	cfg, err := LoadConfig(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0.5, cfg.CropAspectRatio, "set flag wins over env")
	require.Empty(t, cfg.VideoExportPreset)

	require.Error(t, BindFlags(flags, map[string]string{"missing": "X"}))
}
