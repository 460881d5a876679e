package config

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"thirdcoast.systems/mediacrop/pkg/media"
)

type Config struct {
	// WebServer Configuration
	WebServerPort      int           `mapstructure:"WEBSERVER_PORT" validate:"min=1,max=65535"`
	MaxUploadSize      string        `mapstructure:"MAX_UPLOAD_SIZE" validate:"required"`
	SessionIdleTimeout time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT" validate:"gte=0"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=text json"`

	// Scratch files; empty means a fresh directory under the OS temp dir
	TempDir string `mapstructure:"TEMP_DIR"`

	// Crop session
	AcceptedKinds        []string      `mapstructure:"ACCEPTED_KINDS" validate:"min=1,dive,oneof=image video"`
	CropAspectRatio      float64       `mapstructure:"CROP_ASPECT_RATIO" validate:"gte=0"`
	CropPortraitOnly     bool          `mapstructure:"CROP_PORTRAIT_ONLY"`
	OvalMask             bool          `mapstructure:"OVAL_MASK"`
	VideoExportPreset    string        `mapstructure:"VIDEO_EXPORT_PRESET"`
	MaxZoom              float64       `mapstructure:"MAX_ZOOM" validate:"gte=1"`
	ProgressInterval     time.Duration `mapstructure:"PROGRESS_INTERVAL" validate:"gt=0"`
	TranscodePassthrough bool          `mapstructure:"TRANSCODE_PASSTHROUGH"`

	// MaxUploadBytes is MaxUploadSize parsed.
	MaxUploadBytes uint64 `mapstructure:"-"`
}

// CropWindow returns the crop window described by the config.
func (c *Config) CropWindow() media.CropWindow {
	return media.CropWindow{
		AspectRatio:  c.CropAspectRatio,
		Oval:         c.OvalMask,
		PortraitOnly: c.CropPortraitOnly,
	}
}

// Kinds parses AcceptedKinds.
func (c *Config) Kinds() ([]media.Kind, error) {
	kinds := make([]media.Kind, 0, len(c.AcceptedKinds))
	for _, s := range c.AcceptedKinds {
		k, err := media.ParseKind(s)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// use reflect to bind environment variables based on mapstructure tags
func bindEnv(c Config) {
	val := reflect.ValueOf(c)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("mapstructure")
		if tag != "" && tag != "-" {
			_ = viper.BindEnv(tag)
		}
	}
}

func setDefaults() {
	viper.SetDefault("WEBSERVER_PORT", 8080)
	viper.SetDefault("MAX_UPLOAD_SIZE", "512MB")
	viper.SetDefault("SESSION_IDLE_TIMEOUT", 30*time.Minute)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("ACCEPTED_KINDS", []string{"image", "video"})
	viper.SetDefault("CROP_ASPECT_RATIO", 1.0)
	viper.SetDefault("MAX_ZOOM", 5.0)
	viper.SetDefault("PROGRESS_INTERVAL", 33*time.Millisecond)
}

// BindFlags binds command-line flags to config keys, so a set flag wins over
// the environment. keys maps flag name to config key.
func BindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		f := flags.Lookup(name)
		if f == nil {
			return fmt.Errorf("bind flag %q: no such flag", name)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %q: %w", name, err)
		}
	}
	return nil
}

func LoadConfig(ctx context.Context) (*Config, error) {
	bindEnv(Config{})
	viper.AutomaticEnv()
	setDefaults()

	cfg := Config{}
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// A single env value like "image,video" arrives as one element
	cfg.AcceptedKinds = splitList(cfg.AcceptedKinds)

	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	n, err := humanize.ParseBytes(cfg.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("validate config: MAX_UPLOAD_SIZE: %w", err)
	}
	cfg.MaxUploadBytes = n

	slog.DebugContext(ctx, "Loaded configuration", "config", cfg)
	return &cfg, nil
}

func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
