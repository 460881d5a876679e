package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"thirdcoast.systems/mediacrop/internal/export"
	"thirdcoast.systems/mediacrop/internal/logging"
	"thirdcoast.systems/mediacrop/internal/picker"
	"thirdcoast.systems/mediacrop/internal/session"
	"thirdcoast.systems/mediacrop/pkg/geometry"
	"thirdcoast.systems/mediacrop/pkg/media"
	"thirdcoast.systems/mediacrop/pkg/utils/filename"
)

type cropFlags struct {
	input        string
	subtype      string
	output       string
	manifest     string
	screenWidth  float64
	screenHeight float64
	zoom         float64
	offsetX      float64
	offsetY      float64
}

// manifest is written next to the output with --manifest.
type manifest struct {
	Input     string        `yaml:"input"`
	Output    string        `yaml:"output,omitempty"`
	Kind      string        `yaml:"kind"`
	Result    string        `yaml:"result"`
	Crop      *manifestRect `yaml:"crop,omitempty"`
	Zoom      float64       `yaml:"zoom,omitempty"`
	Preset    string        `yaml:"preset,omitempty"`
	Size      string        `yaml:"size,omitempty"`
	Bytes     int64         `yaml:"bytes,omitempty"`
	Elapsed   string        `yaml:"elapsed"`
	CreatedAt time.Time     `yaml:"created_at"`
}

// manifestRect is a crop in whole pixels of the oriented media.
type manifestRect struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	W int `yaml:"w"`
	H int `yaml:"h"`
}

func newManifestRect(r geometry.Rect) *manifestRect {
	r = r.Integral()
	return &manifestRect{X: int(r.X), Y: int(r.Y), W: int(r.W), H: int(r.H)}
}

func newCropCmd(a *app) *cobra.Command {
	f := &cropFlags{}

	cmd := &cobra.Command{
		Use:   "crop",
		Short: "Crop one image or video headlessly",
		Long: `Runs a single crop session without a screen.

The crop window is laid out inside a virtual screen, the media is placed
behind it with the given zoom and offset (centered by default), and the
covered region is exported. Video exports are transcoded with ffmpeg and
report progress as they run; Ctrl+C cancels the export and removes the
partial output.`,
		Example: `  # Square crop of the center of a photo
  mediacrop crop -i photo.heic -o avatar.jpg

  # Portrait 16:9 crop of a clip, zoomed in and shifted down
  mediacrop crop -i clip.mov --ratio 1.7778 --zoom 1.5 --offset-y 120 -o story.mov

  # Record what was done
  mediacrop crop -i clip.mp4 --manifest crop.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrop(cmd, a, f)
		},
	}

	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Image or video to crop")
	cmd.Flags().StringVar(&f.subtype, "subtype", "", "Declared media type (UTI or MIME); sniffed when empty")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output path (default: <input>-cropped.<ext>)")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "Write a YAML manifest of the result to this path")
	cmd.Flags().Float64Var(&f.screenWidth, "screen-width", 390, "Virtual screen width the crop window is laid out in")
	cmd.Flags().Float64Var(&f.screenHeight, "screen-height", 844, "Virtual screen height the crop window is laid out in")
	cmd.Flags().Float64Var(&f.zoom, "zoom", 1, "Zoom factor; 1 covers the crop window exactly")
	cmd.Flags().Float64Var(&f.offsetX, "offset-x", 0, "Horizontal offset of the crop window in zoomed screen points")
	cmd.Flags().Float64Var(&f.offsetY, "offset-y", 0, "Vertical offset of the crop window in zoomed screen points")
	cmd.Flags().Float64("ratio", 1, "Crop window aspect ratio (height/width); 0 passes media through")
	cmd.Flags().Bool("portrait-only", false, "Only crop portrait media; landscape and square pass through")
	cmd.Flags().Bool("oval", false, "Oval crop mask (cosmetic)")
	cmd.Flags().String("preset", "", "Video export preset (see 'mediacrop presets')")
	cmd.Flags().Float64("max-zoom", 5, "Maximum zoom factor")
	cmd.Flags().Bool("passthrough", false, "Re-export videos that need no cropping instead of returning the original")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runCrop(cmd *cobra.Command, a *app, f *cropFlags) error {
	ctx := cmd.Context()
	logger := logging.WithComponent(a.logger, "crop")
	started := time.Now()

	engine, dir, err := a.newEngine()
	if err != nil {
		return err
	}
	defer dir.Cleanup()

	opts, err := a.sessionOptions()
	if err != nil {
		return err
	}

	p := &picker.Picker{Dir: dir, MaxBytes: a.cfg.MaxUploadBytes, Logger: logger}
	m, err := p.FromFile(ctx, f.input, f.subtype)
	if err != nil {
		return err
	}

	s := session.New(engine, dir, &progressLogger{logger: logger}, opts, a.logger)
	defer s.Close()

	if err := s.Select(ctx, m); err != nil {
		return err
	}

	var crop *geometry.Rect
	var zoom float64
	st, err := s.State()
	if err != nil {
		return err
	}
	if st == session.StateMediaSelected {
		screen := geometry.Rect{W: f.screenWidth, H: f.screenHeight}
		if err := s.Layout(geometry.CropWindowFrame(screen, opts.CropWindow.AspectRatio)); err != nil {
			return err
		}
		v, err := positionViewport(cmd, s, f)
		if err != nil {
			return err
		}
		zoom = v.Zoom
		rect, err := s.CropFrame()
		if err != nil {
			return err
		}
		crop = &rect
		if err := s.Confirm(); err != nil {
			return err
		}
	}

	result, err := awaitResult(ctx, s)
	if err != nil {
		return err
	}

	out, err := deliver(result, f)
	if err != nil {
		return err
	}

	var size int64
	if out != "" {
		if info, err := os.Stat(out); err == nil {
			size = info.Size()
		}
	}
	logger.Info("Crop finished",
		"result", media.Describe(result),
		"output", out,
		"size", humanize.Bytes(uint64(size)),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)

	if f.manifest == "" {
		return nil
	}
	mf := manifest{
		Input:     f.input,
		Output:    out,
		Kind:      m.Kind().String(),
		Result:    media.Describe(result),
		Zoom:      zoom,
		Size:      humanize.Bytes(uint64(size)),
		Bytes:     size,
		Elapsed:   time.Since(started).Round(time.Millisecond).String(),
		CreatedAt: time.Now().UTC(),
	}
	if crop != nil {
		mf.Crop = newManifestRect(*crop)
	}
	if m.Kind() == media.KindVideo {
		mf.Preset = opts.Preset
		if mf.Preset == "" {
			mf.Preset = "auto"
		}
	}
	return writeManifest(f.manifest, mf)
}

// positionViewport applies --zoom and --offset-x/y on top of the centered
// layout. Offsets that were not given keep the centered value.
func positionViewport(cmd *cobra.Command, s *session.Session, f *cropFlags) (geometry.Viewport, error) {
	snap, err := s.Status()
	if err != nil {
		return geometry.Viewport{}, err
	}
	v := snap.Viewport
	flags := cmd.Flags()
	if flags.Changed("zoom") {
		// Keep the window centered on the same media point while zooming
		k := f.zoom / v.Zoom
		cx := (v.Offset.X+snap.CropFrame.W/2)*k - snap.CropFrame.W/2
		cy := (v.Offset.Y+snap.CropFrame.H/2)*k - snap.CropFrame.H/2
		v = geometry.Viewport{Zoom: f.zoom, Offset: geometry.Point{X: cx, Y: cy}}
	}
	if flags.Changed("offset-x") {
		v.Offset.X = f.offsetX
	}
	if flags.Changed("offset-y") {
		v.Offset.Y = f.offsetY
	}
	return s.SetViewport(v)
}

// awaitResult waits for delivery while a watcher cancels the session when
// ctx ends, so an interrupted export still resolves and cleans up.
func awaitResult(ctx context.Context, s *session.Session) (media.Result, error) {
	var result media.Result
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return s.Cancel()
		case <-s.Done():
			return nil
		}
	})
	g.Go(func() error {
		r, err := s.Wait(gctx)
		result = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// deliver moves the result to its output path and returns that path.
func deliver(result media.Result, f *cropFlags) (string, error) {
	switch r := result.(type) {
	case media.CroppedImage:
		if r.Image == nil {
			return "", errors.New("crop produced an empty image")
		}
		out := outputPath(f, ".jpg")
		file, err := os.Create(out)
		if err != nil {
			return "", fmt.Errorf("create output: %w", err)
		}
		if err := export.EncodeImage(file, r.Image, out); err != nil {
			file.Close()
			return "", err
		}
		return out, file.Close()
	case media.CroppedVideo:
		out := outputPath(f, ".mov")
		if err := moveFile(r.Path, out); err != nil {
			_ = os.Remove(r.Path)
			return "", err
		}
		return out, nil
	case media.Passthrough:
		switch orig := r.Original.(type) {
		case media.Image:
			out := outputPath(f, filepath.Ext(f.input))
			return out, os.WriteFile(out, orig.Data, 0o644)
		case media.Video:
			out := outputPath(f, filepath.Ext(orig.Path))
			return out, moveFile(orig.Path, out)
		}
		return "", fmt.Errorf("unexpected passthrough media %T", r.Original)
	case media.Failure:
		return "", r.Err
	default:
		return "", fmt.Errorf("unexpected result %T", result)
	}
}

func outputPath(f *cropFlags, ext string) string {
	if f.output != "" {
		return f.output
	}
	return filepath.Join(filepath.Dir(f.input), filename.Derived(f.input, "cropped", ext))
}

// moveFile renames src to dst, copying across filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

func writeManifest(path string, mf manifest) error {
	data, err := yaml.Marshal(mf)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// progressLogger logs export progress in 10% steps.
type progressLogger struct {
	logger *slog.Logger
	step   int
}

func (p *progressLogger) OnItemSelected(media.Result) {}

func (p *progressLogger) OnProgress(progress float64) {
	step := int(progress * 10)
	if step <= p.step {
		return
	}
	p.step = step
	p.logger.Info("Export progress", "percent", step*10)
}
