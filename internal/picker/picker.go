// Package picker stages picked files for a crop session. Stills are read
// into memory; videos are copied into an owned scratch file so the session
// can delete them when it is done.
package picker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"thirdcoast.systems/mediacrop/internal/scratch"
	"thirdcoast.systems/mediacrop/pkg/media"
)

// sniffLen is how much of the stream is buffered for content detection.
const sniffLen = 3072

var (
	// ErrUnsupportedType is returned when the content is neither an image
	// nor a video.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrTooLarge is returned when the input exceeds MaxBytes.
	ErrTooLarge = errors.New("media too large")
)

// Picker stages media into a scratch directory.
type Picker struct {
	Dir *scratch.Dir
	// MaxBytes limits staged media; 0 means unlimited.
	MaxBytes uint64
	Logger   *slog.Logger
}

// Stage reads r and returns the picked media. declared is the subtype
// reported by the source (a UTI or MIME type); when empty the content is
// sniffed. name is only used for its extension.
func (p *Picker) Stage(ctx context.Context, r io.Reader, name, declared string) (media.Media, error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read media: %w", err)
	}

	detected := mimetype.Detect(head)
	subtype := declared
	if subtype == "" {
		subtype = detected.String()
	}
	kind, ok := media.Classify(subtype)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, subtype)
	}

	src := io.Reader(&ctxReader{ctx: ctx, r: br})
	if p.MaxBytes > 0 {
		src = io.LimitReader(src, int64(p.MaxBytes)+1)
	}

	switch kind {
	case media.KindImage:
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		if p.MaxBytes > 0 && uint64(len(data)) > p.MaxBytes {
			return nil, fmt.Errorf("%w: limit %s", ErrTooLarge, humanize.Bytes(p.MaxBytes))
		}
		logger.Info("Staged image", "subtype", subtype, "size", humanize.Bytes(uint64(len(data))))
		return media.Image{Data: data, Subtype: subtype}, nil

	default:
		path, n, err := p.copyVideo(src, videoExt(name, detected))
		if err != nil {
			return nil, err
		}
		logger.Info("Staged video", "subtype", subtype, "path", path, "size", humanize.Bytes(uint64(n)))
		return media.Video{Path: path, Subtype: subtype}, nil
	}
}

func (p *Picker) copyVideo(src io.Reader, ext string) (string, int64, error) {
	f, err := p.Dir.Create(ext)
	if err != nil {
		return "", 0, err
	}
	path := f.Name()

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && p.MaxBytes > 0 && uint64(n) > p.MaxBytes {
		err = fmt.Errorf("%w: limit %s", ErrTooLarge, humanize.Bytes(p.MaxBytes))
	}
	if err != nil {
		p.Dir.Remove(path)
		return "", 0, fmt.Errorf("stage video: %w", err)
	}
	return path, n, nil
}

// FromFile stages a file from disk.
func (p *Picker) FromFile(ctx context.Context, path, declared string) (media.Media, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}
	defer f.Close()
	return p.Stage(ctx, f, filepath.Base(path), declared)
}

func videoExt(name string, detected *mimetype.MIME) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		return ext
	}
	if ext := detected.Extension(); ext != "" {
		return ext
	}
	return ".mov"
}

// ctxReader stops a long copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(b []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}
