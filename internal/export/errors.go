package export

import (
	"errors"
	"fmt"
)

var (
	// ErrNoVideoTrack means the source has no usable video stream.
	ErrNoVideoTrack = errors.New("export: source has no video track")
	// ErrCodecUnsupported means the requested preset is unknown or the
	// ffmpeg build lacks its encoder.
	ErrCodecUnsupported = errors.New("export: codec unsupported")
	// ErrCancelled is the terminal error of a cancelled job.
	ErrCancelled = errors.New("export: cancelled")
)

// TranscodeError wraps a failure of the transcode itself, including output
// validation.
type TranscodeError struct {
	Err error
}

func (e *TranscodeError) Error() string {
	return fmt.Sprintf("export: transcode failed: %v", e.Err)
}

func (e *TranscodeError) Unwrap() error { return e.Err }
