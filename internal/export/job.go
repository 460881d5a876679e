package export

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
)

// Job is an asynchronous video export. It resolves exactly once: with the
// output path on success, or with an error after the output has been
// removed.
type Job struct {
	id     string
	output string

	progress        atomic.Uint64 // math.Float64bits of a value in [0, 1]
	cancel          context.CancelFunc
	cancelRequested atomic.Bool

	once sync.Once
	done chan struct{}
	err  error
}

func newJob(id, output string, cancel context.CancelFunc) *Job {
	return &Job{
		id:     id,
		output: output,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID identifies the job in logs.
func (j *Job) ID() string { return j.id }

// Output is where the transcoded file is written. It exists (empty) from the
// start and is gone again after any non-success.
func (j *Job) Output() string { return j.output }

// Progress returns how far the export is, in [0, 1]. It never decreases.
func (j *Job) Progress() float64 {
	return math.Float64frombits(j.progress.Load())
}

func (j *Job) setProgress(p float64) {
	if math.IsNaN(p) {
		return
	}
	p = math.Max(0, math.Min(1, p))
	for {
		old := j.progress.Load()
		if p <= math.Float64frombits(old) {
			return
		}
		if j.progress.CompareAndSwap(old, math.Float64bits(p)) {
			return
		}
	}
}

// Cancel requests cancellation. It is safe to call any number of times and
// after the job has finished.
func (j *Job) Cancel() {
	j.cancelRequested.Store(true)
	j.cancel()
}

// Cancelled reports whether Cancel was called.
func (j *Job) Cancelled() bool { return j.cancelRequested.Load() }

// Done is closed once the job has resolved.
func (j *Job) Done() <-chan struct{} { return j.done }

// Result blocks until the job resolves and returns the output path or the
// terminal error (ErrCancelled, ErrNoVideoTrack, ErrCodecUnsupported or a
// *TranscodeError).
func (j *Job) Result() (string, error) {
	<-j.done
	if j.err != nil {
		return "", j.err
	}
	return j.output, nil
}

// Wait is Result bounded by ctx.
func (j *Job) Wait(ctx context.Context) (string, error) {
	select {
	case <-j.done:
		return j.Result()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// resolve records the terminal state; later calls are ignored.
func (j *Job) resolve(err error) bool {
	resolved := false
	j.once.Do(func() {
		if err == nil {
			j.setProgress(1)
		}
		j.err = err
		j.cancel()
		close(j.done)
		resolved = true
	})
	return resolved
}
