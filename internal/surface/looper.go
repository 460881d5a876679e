package surface

import (
	"context"
	"time"
)

// Looper is the playback clock of a looping video. It runs one goroutine
// until Close.
type Looper struct {
	duration time.Duration
	cmds     chan func(*looperState)
	cancel   context.CancelFunc
	done     chan struct{}
}

type looperState struct {
	playing bool
	base    time.Duration // position when playback last started or paused
	since   time.Time     // wall time playback last started
	now     func() time.Time
}

func (s *looperState) position(duration time.Duration) time.Duration {
	pos := s.base
	if s.playing {
		pos += s.now().Sub(s.since)
	}
	if duration <= 0 {
		return 0
	}
	return pos % duration
}

// NewLooper starts a clock for a clip of the given duration, playing.
func NewLooper(duration time.Duration) *Looper {
	return newLooper(duration, time.Now)
}

func newLooper(duration time.Duration, now func() time.Time) *Looper {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Looper{
		duration: duration,
		cmds:     make(chan func(*looperState)),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	st := &looperState{playing: true, since: now(), now: now}
	go l.loop(ctx, st)
	return l
}

func (l *Looper) loop(ctx context.Context, st *looperState) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.cmds:
			fn(st)
		}
	}
}

// do runs fn on the clock goroutine; it returns false after Close.
func (l *Looper) do(fn func(*looperState)) bool {
	ran := make(chan struct{})
	select {
	case l.cmds <- func(st *looperState) { fn(st); close(ran) }:
		<-ran
		return true
	case <-l.done:
		return false
	}
}

// Play resumes playback.
func (l *Looper) Play() {
	l.do(func(st *looperState) {
		if !st.playing {
			st.playing = true
			st.since = st.now()
		}
	})
}

// Pause freezes the position.
func (l *Looper) Pause() {
	l.do(func(st *looperState) {
		if st.playing {
			st.base = st.position(l.duration)
			st.playing = false
		}
	})
}

// Playing reports whether the clock is running.
func (l *Looper) Playing() bool {
	var playing bool
	l.do(func(st *looperState) { playing = st.playing })
	return playing
}

// Position returns the current position within the clip.
func (l *Looper) Position() time.Duration {
	var pos time.Duration
	l.do(func(st *looperState) { pos = st.position(l.duration) })
	return pos
}

// Close stops the clock goroutine and waits for it.
func (l *Looper) Close() {
	l.cancel()
	<-l.done
}

// Done is closed once the clock goroutine has exited.
func (l *Looper) Done() <-chan struct{} { return l.done }
