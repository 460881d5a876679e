package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/mediacrop/internal/export"
	"thirdcoast.systems/mediacrop/internal/logging"
	"thirdcoast.systems/mediacrop/internal/scratch"
	"thirdcoast.systems/mediacrop/internal/session"
	"thirdcoast.systems/mediacrop/pkg/ffmpeg"
	"thirdcoast.systems/mediacrop/pkg/media"
)

type landscapeProber struct{}

func (landscapeProber) Probe(context.Context, string) (*ffmpeg.ProbeResult, error) {
	return &ffmpeg.ProbeResult{Width: 1280, Height: 720, VideoStreams: 1}, nil
}

func (landscapeProber) Encoders(context.Context) (ffmpeg.EncoderSet, error) {
	return ffmpeg.NewEncoderSet(), nil
}

func (landscapeProber) Start(context.Context, *ffmpeg.Command, chan<- ffmpeg.Progress) (export.Process, error) {
	panic("no export expected")
}

func newTestHub(t *testing.T, opts session.Options) (*Hub, *scratch.Dir) {
	t.Helper()
	dir, err := scratch.New(afero.NewMemMapFs(), "/scratch", logging.Discard())
	require.NoError(t, err)
	engine := export.NewEngine(landscapeProber{}, dir, logging.Discard())
	hub := NewHub(func() *session.Session {
		return session.New(engine, dir, nil, opts, logging.Discard())
	}, dir.Fs(), logging.Discard())
	t.Cleanup(hub.CloseAll)
	return hub, dir
}

func TestHubCreateGetRemove(t *testing.T) {
	hub, _ := newTestHub(t, session.DefaultOptions())

	s, ok := hub.Create("clip.mov")
	require.True(t, ok)
	got, ok := hub.Get(s.ID())
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, hub.Len())
	assert.Equal(t, "clip.mov", hub.Name(s.ID()))

	assert.True(t, hub.Remove(s.ID()))
	assert.False(t, hub.Remove(s.ID()))
	_, ok = hub.Get(s.ID())
	assert.False(t, ok)

	st, err := s.State()
	assert.ErrorIs(t, err, session.ErrClosed)
	assert.Equal(t, session.StateIdle, st)
}

func TestHubLimit(t *testing.T) {
	hub, _ := newTestHub(t, session.DefaultOptions())
	for i := 0; i < MaxSessions; i++ {
		_, ok := hub.Create("clip.mov")
		require.True(t, ok)
	}
	_, ok := hub.Create("clip.mov")
	assert.False(t, ok)
}

func TestHubRemoveDeletesDeliveredFile(t *testing.T) {
	opts := session.DefaultOptions()
	opts.CropWindow.PortraitOnly = true
	hub, dir := newTestHub(t, opts)

	f, err := dir.Create(".mov")
	require.NoError(t, err)
	path := f.Name()
	require.NoError(t, f.Close())

	s, ok := hub.Create("clip.mov")
	require.True(t, ok)
	require.NoError(t, s.Select(context.Background(), media.Video{Path: path, Subtype: "public.movie"}))
	require.IsType(t, media.Passthrough{}, s.Result())
	assert.False(t, dir.Owns(path), "a passthrough original belongs to the caller")

	hub.Remove(s.ID())
	exists, err := afero.Exists(dir.Fs(), path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestHubReap(t *testing.T) {
	hub, _ := newTestHub(t, session.DefaultOptions())

	stale, _ := hub.Create("clip.mov")
	time.Sleep(30 * time.Millisecond)
	fresh, _ := hub.Create("clip.mov")

	assert.Equal(t, 0, hub.Reap(time.Hour))
	assert.Equal(t, 1, hub.Reap(15*time.Millisecond))

	_, ok := hub.Get(stale.ID())
	assert.False(t, ok)
	_, ok = hub.Get(fresh.ID())
	assert.True(t, ok)
}

func TestHubRunStopsWithContext(t *testing.T) {
	hub, _ := newTestHub(t, session.DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx, time.Minute)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
