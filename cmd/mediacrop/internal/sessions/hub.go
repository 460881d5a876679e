package sessions

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"thirdcoast.systems/mediacrop/internal/session"
	"thirdcoast.systems/mediacrop/pkg/media"
)

const (
	// MaxSessions limits concurrently open crop sessions.
	MaxSessions = 64
)

// Hub tracks the open crop sessions of the HTTP host. Files delivered to a
// session's caller belong to the hub and are deleted with the session.
type Hub struct {
	mu         sync.Mutex
	sessions   map[string]*session.Session
	names      map[string]string
	newSession func() *session.Session
	fs         afero.Fs
	logger     *slog.Logger
}

// NewHub creates a hub. newSession builds an idle session; fs is where
// delivered files live.
func NewHub(newSession func() *session.Session, fs afero.Fs, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		sessions:   make(map[string]*session.Session),
		names:      make(map[string]string),
		newSession: newSession,
		fs:         fs,
		logger:     logger,
	}
}

// Create opens a new session for media uploaded as name, or returns false
// when the hub is full.
func (h *Hub) Create(name string) (*session.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.sessions) >= MaxSessions {
		return nil, false
	}
	s := h.newSession()
	h.sessions[s.ID()] = s
	h.names[s.ID()] = name
	return s, true
}

// Name returns the upload name a session was created with.
func (h *Hub) Name(id string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.names[id]
}

// Get looks up a session by ID.
func (h *Hub) Get(id string) (*session.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Remove closes a session and deletes the file it delivered, if any.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	s, ok := h.sessions[id]
	delete(h.sessions, id)
	delete(h.names, id)
	h.mu.Unlock()
	if !ok {
		return false
	}
	h.close(s)
	return true
}

func (h *Hub) close(s *session.Session) {
	_ = s.Close()

	var path string
	switch r := s.Result().(type) {
	case media.CroppedVideo:
		path = r.Path
	case media.Passthrough:
		if v, ok := r.Original.(media.Video); ok {
			path = v.Path
		}
	}
	if path == "" {
		return
	}
	if err := h.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("failed to remove delivered file", "session_id", s.ID(), "path", path, "error", err)
	}
}

// Reap closes sessions idle for longer than idle and returns how many.
func (h *Hub) Reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	// Snapshot under lock, then close without holding it.
	h.mu.Lock()
	var stale []*session.Session
	for id, s := range h.sessions {
		if s.LastActive().Before(cutoff) {
			stale = append(stale, s)
			delete(h.sessions, id)
			delete(h.names, id)
		}
	}
	h.mu.Unlock()

	for _, s := range stale {
		h.logger.Info("Reaping idle session", "session_id", s.ID(), "last_active", s.LastActive())
		h.close(s)
	}
	return len(stale)
}

// Run reaps idle sessions until ctx is done. An idle timeout of 0 disables
// reaping.
func (h *Hub) Run(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		<-ctx.Done()
		return
	}
	interval := idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Reap(idle)
		}
	}
}

// CloseAll closes every session.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	all := make([]*session.Session, 0, len(h.sessions))
	for id, s := range h.sessions {
		all = append(all, s)
		delete(h.sessions, id)
		delete(h.names, id)
	}
	h.mu.Unlock()

	for _, s := range all {
		h.close(s)
	}
}
