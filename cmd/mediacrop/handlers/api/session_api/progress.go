package session_api

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/starfederation/datastar-go/datastar"

	"thirdcoast.systems/mediacrop/cmd/mediacrop/handlers/common"
	"thirdcoast.systems/mediacrop/cmd/mediacrop/internal/sessions"
	"thirdcoast.systems/mediacrop/internal/session"
)

type progressSignals struct {
	State    string  `json:"state"`
	Progress float64 `json:"progress"`
	Result   string  `json:"result,omitempty"`
}

// HandleProgress streams the session state and export progress as datastar
// signal patches until the session reaches a terminal state.
func HandleProgress(hub *sessions.Hub, interval time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := common.RequireSession(c, hub, "id")
		if err != nil {
			return err
		}

		// Set up SSE
		common.SetSSEHeaders(c)

		sse := datastar.NewSSE(c.Response().Writer, c.Request())

		ctx := c.Request().Context()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// Add timeout to prevent zombie connections
		timeout := time.NewTimer(30 * time.Minute)
		defer timeout.Stop()

		var last progressSignals
		first := true
		for {
			snap, err := s.Status()
			if err != nil {
				// Closed underneath us
				return nil
			}
			cur := progressSignals{State: snap.State, Progress: snap.Progress, Result: snap.Result}
			if first || cur != last {
				first = false
				last = cur
				if err := common.PatchSignals(sse, cur); err != nil {
					slog.Error("failed to send SSE patch", "error", err, "session_id", s.ID())
					return err
				}
			}

			select {
			case <-s.Done():
				if !isTerminal(cur.State) {
					// Deliver the terminal snapshot on the next pass
					continue
				}
				slog.Info("Session finished, closing SSE connection", "session_id", s.ID(), "state", cur.State)
				return nil
			case <-ctx.Done():
				slog.Info("SSE connection closed by client", "session_id", s.ID())
				return nil
			case <-timeout.C:
				slog.Warn("SSE connection timeout", "session_id", s.ID())
				return nil
			case <-ticker.C:
			}
		}
	}
}

func isTerminal(state string) bool {
	for _, st := range []session.State{session.StateDelivered, session.StateCancelled, session.StateFailed} {
		if st.String() == state {
			return true
		}
	}
	return false
}
