package session_api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/mediacrop/cmd/mediacrop/handlers/common"
	"thirdcoast.systems/mediacrop/cmd/mediacrop/internal/sessions"
	"thirdcoast.systems/mediacrop/internal/session"
)

// HandleConfirm crops under the current viewport. Stills are done when this
// returns; videos answer 202 and export in the background.
func HandleConfirm(hub *sessions.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := common.RequireSession(c, hub, "id")
		if err != nil {
			return err
		}
		if err := s.Confirm(); err != nil {
			return sessionError(err)
		}
		snap, err := s.Status()
		if err != nil {
			return sessionError(err)
		}
		status := http.StatusOK
		if snap.State == session.StateExporting.String() {
			status = http.StatusAccepted
		}
		return c.JSON(status, snap)
	}
}

// HandleCancel cancels a session. A running export is stopped; the state
// turns cancelled once it has wound down.
func HandleCancel(hub *sessions.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := common.RequireSession(c, hub, "id")
		if err != nil {
			return err
		}
		if err := s.Cancel(); err != nil {
			return sessionError(err)
		}
		slog.Info("Session cancel requested", "session_id", s.ID())
		snap, err := s.Status()
		if err != nil {
			return sessionError(err)
		}
		return c.JSON(http.StatusOK, snap)
	}
}

// HandleStatus returns a session snapshot.
func HandleStatus(hub *sessions.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := common.RequireSession(c, hub, "id")
		if err != nil {
			return err
		}
		snap, err := s.Status()
		if err != nil {
			return sessionError(err)
		}
		return c.JSON(http.StatusOK, snap)
	}
}

// HandleDelete closes a session and deletes its files.
func HandleDelete(hub *sessions.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := common.RequireSession(c, hub, "id")
		if err != nil {
			return err
		}
		hub.Remove(s.ID())
		return c.NoContent(http.StatusNoContent)
	}
}
