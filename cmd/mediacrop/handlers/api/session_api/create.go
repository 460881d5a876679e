package session_api

import (
	"log/slog"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"

	"thirdcoast.systems/mediacrop/cmd/mediacrop/handlers/common"
	"thirdcoast.systems/mediacrop/cmd/mediacrop/internal/sessions"
	"thirdcoast.systems/mediacrop/internal/picker"
)

// HandleCreate stages an uploaded file (multipart field "media", optional
// "subtype") and opens a session on it. Media that needs no cropping is
// delivered right away; the snapshot then already carries the result.
func HandleCreate(hub *sessions.Hub, p *picker.Picker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		fh, err := c.FormFile("media")
		if err != nil {
			return common.ErrBadRequest("missing media upload")
		}
		if p.MaxBytes > 0 && fh.Size > int64(p.MaxBytes) {
			return common.ErrTooLarge("media exceeds " + humanize.Bytes(p.MaxBytes))
		}

		src, err := fh.Open()
		if err != nil {
			return common.ErrBadRequest("unreadable upload")
		}
		defer src.Close()

		s, ok := hub.Create(fh.Filename)
		if !ok {
			return common.ErrUnavailable("too many open sessions")
		}

		m, err := p.Stage(ctx, src, fh.Filename, c.FormValue("subtype"))
		if err != nil {
			hub.Remove(s.ID())
			return sessionError(err)
		}
		if err := s.Select(ctx, m); err != nil {
			hub.Remove(s.ID())
			return sessionError(err)
		}

		snap, err := s.Status()
		if err != nil {
			return sessionError(err)
		}
		slog.Info("Session created", "session_id", s.ID(), "kind", snap.Kind, "state", snap.State, "upload", humanize.Bytes(uint64(fh.Size)))
		return c.JSON(http.StatusCreated, snap)
	}
}
