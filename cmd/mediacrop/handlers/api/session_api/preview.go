package session_api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/mediacrop/cmd/mediacrop/handlers/common"
	"thirdcoast.systems/mediacrop/cmd/mediacrop/internal/sessions"
	"thirdcoast.systems/mediacrop/internal/scratch"
	"thirdcoast.systems/mediacrop/internal/session"
)

// previewWidth bounds the width of preview posters.
const previewWidth = 1280

// HandlePreview serves a JPEG poster of a video session at its current
// playback position.
func HandlePreview(hub *sessions.Hub, dir *scratch.Dir) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := common.RequireSession(c, hub, "id")
		if err != nil {
			return err
		}

		path, err := dir.CreateEmpty(".jpg")
		if err != nil {
			return common.ErrInternal("failed to allocate preview")
		}
		defer dir.Remove(path)

		if err := s.Poster(c.Request().Context(), path, previewWidth); err != nil {
			if errors.Is(err, session.ErrInvalidState) {
				return common.ErrConflict("preview is only available for a video being positioned")
			}
			return sessionError(err)
		}
		return c.File(path)
	}
}
