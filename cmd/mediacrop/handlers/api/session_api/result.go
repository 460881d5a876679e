package session_api

import (
	"bytes"
	"errors"
	"net/http"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"thirdcoast.systems/mediacrop/cmd/mediacrop/handlers/common"
	"thirdcoast.systems/mediacrop/cmd/mediacrop/internal/sessions"
	"thirdcoast.systems/mediacrop/internal/export"
	"thirdcoast.systems/mediacrop/pkg/media"
	"thirdcoast.systems/mediacrop/pkg/utils/filename"
)

// HandleResult serves the delivered media. Cropped stills are encoded as
// JPEG, or PNG with ?format=png; videos are served as attachments.
func HandleResult(hub *sessions.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := common.RequireSession(c, hub, "id")
		if err != nil {
			return err
		}
		upload := hub.Name(s.ID())

		switch r := s.Result().(type) {
		case nil:
			return common.ErrConflict("result not ready")
		case media.CroppedImage:
			if r.Image == nil {
				return common.ErrUnprocessable("crop is empty")
			}
			name := "cropped.jpg"
			if c.QueryParam("format") == "png" {
				name = "cropped.png"
			}
			var buf bytes.Buffer
			if err := export.EncodeImage(&buf, r.Image, name); err != nil {
				return common.ErrInternal("failed to encode image")
			}
			return c.Blob(http.StatusOK, mimetype.Detect(buf.Bytes()).String(), buf.Bytes())
		case media.CroppedVideo:
			return c.Attachment(r.Path, filename.Derived(upload, "cropped", filepath.Ext(r.Path)))
		case media.Passthrough:
			switch orig := r.Original.(type) {
			case media.Image:
				return c.Blob(http.StatusOK, mimetype.Detect(orig.Data).String(), orig.Data)
			case media.Video:
				return c.Attachment(orig.Path, filename.Derived(upload, "original", filepath.Ext(orig.Path)))
			}
			return common.ErrInternal("unknown passthrough media")
		case media.Failure:
			if errors.Is(r.Err, export.ErrCancelled) {
				return echo.NewHTTPError(http.StatusGone, "session was cancelled")
			}
			return common.ErrUnprocessable(r.Err.Error())
		default:
			return common.ErrInternal("unknown result")
		}
	}
}
