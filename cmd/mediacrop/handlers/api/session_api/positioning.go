package session_api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/starfederation/datastar-go/datastar"

	"thirdcoast.systems/mediacrop/cmd/mediacrop/handlers/common"
	"thirdcoast.systems/mediacrop/cmd/mediacrop/internal/sessions"
	"thirdcoast.systems/mediacrop/pkg/geometry"
)

type layoutSignals struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// HandleLayout sets the on-screen crop window of a session.
func HandleLayout(hub *sessions.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := common.RequireSession(c, hub, "id")
		if err != nil {
			return err
		}

		signals := &layoutSignals{}
		if err := datastar.ReadSignals(c.Request(), signals); err != nil {
			return common.ErrBadRequest("invalid signals")
		}
		if err := validate.Struct(signals); err != nil {
			return common.ErrBadRequest(err.Error())
		}

		frame := geometry.Rect{X: signals.X, Y: signals.Y, W: signals.Width, H: signals.Height}
		if err := s.Layout(frame); err != nil {
			return sessionError(err)
		}
		snap, err := s.Status()
		if err != nil {
			return sessionError(err)
		}
		return c.JSON(http.StatusOK, snap)
	}
}

type viewportSignals struct {
	Zoom    float64 `json:"zoom" validate:"gte=1"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
}

// HandleViewport applies a zoom and offset. The response carries the
// clamped viewport and the crop it maps to.
func HandleViewport(hub *sessions.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		s, err := common.RequireSession(c, hub, "id")
		if err != nil {
			return err
		}

		signals := &viewportSignals{}
		if err := datastar.ReadSignals(c.Request(), signals); err != nil {
			return common.ErrBadRequest("invalid signals")
		}
		if err := validate.Struct(signals); err != nil {
			return common.ErrBadRequest(err.Error())
		}

		v := geometry.Viewport{Zoom: signals.Zoom, Offset: geometry.Point{X: signals.OffsetX, Y: signals.OffsetY}}
		if _, err := s.SetViewport(v); err != nil {
			return sessionError(err)
		}
		snap, err := s.Status()
		if err != nil {
			return sessionError(err)
		}
		return c.JSON(http.StatusOK, snap)
	}
}
