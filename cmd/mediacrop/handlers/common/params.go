package common

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"thirdcoast.systems/mediacrop/cmd/mediacrop/internal/sessions"
	"thirdcoast.systems/mediacrop/internal/session"
)

// RequireSession resolves the session named by a UUID route parameter.
// Returns 400 for a malformed ID and 404 for an unknown one.
func RequireSession(c echo.Context, hub *sessions.Hub, param string) (*session.Session, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return nil, ErrBadRequest("invalid " + param)
	}
	s, ok := hub.Get(id.String())
	if !ok {
		return nil, ErrNotFound("session not found")
	}
	return s, nil
}
