// package session_api provides the crop session API handlers.
package session_api

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"thirdcoast.systems/mediacrop/cmd/mediacrop/handlers/common"
	"thirdcoast.systems/mediacrop/internal/picker"
	"thirdcoast.systems/mediacrop/internal/session"
)

var validate = validator.New()

// sessionError maps session errors onto HTTP errors.
func sessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrExportInFlight):
		return common.ErrConflict("export already in progress")
	case errors.Is(err, session.ErrInvalidState):
		return common.ErrConflict("not allowed in the current session state")
	case errors.Is(err, session.ErrClosed):
		return common.ErrNotFound("session closed")
	case errors.Is(err, session.ErrUnsupportedMedia), errors.Is(err, picker.ErrUnsupportedType):
		return common.ErrUnsupportedMedia(err.Error())
	case errors.Is(err, picker.ErrTooLarge):
		return common.ErrTooLarge(err.Error())
	default:
		slog.Error("session request failed", "error", err)
		return common.ErrInternal("session request failed")
	}
}
