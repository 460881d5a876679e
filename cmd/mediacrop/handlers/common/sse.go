package common

import (
	"encoding/json"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/starfederation/datastar-go/datastar"
)

// SetSSEHeaders adds X-Accel-Buffering so reverse proxies stream events
// through. datastar.NewSSE sets the remaining SSE headers itself.
func SetSSEHeaders(c echo.Context) {
	c.Response().Header().Set("X-Accel-Buffering", "no")
}

// PatchSignals marshals v and sends it as a datastar signal patch.
func PatchSignals(sse *datastar.ServerSentEventGenerator, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}
	return sse.PatchSignals(data)
}
