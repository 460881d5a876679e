package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"thirdcoast.systems/mediacrop/cmd/mediacrop/handlers/api/session_api"
	"thirdcoast.systems/mediacrop/cmd/mediacrop/internal/sessions"
	"thirdcoast.systems/mediacrop/internal/config"
	"thirdcoast.systems/mediacrop/internal/export"
	"thirdcoast.systems/mediacrop/internal/logging"
	"thirdcoast.systems/mediacrop/internal/picker"
	"thirdcoast.systems/mediacrop/internal/scratch"
	"thirdcoast.systems/mediacrop/internal/session"
)

// progressPoll is how often the progress stream samples a session.
const progressPoll = 250 * time.Millisecond

type Webserver struct {
	*echo.Echo
	hub         *sessions.Hub
	picker      *picker.Picker
	dir         *scratch.Dir
	idleTimeout time.Duration
	bodyLimit   uint64
	logger      *slog.Logger
}

// NewWebserver wires the crop session API onto a new echo instance.
func NewWebserver(ctx context.Context, cfg *config.Config, engine *export.Engine, dir *scratch.Dir, opts session.Options, logger *slog.Logger) (*Webserver, error) {
	logger = logging.OrDefault(logger)
	e := echo.New()

	newSession := func() *session.Session {
		return session.New(engine, dir, nil, opts, logger)
	}

	webserver := &Webserver{
		Echo:        e,
		hub:         sessions.NewHub(newSession, dir.Fs(), logging.WithComponent(logger, "hub")),
		picker:      &picker.Picker{Dir: dir, MaxBytes: cfg.MaxUploadBytes, Logger: logging.WithComponent(logger, "picker")},
		dir:         dir,
		idleTimeout: cfg.SessionIdleTimeout,
		bodyLimit:   cfg.MaxUploadBytes,
		logger:      logger,
	}

	if err := webserver.registerRoutes(); err != nil {
		return nil, err
	}

	if err := webserver.setupMiddleware(); err != nil {
		return nil, err
	}

	go webserver.hub.Run(ctx, webserver.idleTimeout)

	return webserver, nil
}

// Hub exposes the open sessions.
func (s *Webserver) Hub() *sessions.Hub { return s.hub }

// CloseSessions closes every open session and deletes its files.
func (s *Webserver) CloseSessions() {
	s.hub.CloseAll()
}

func (s *Webserver) registerRoutes() error {
	s.GET("/healthcheck", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	api := s.Group("/api/sessions")
	api.POST("", session_api.HandleCreate(s.hub, s.picker))
	api.GET("/:id", session_api.HandleStatus(s.hub))
	api.DELETE("/:id", session_api.HandleDelete(s.hub))
	api.POST("/:id/layout", session_api.HandleLayout(s.hub))
	api.POST("/:id/viewport", session_api.HandleViewport(s.hub))
	api.POST("/:id/confirm", session_api.HandleConfirm(s.hub))
	api.POST("/:id/cancel", session_api.HandleCancel(s.hub))
	api.GET("/:id/progress", session_api.HandleProgress(s.hub, progressPoll))
	api.GET("/:id/result", session_api.HandleResult(s.hub))
	api.GET("/:id/preview", session_api.HandlePreview(s.hub, s.dir))

	return nil
}

func (s *Webserver) setupMiddleware() error {
	s.HideBanner = true
	s.HidePort = true
	if s.bodyLimit > 0 {
		// Multipart framing on top of the media itself
		s.Use(middleware.BodyLimit(fmt.Sprintf("%dK", s.bodyLimit/1024+1024)))
	}
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Streams and already-compressed media
			return strings.HasSuffix(c.Path(), "/progress") ||
				strings.HasSuffix(c.Path(), "/result") ||
				strings.HasSuffix(c.Path(), "/preview")
		},
	}))
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthcheck"
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			s.logger.Info("request", fields...)
			return nil
		},
	}))

	return nil
}
