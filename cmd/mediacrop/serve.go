package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"thirdcoast.systems/mediacrop/cmd/mediacrop/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the crop session HTTP API",
		Long: `Starts an HTTP API that drives crop sessions.

Upload media to POST /api/sessions, lay out the crop window, adjust the
viewport, confirm, and follow export progress on the datastar SSE stream at
GET /api/sessions/:id/progress. Idle sessions are closed after
SESSION_IDLE_TIMEOUT and their files deleted.`,
		Example: `  # Start server on default port 8080
  mediacrop serve

  # Portrait 4:5 crops on a custom port
  mediacrop serve --port 3000 --ratio 1.25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := a.logger

			engine, dir, err := a.newEngine()
			if err != nil {
				return err
			}
			defer dir.Cleanup()

			opts, err := a.sessionOptions()
			if err != nil {
				return err
			}

			e, err := web.NewWebserver(ctx, a.cfg, engine, dir, opts, logger)
			if err != nil {
				return err
			}
			defer e.CloseSessions()

			addr := ":" + strconv.Itoa(a.cfg.WebServerPort)

			go func() {
				<-ctx.Done()
				logger.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = e.Shutdown(shutdownCtx)
			}()

			logger.Info("Listening", "addr", addr, "temp_dir", dir.Root())
			if err := e.Start(addr); err != nil {
				// Echo returns an error on Shutdown; treat it as normal if context is done.
				if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
					return nil
				}
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	cmd.Flags().String("max-upload", "512MB", "Largest accepted upload")
	cmd.Flags().Duration("idle-timeout", 30*time.Minute, "Close sessions idle this long (0 disables)")
	cmd.Flags().StringSlice("accepted-kinds", []string{"image", "video"}, "Media kinds to accept")
	cmd.Flags().Float64("ratio", 1, "Crop window aspect ratio (height/width); 0 passes media through")
	cmd.Flags().Bool("portrait-only", false, "Only crop portrait media; landscape and square pass through")
	cmd.Flags().Bool("oval", false, "Oval crop mask (cosmetic)")
	cmd.Flags().String("preset", "", "Video export preset (see 'mediacrop presets')")
	cmd.Flags().Float64("max-zoom", 5, "Maximum zoom factor")
	cmd.Flags().Bool("passthrough", false, "Re-export videos that need no cropping instead of returning the original")

	return cmd
}
