package cli

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/menta2k/overlay-editor/internal/config"
	"github.com/menta2k/overlay-editor/internal/server"
	"github.com/menta2k/overlay-editor/internal/session"
	"github.com/menta2k/overlay-editor/pkg/detection"
	"github.com/menta2k/overlay-editor/pkg/processing"
)

const sweepInterval = time.Minute

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		port        string
		printRoutes bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the editor API",
		Long: `Starts the overlay editor API.

Clients upload a photo to create a session, then drag and zoom the overlay over
HTTP or the session WebSocket and download the result as 67ified.png. The face
detector loads in the background; until it is ready new sessions start in
manual placement mode.`,
		Example: `  # Start server on the configured port (default 3000)
  overlay-editor serve

  # Start server on custom port with the Ollama detector
  DETECTOR_BACKEND=ollama overlay-editor serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			if printRoutes {
				cfg.Server.PrintRoutes = true
			}

			processor := processing.NewProcessor()
			overlay, err := processor.LoadOverlay(cfg.Output.OverlayPath)
			if err != nil {
				return err
			}

			store := session.NewStore(cfg.Server.SessionTTL, cfg.Server.MaxSessions)
			srv, err := server.NewServer(
				server.WithFiber(server.NewFiber(cfg.Server, log)),
				server.WithLogger(log),
				server.WithStore(store),
				server.WithProcessor(processor),
				server.WithOverlay(overlay),
				server.WithConfig(cfg),
				server.WithMiddleware(),
			)
			if err != nil {
				return err
			}
			srv.RegisterHandler()

			ctx := cmd.Context()
			go store.Run(ctx, sweepInterval, func(removed int) {
				log.WithFields(logrus.Fields{"removed": removed, "active": store.Len()}).Info("Expired sessions removed")
			})
			go srv.SweepClients(ctx, sweepInterval)
			go loadDetector(ctx, cfg, processor, srv, log)

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				if err := srv.Run(":" + cfg.Server.Port); err != nil {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-ctx.Done():
				log.Info("Shutting down server...")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.WithError(err).Error("Server shutdown failed")
					return err
				}
				log.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (overrides config)")
	cmd.Flags().BoolVar(&printRoutes, "print-routes", false, "Print registered routes on startup")

	return cmd
}

// loadDetector builds the face detector and hands it to the server once ready
func loadDetector(ctx context.Context, cfg *config.Config, processor *processing.Processor, srv *server.Server, log *logrus.Logger) {
	start := time.Now()
	fields := logrus.Fields{"backend": cfg.Detector.Backend}

	det, err := detection.New(ctx, cfg.DetectionConfig(), processor)
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Face detector unavailable, sessions use manual placement")
		return
	}

	srv.SetDetector(det)
	fields["duration_ms"] = time.Since(start).Milliseconds()
	log.WithFields(fields).Info("Face detector ready")
}
