package server

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/overlay-editor/internal/config"
	"github.com/menta2k/overlay-editor/internal/middleware"
	"github.com/menta2k/overlay-editor/internal/response"
	"github.com/menta2k/overlay-editor/internal/session"
	"github.com/menta2k/overlay-editor/internal/utils"
	"github.com/menta2k/overlay-editor/pkg/analyzer"
	"github.com/menta2k/overlay-editor/pkg/detection"
	"github.com/menta2k/overlay-editor/pkg/placement"
	"github.com/menta2k/overlay-editor/pkg/processing"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	log        *logrus.Logger
	middleware middleware.Middleware
	validator  *validator.Validate
	store      *session.Store
	processor  *processing.Processor
	analyzer   *analyzer.ImageAnalyzer
	overlay    image.Image
	placement  placement.Options
	settings   config.ServerConfig
	exportName string
	detTimeout time.Duration
	handlers   []handler

	detMu    sync.RWMutex
	detector detection.FaceDetector
}

type handler interface {
	Start(srv fiber.Router)
}

// NewFiber builds the fiber app with the json-iterator codec
func NewFiber(cfg config.ServerConfig, logger *logrus.Logger) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:               "Overlay Editor",
			BodyLimit:             cfg.BodyLimitMB * 1024 * 1024,
			DisableKeepalive:      false,
			StrictRouting:         true,
			CaseSensitive:         true,
			EnablePrintRoutes:     cfg.PrintRoutes,
			DisableStartupMessage: true,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
			ErrorHandler:          response.FiberErrorHandler(logger),
		})

	return app
}

// NewValidator returns the request validator
func NewValidator() *validator.Validate {
	return validator.New()
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{
		processor:  processing.NewProcessor(),
		analyzer:   analyzer.New(),
		placement:  placement.DefaultOptions(),
		exportName: "67ified.png",
		detTimeout: 2 * time.Minute,
	}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if server.overlay == nil {
		return nil, fmt.Errorf("overlay image is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, 50, 100)
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithStore(store *session.Store) ServerOption {
	return func(s *Server) error {
		s.store = store
		return nil
	}
}

func WithProcessor(processor *processing.Processor) ServerOption {
	return func(s *Server) error {
		s.processor = processor
		return nil
	}
}

func WithAnalyzer(a *analyzer.ImageAnalyzer) ServerOption {
	return func(s *Server) error {
		s.analyzer = a
		return nil
	}
}

func WithOverlay(overlay image.Image) ServerOption {
	return func(s *Server) error {
		if overlay == nil || overlay.Bounds().Empty() {
			return fmt.Errorf("overlay image is empty")
		}
		s.overlay = overlay
		return nil
	}
}

// WithDetector sets the face detector. Passing nil leaves sessions in manual mode.
func WithDetector(d detection.FaceDetector) ServerOption {
	return func(s *Server) error {
		s.SetDetector(d)
		return nil
	}
}

// WithConfig applies the server, placement, output and detector timeout settings
func WithConfig(cfg *config.Config) ServerOption {
	return func(s *Server) error {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		s.settings = cfg.Server
		s.placement = cfg.Placement
		s.exportName = utils.ExportName(cfg.Output.Filename)
		if cfg.Detector.Timeout > 0 {
			s.detTimeout = cfg.Detector.Timeout
		}
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		reqRate, burst := s.settings.RequestRate, s.settings.RequestBurst
		if reqRate <= 0 || burst <= 0 {
			reqRate, burst = 50, 100
		}
		s.middleware = middleware.New(s.log, reqRate, burst)
		return nil
	}
}

// SetDetector swaps the detector used by new auto-placements
func (s *Server) SetDetector(d detection.FaceDetector) {
	s.detMu.Lock()
	defer s.detMu.Unlock()
	s.detector = d
}

func (s *Server) currentDetector() detection.FaceDetector {
	s.detMu.RLock()
	defer s.detMu.RUnlock()
	return s.detector
}

func (s *Server) RegisterHandler() {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	s.setupHealthCheck()
	s.handlers = append(s.handlers, newSessionHandler(s))

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

// App returns the fiber app, for tests
func (s *Server) App() *fiber.App {
	return s.engine
}

// Run serves on addr until the listener fails or Shutdown is called
func (s *Server) Run(addr string) error {
	s.log.WithFields(logrus.Fields{"addr": addr}).Info("Overlay editor API listening")
	return s.engine.Listen(addr)
}

// SweepClients drops idle per-client rate limits every interval until ctx is done
func (s *Server) SweepClients(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := s.middleware.SweepClients(now); removed > 0 {
				s.log.WithFields(logrus.Fields{"removed": removed}).Debug("Idle client rate limits removed")
			}
		}
	}
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.engine.ShutdownWithContext(ctx)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":        "Server is Healthy!",
			"sessions":       s.store.Len(),
			"detector_ready": s.currentDetector() != nil,
		})
	})
}
