package detection

import (
	"context"
	"fmt"

	"github.com/menta2k/overlay-editor/pkg/client"
	"github.com/menta2k/overlay-editor/pkg/llamacpp"
	"github.com/menta2k/overlay-editor/pkg/ollama"
	"github.com/menta2k/overlay-editor/pkg/processing"
)

// Supported detector backends
const (
	BackendCascade  = "cascade"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Config selects and configures a detector backend
type Config struct {
	Backend      string
	CascadeURL   string
	CascadeCache string
	Cascade      CascadeConfig
	ServerURL    string
	Vision       VisionOptions
}

// New builds the configured detector. For the cascade backend this downloads the
// model weights, which is the startup model load.
func New(ctx context.Context, cfg Config, processor *processing.Processor) (FaceDetector, error) {
	switch cfg.Backend {
	case BackendCascade, "":
		url := cfg.CascadeURL
		if url == "" {
			url = DefaultCascadeURL
		}
		weights, err := LoadCascade(ctx, processor, url, cfg.CascadeCache)
		if err != nil {
			return nil, err
		}
		d, err := NewCascadeDetector(weights, cfg.Cascade)
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendOllama, BackendLlamaCpp:
		vc, err := newVisionClient(cfg.Backend, cfg.ServerURL)
		if err != nil {
			return nil, err
		}
		return NewVisionDetector(vc, processor, cfg.Vision), nil
	default:
		return nil, fmt.Errorf("unknown detector backend: %s (use 'cascade', 'ollama' or 'llamacpp')", cfg.Backend)
	}
}

func newVisionClient(backend, url string) (client.VisionClient, error) {
	switch backend {
	case BackendOllama:
		if url == "" {
			url = "http://localhost:11434/api/chat"
		}
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	default:
		if url == "" {
			url = "http://localhost:8080"
		}
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	}
}
