package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/menta2k/overlay-editor/pkg/detection"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
	if cfg.Output.Filename != "67ified.png" {
		t.Errorf("Expected export name 67ified.png, got %s", cfg.Output.Filename)
	}
	if cfg.Placement.WidthFactor != 1.5 || cfg.Placement.ForeheadShift != 0.35 {
		t.Errorf("Unexpected placement defaults: %+v", cfg.Placement)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Detector.Backend = detection.BackendOllama
	cfg.Server.SessionTTL = 10 * time.Minute
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile failed: %v", err)
	}

	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if loaded.Detector.Backend != detection.BackendOllama {
		t.Errorf("Expected backend ollama, got %s", loaded.Detector.Backend)
	}
	if loaded.Server.SessionTTL != 10*time.Minute {
		t.Errorf("Expected session ttl 10m, got %s", loaded.Server.SessionTTL)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "server:\n  port: \"8081\"\nplacement:\n  forehead_shift: 0.4\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Server.Port != "8081" {
		t.Errorf("Expected port 8081, got %s", cfg.Server.Port)
	}
	if cfg.Placement.ForeheadShift != 0.4 {
		t.Errorf("Expected forehead shift 0.4, got %f", cfg.Placement.ForeheadShift)
	}
	if cfg.Placement.WidthFactor != 1.5 {
		t.Errorf("Expected default width factor to survive, got %f", cfg.Placement.WidthFactor)
	}
}

func TestLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"detector": {"backend": "llamacpp", "model": "qwen2.5-vl"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if cfg.Detector.Backend != detection.BackendLlamaCpp || cfg.Detector.Model != "qwen2.5-vl" {
		t.Errorf("Unexpected detector config: %+v", cfg.Detector)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got %v", err)
	}
	if cfg.Server.Port != "3000" {
		t.Errorf("Expected default port, got %s", cfg.Server.Port)
	}

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected LoadFromFile to fail for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Detector.Backend = "opencv" }},
		{"forehead shift too low", func(c *Config) { c.Placement.ForeheadShift = 0.1 }},
		{"empty filename", func(c *Config) { c.Output.Filename = "" }},
		{"non-numeric port", func(c *Config) { c.Server.Port = "http" }},
		{"zero ttl", func(c *Config) { c.Server.SessionTTL = 0 }},
		{"bad iou", func(c *Config) { c.Detector.IoUThreshold = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Expected validation error for %s", tt.name)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DETECTOR_BACKEND", "ollama")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Detector.Backend != "ollama" {
		t.Errorf("Expected backend from env, got %s", cfg.Detector.Backend)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port from env, got %s", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level from env, got %s", cfg.Log.Level)
	}
}

func TestDetectionConfig(t *testing.T) {
	cfg := Default()
	cfg.Detector.MinFaceSize = 40
	cfg.Detector.Model = "llava"

	dc := cfg.DetectionConfig()
	if dc.Cascade.MinSize != 40 {
		t.Errorf("Expected cascade min size 40, got %d", dc.Cascade.MinSize)
	}
	if dc.Vision.Model != "llava" {
		t.Errorf("Expected vision model llava, got %s", dc.Vision.Model)
	}
	if dc.Cascade.ScaleFactor != detection.DefaultCascadeConfig().ScaleFactor {
		t.Error("Expected unset cascade fields to keep their defaults")
	}
}

func TestGetConfigPath(t *testing.T) {
	if filepath.Base(GetConfigPath()) != "config.yaml" {
		t.Errorf("Expected config.yaml, got %s", GetConfigPath())
	}
}
