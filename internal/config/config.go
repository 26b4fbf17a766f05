package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/overlay-editor/pkg/detection"
	"github.com/menta2k/overlay-editor/pkg/placement"
)

// Config holds the application configuration
type Config struct {
	Detector  DetectorConfig    `yaml:"detector" json:"detector"`
	Placement placement.Options `yaml:"placement" json:"placement"`
	Output    OutputConfig      `yaml:"output" json:"output"`
	Server    ServerConfig      `yaml:"server" json:"server"`
	Log       LogConfig         `yaml:"log" json:"log"`
}

// DetectorConfig holds configuration for face detection
type DetectorConfig struct {
	Backend       string        `yaml:"backend" json:"backend"`
	CascadeURL    string        `yaml:"cascade_url" json:"cascade_url"`
	CascadeCache  string        `yaml:"cascade_cache" json:"cascade_cache"`
	MinFaceSize   int           `yaml:"min_face_size" json:"min_face_size"`
	MinQuality    float64       `yaml:"min_quality" json:"min_quality"`
	IoUThreshold  float64       `yaml:"iou_threshold" json:"iou_threshold"`
	ServerURL     string        `yaml:"server_url" json:"server_url"`
	Model         string        `yaml:"model" json:"model"`
	MinConfidence float64       `yaml:"min_confidence" json:"min_confidence"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	OverlayPath string `yaml:"overlay_path" json:"overlay_path"`
	Filename    string `yaml:"filename" json:"filename"`
	OutputDir   string `yaml:"output_dir" json:"output_dir"`
	DebugSuffix string `yaml:"debug_suffix" json:"debug_suffix"`
}

// ServerConfig holds configuration for the HTTP API
type ServerConfig struct {
	Port          string        `yaml:"port" json:"port"`
	BodyLimitMB   int           `yaml:"body_limit_mb" json:"body_limit_mb"`
	SessionTTL    time.Duration `yaml:"session_ttl" json:"session_ttl"`
	MaxSessions   int           `yaml:"max_sessions" json:"max_sessions"`
	RequestRate   float64       `yaml:"request_rate" json:"request_rate"`
	RequestBurst  int           `yaml:"request_burst" json:"request_burst"`
	EventRate     float64       `yaml:"event_rate" json:"event_rate"`
	EventBurst    int           `yaml:"event_burst" json:"event_burst"`
	PrintRoutes   bool          `yaml:"print_routes" json:"print_routes"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace" json:"shutdown_grace"`
}

// LogConfig holds configuration for logging
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:       detection.BackendCascade,
			CascadeURL:    detection.DefaultCascadeURL,
			CascadeCache:  defaultCascadeCache(),
			MinFaceSize:   20,
			MinQuality:    5.0,
			IoUThreshold:  0.2,
			Model:         "minicpm-v:8b",
			MinConfidence: 0.1,
			Timeout:       2 * time.Minute,
		},
		Placement: placement.DefaultOptions(),
		Output: OutputConfig{
			Filename:    "67ified.png",
			OutputDir:   ".",
			DebugSuffix: "_debug",
		},
		Server: ServerConfig{
			Port:          "3000",
			BodyLimitMB:   20,
			SessionTTL:    30 * time.Minute,
			MaxSessions:   256,
			RequestRate:   50,
			RequestBurst:  100,
			EventRate:     120,
			EventBurst:    60,
			ShutdownGrace: 5 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFromFile loads configuration from a YAML (or JSON) file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load reads filename when it exists and falls back to the defaults otherwise
func Load(filename string) (*Config, error) {
	if filename == "" {
		return Default(), nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFromFile(filename)
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Detector.Backend {
	case detection.BackendCascade, detection.BackendOllama, detection.BackendLlamaCpp:
	default:
		return fmt.Errorf("detector.backend must be one of cascade, ollama, llamacpp")
	}

	if c.Detector.MinFaceSize < 1 {
		return fmt.Errorf("detector.min_face_size must be positive")
	}

	if c.Detector.IoUThreshold < 0 || c.Detector.IoUThreshold > 1 {
		return fmt.Errorf("detector.iou_threshold must be between 0 and 1")
	}

	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be between 0 and 1")
	}

	if err := c.Placement.Validate(); err != nil {
		return fmt.Errorf("placement: %w", err)
	}

	if c.Output.Filename == "" {
		return fmt.Errorf("output.filename cannot be empty")
	}

	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server.port must be numeric")
	}

	if c.Server.BodyLimitMB < 1 {
		return fmt.Errorf("server.body_limit_mb must be positive")
	}

	if c.Server.SessionTTL <= 0 {
		return fmt.Errorf("server.session_ttl must be positive")
	}

	if c.Server.EventRate <= 0 || c.Server.EventBurst < 1 {
		return fmt.Errorf("server.event_rate and server.event_burst must be positive")
	}

	return nil
}

// ApplyEnv overrides values from environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DETECTOR_BACKEND"); v != "" {
		c.Detector.Backend = v
	}
	if v := os.Getenv("DETECTOR_SERVER_URL"); v != "" {
		c.Detector.ServerURL = v
	}
	if v := os.Getenv("DETECTOR_MODEL"); v != "" {
		c.Detector.Model = v
	}
	if v := os.Getenv("CASCADE_URL"); v != "" {
		c.Detector.CascadeURL = v
	}
	if v := os.Getenv("OVERLAY_PATH"); v != "" {
		c.Output.OverlayPath = v
	}
	if v := os.Getenv("APP_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		c.Log.File = v
	}
}

// DetectionConfig converts the detector section for detection.New
func (c *Config) DetectionConfig() detection.Config {
	cascade := detection.DefaultCascadeConfig()
	cascade.MinSize = c.Detector.MinFaceSize
	cascade.MinQuality = c.Detector.MinQuality
	cascade.IoUThreshold = c.Detector.IoUThreshold

	vision := detection.DefaultVisionOptions(c.Detector.Model)
	vision.MinConfidence = c.Detector.MinConfidence

	return detection.Config{
		Backend:      c.Detector.Backend,
		CascadeURL:   c.Detector.CascadeURL,
		CascadeCache: c.Detector.CascadeCache,
		Cascade:      cascade,
		ServerURL:    c.Detector.ServerURL,
		Vision:       vision,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "overlay-editor", "config.yaml")
}

func defaultCascadeCache() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "overlay-editor", "facefinder")
}
