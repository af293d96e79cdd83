// Package config holds the typed configuration of each command, validated
// before any work starts, plus the environment-driven settings of serve mode.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/ofs-s111/internal/domain"
)

// IndexConfig configures grid index generation.
type IndexConfig struct {
	Model           string
	SampleFile      string // native fields file providing the grid geometry
	CellSize        float64
	Shoreline       string // optional land-masking shapefile
	Subgrid         string // optional subgrid shapefile
	SubgridNameAttr string // attribute naming each subgrid polygon
	IndexPath       string // output location
	TargetDepth     float64
}

// Validate checks the index configuration.
func (c *IndexConfig) Validate() error {
	if _, err := domain.Lookup(c.Model); err != nil {
		return err
	}
	if c.SampleFile == "" {
		return errors.New("a sample fields file is required")
	}
	if c.CellSize <= 0 {
		return fmt.Errorf("cell size must be positive, got %g", c.CellSize)
	}
	if c.IndexPath == "" {
		return errors.New("an index output path is required")
	}
	if c.SubgridNameAttr != "" && c.Subgrid == "" {
		return errors.New("a subgrid name attribute needs a subgrid shapefile")
	}
	return nil
}

// RunConfig configures one acquire-and-encode run.
type RunConfig struct {
	Model       string
	Cycle       string // YYYYMMDDHH; empty means latest available
	Format      int    // data coding format: 2 or 3
	IndexPath   string // required for format 2
	DownloadDir string
	OutputDir   string
	TargetDepth float64
	Chop        bool
	Timeout     time.Duration // per-file download timeout
	Workers     int
	BaseURL     string // archive override, mainly for testing
}

// Validate checks the run configuration. Format-2 runs without an index are
// rejected here, before anything is downloaded.
func (c *RunConfig) Validate() error {
	if _, err := domain.Lookup(c.Model); err != nil {
		return err
	}
	switch c.Format {
	case 2:
		if c.IndexPath == "" {
			return errors.New("georectified output (format 2) requires a grid index")
		}
	case 3:
		if c.Chop {
			return errors.New("chopping requires georectified output (format 2)")
		}
	default:
		return fmt.Errorf("data coding format must be 2 or 3, got %d", c.Format)
	}
	if c.Cycle != "" {
		if _, err := domain.ParseCycle(c.Cycle); err != nil {
			return err
		}
	}
	if c.TargetDepth <= 0 {
		return fmt.Errorf("target depth must be positive, got %g", c.TargetDepth)
	}
	if c.Timeout <= 0 {
		return errors.New("download timeout must be positive")
	}
	return nil
}

// ChopConfig configures re-chopping an existing artifact.
type ChopConfig struct {
	Model       string
	Cycle       string
	Artifact    string
	IndexPath   string
	OutputDir   string
	TargetDepth float64
}

// Validate checks the chop configuration.
func (c *ChopConfig) Validate() error {
	if _, err := domain.Lookup(c.Model); err != nil {
		return err
	}
	if _, err := domain.ParseCycle(c.Cycle); err != nil {
		return err
	}
	if c.Artifact == "" {
		return errors.New("an artifact path is required")
	}
	if c.IndexPath == "" {
		return errors.New("a grid index path is required")
	}
	return nil
}

// ServeConfig holds the operational daemon settings, populated from
// environment variables.
type ServeConfig struct {
	Models          []string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	PollInterval    time.Duration

	DownloadDir string
	OutputDir   string
	IndexDir    string
	TargetDepth float64

	// Kafka cycle-completion notifications, disabled by default.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// LoadServe reads serve-mode configuration from environment variables,
// applying defaults where unset.
func LoadServe() (*ServeConfig, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	pollInterval, err := parseDuration("POLL_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	targetDepth, err := parseFloat("TARGET_DEPTH", 4.5)
	if err != nil {
		return nil, err
	}

	cfg := &ServeConfig{
		Models:          splitList(envOrDefault("OFS_MODELS", strings.Join(domain.ModelIDs(), ","))),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		PollInterval:    pollInterval,
		DownloadDir:     envOrDefault("DOWNLOAD_DIR", "/var/lib/ofs-s111/download"),
		OutputDir:       envOrDefault("OUTPUT_DIR", "/var/lib/ofs-s111/output"),
		IndexDir:        envOrDefault("INDEX_DIR", "/var/lib/ofs-s111/index"),
		TargetDepth:     targetDepth,
		KafkaEnabled:    os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:    splitList(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      strings.TrimSpace(envOrDefault("KAFKA_TOPIC", "s111-cycles")),
	}

	if len(cfg.Models) == 0 {
		return nil, errors.New("OFS_MODELS is empty")
	}
	for _, id := range cfg.Models {
		if _, err := domain.Lookup(id); err != nil {
			return nil, fmt.Errorf("OFS_MODELS: %w", err)
		}
	}
	if cfg.TargetDepth <= 0 {
		return nil, errors.New("TARGET_DEPTH must be positive")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaTopic == "" {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
		}
	}
	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return f, nil
}
