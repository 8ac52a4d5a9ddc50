// Package config defines the engine configuration file: decision thresholds,
// augmentation, quality gate, ensemble tuning and the model list.
package config

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPHigh          = 0.75
	DefaultPMid           = 0.55
	DefaultPossibleMargin = 0.15
	DefaultAugmentations  = 3
	DefaultSeed           = 42
	DefaultLowQuality     = 0.4
	DefaultModelTimeout   = 10 * time.Second
	DefaultMaxParallel    = 4
	DefaultTemperature    = 1.0
	DefaultInputSize      = 224
	DefaultMaxPixels      = 40_000_000
)

// EngineConfig is the root of the YAML engine configuration.
type EngineConfig struct {
	Thresholds   ThresholdConfig    `yaml:"thresholds"`
	Augmentation AugmentationConfig `yaml:"augmentation"`
	Quality      QualityConfig      `yaml:"quality"`
	Ensemble     EnsembleConfig     `yaml:"ensemble"`
	Models       []ModelConfig      `yaml:"models"`
}

type ThresholdConfig struct {
	PHigh          float64                         `yaml:"p_high"`
	PMid           float64                         `yaml:"p_mid"`
	PossibleMargin float64                         `yaml:"possible_margin"`
	PerClass       map[string]ClassThresholdConfig `yaml:"per_class,omitempty"`
}

// ClassThresholdConfig overrides the global bands for one class. Zero inherits.
type ClassThresholdConfig struct {
	PHigh float64 `yaml:"p_high"`
	PMid  float64 `yaml:"p_mid"`
}

type AugmentationConfig struct {
	Count int    `yaml:"count"`
	Seed  uint64 `yaml:"seed"`
}

type QualityConfig struct {
	LowThreshold  float64 `yaml:"low_threshold"`
	LowQualityCap float64 `yaml:"low_quality_cap"`
	Enhance       bool    `yaml:"enhance"`
	MaxPixels     int     `yaml:"max_pixels"`
}

type EnsembleConfig struct {
	ModelTimeout time.Duration `yaml:"model_timeout"`
	MaxParallel  int           `yaml:"max_parallel"`
	Temperature  float64       `yaml:"temperature"`
	LibraryPath  string        `yaml:"library_path,omitempty"`
	UseCUDA      bool          `yaml:"use_cuda"`
}

// ModelConfig describes one model artifact and how to feed it.
type ModelConfig struct {
	Name        string    `yaml:"name"`
	Location    string    `yaml:"location"`
	Backend     string    `yaml:"backend"`
	Weight      float64   `yaml:"weight"`
	Classes     []string  `yaml:"classes,omitempty"`
	InputSize   int       `yaml:"input_size,omitempty"`
	Mean        []float64 `yaml:"mean,omitempty"`
	Std         []float64 `yaml:"std,omitempty"`
	InputName   string    `yaml:"input_name,omitempty"`
	OutputName  string    `yaml:"output_name,omitempty"`
	Providers   []string  `yaml:"providers,omitempty"`
	Temperature float64   `yaml:"temperature,omitempty"`
}

// Default returns a configuration with no models and the standard bands.
func Default() *EngineConfig {
	cfg := &EngineConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// Load reads a YAML file. An empty path yields Default().
func Load(path string) (*EngineConfig, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("engine config %s: %w", path, err)
	}
	// relative model paths are resolved against the config file
	base := filepath.Dir(path)
	for i := range cfg.Models {
		cfg.Models[i].Location = resolveRelative(base, cfg.Models[i].Location)
	}
	return cfg, nil
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*EngineConfig, error) {
	cfg := &EngineConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values.
func (c *EngineConfig) ApplyDefaults() {
	if c.Thresholds.PHigh == 0 {
		c.Thresholds.PHigh = DefaultPHigh
	}
	if c.Thresholds.PMid == 0 {
		c.Thresholds.PMid = DefaultPMid
	}
	if c.Thresholds.PossibleMargin == 0 {
		c.Thresholds.PossibleMargin = DefaultPossibleMargin
	}
	if c.Augmentation.Count == 0 {
		c.Augmentation.Count = DefaultAugmentations
	}
	if c.Augmentation.Seed == 0 {
		c.Augmentation.Seed = DefaultSeed
	}
	if c.Quality.LowThreshold == 0 {
		c.Quality.LowThreshold = DefaultLowQuality
	}
	if c.Quality.MaxPixels == 0 {
		c.Quality.MaxPixels = DefaultMaxPixels
	}
	if c.Ensemble.ModelTimeout == 0 {
		c.Ensemble.ModelTimeout = DefaultModelTimeout
	}
	if c.Ensemble.MaxParallel == 0 {
		c.Ensemble.MaxParallel = DefaultMaxParallel
	}
	if c.Ensemble.Temperature == 0 {
		c.Ensemble.Temperature = DefaultTemperature
	}
	for i := range c.Models {
		m := &c.Models[i]
		if m.Backend == "" {
			m.Backend = backendFor(m.Location)
		}
		if m.Weight == 0 {
			m.Weight = 1
		}
		if m.InputSize == 0 {
			m.InputSize = DefaultInputSize
		}
		if m.Name == "" {
			m.Name = nameFor(m.Location)
		}
	}
}

// Validate checks ranges and model entries.
func (c *EngineConfig) Validate() error {
	t := c.Thresholds
	if t.PMid <= 0 || t.PHigh > 1 || t.PMid > t.PHigh {
		return fmt.Errorf("thresholds must satisfy 0 < p_mid <= p_high <= 1 (got p_mid=%.3f p_high=%.3f)", t.PMid, t.PHigh)
	}
	if t.PossibleMargin < 0 || t.PossibleMargin >= t.PMid {
		return fmt.Errorf("possible_margin must be in [0, p_mid) (got %.3f)", t.PossibleMargin)
	}
	for class, ct := range t.PerClass {
		high, mid := ct.PHigh, ct.PMid
		if high == 0 {
			high = t.PHigh
		}
		if mid == 0 {
			mid = t.PMid
		}
		if mid <= 0 || high > 1 || mid > high {
			return fmt.Errorf("thresholds for class %q must satisfy 0 < p_mid <= p_high <= 1", class)
		}
	}
	if c.Augmentation.Count < 1 {
		return fmt.Errorf("augmentation count must be >= 1 (got %d)", c.Augmentation.Count)
	}
	if c.Quality.LowThreshold < 0 || c.Quality.LowThreshold > 1 {
		return fmt.Errorf("quality low_threshold must be in [0,1] (got %.3f)", c.Quality.LowThreshold)
	}
	if c.Quality.LowQualityCap < 0 || c.Quality.LowQualityCap > 1 {
		return fmt.Errorf("quality low_quality_cap must be in [0,1] (got %.3f)", c.Quality.LowQualityCap)
	}
	if c.Quality.MaxPixels < 0 {
		return fmt.Errorf("quality max_pixels must be >= 0 (got %d)", c.Quality.MaxPixels)
	}
	if c.Ensemble.MaxParallel < 1 {
		return fmt.Errorf("ensemble max_parallel must be >= 1 (got %d)", c.Ensemble.MaxParallel)
	}

	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if strings.TrimSpace(m.Location) == "" {
			return fmt.Errorf("model #%d has no location", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate model name %q", m.Name)
		}
		seen[m.Name] = true
		if m.Weight < 0 {
			return fmt.Errorf("model %q has negative weight", m.Name)
		}
		if m.Backend != "onnx" && m.Backend != "http" {
			return fmt.Errorf("model %q has unsupported backend %q", m.Name, m.Backend)
		}
		if (len(m.Mean) != 0 && len(m.Mean) != 3) || (len(m.Std) != 0 && len(m.Std) != 3) {
			return fmt.Errorf("model %q mean/std must have 3 values", m.Name)
		}
	}
	return nil
}

// ApplyEnv overrides selected values from the environment.
// MODEL_PATHS is a semicolon separated list replacing the configured models.
func (c *EngineConfig) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("P_HIGH"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid P_HIGH: %q", v)
		}
		c.Thresholds.PHigh = f
	}
	if v, ok := lookup("P_MID"); ok && v != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid P_MID: %q", v)
		}
		c.Thresholds.PMid = f
	}
	if v, ok := lookup("AUGMENTATIONS"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid AUGMENTATIONS: %q", v)
		}
		c.Augmentation.Count = n
	}
	if v, ok := lookup("AUGMENTATION_SEED"); ok && v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid AUGMENTATION_SEED: %q", v)
		}
		c.Augmentation.Seed = n
	}
	if v, ok := lookup("MODEL_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid MODEL_TIMEOUT: %q", v)
		}
		c.Ensemble.ModelTimeout = d
	}
	if v, ok := lookup("ORT_LIBRARY_PATH"); ok && v != "" {
		c.Ensemble.LibraryPath = strings.TrimSpace(v)
	}
	if v, ok := lookup("MODEL_PATHS"); ok && strings.TrimSpace(v) != "" {
		var models []ModelConfig
		for _, loc := range strings.Split(v, ";") {
			loc = strings.TrimSpace(loc)
			if loc == "" {
				continue
			}
			models = append(models, ModelConfig{Location: loc})
		}
		c.Models = models
	}
	c.ApplyDefaults()
	return c.Validate()
}

// Fingerprint identifies the settings that influence a result.
func (c *EngineConfig) Fingerprint() string {
	subset := struct {
		Thresholds   ThresholdConfig
		Augmentation AugmentationConfig
		Quality      QualityConfig
		Temperature  float64
		Models       []ModelConfig
	}{c.Thresholds, c.Augmentation, c.Quality, c.Ensemble.Temperature, c.Models}

	data, err := yaml.Marshal(subset)
	if err != nil {
		return "unknown"
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:8])
}

func backendFor(location string) string {
	lower := strings.ToLower(location)
	if (strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")) &&
		!strings.HasSuffix(lower, ".onnx") {
		return "http"
	}
	return "onnx"
}

func nameFor(location string) string {
	base := location
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func resolveRelative(base, location string) string {
	if location == "" || strings.Contains(location, "://") || filepath.IsAbs(location) {
		return location
	}
	return filepath.Join(base, location)
}
