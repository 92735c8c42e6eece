package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Analyzer struct {
		Path string `yaml:"path"`
		// Timeouts in seconds. Check is short, analyze and compare
		// longer, fleet longest.
		CheckTimeout   int `yaml:"checkTimeout"`
		AnalyzeTimeout int `yaml:"analyzeTimeout"`
		CompareTimeout int `yaml:"compareTimeout"`
		FleetTimeout   int `yaml:"fleetTimeout"`
	} `yaml:"analyzer"`

	Data struct {
		Dir string `yaml:"dir"`
	} `yaml:"data"`
}

// Load reads config.yaml (optional) and applies environment overrides.
// A .env file is loaded best-effort first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Analyzer.Path = "./analyzer.sh"
	cfg.Analyzer.CheckTimeout = 15
	cfg.Analyzer.AnalyzeTimeout = 180
	cfg.Analyzer.CompareTimeout = 180
	cfg.Analyzer.FleetTimeout = 300
	cfg.Data.Dir = "./data"

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if v := os.Getenv("LOGGY_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LOGGY_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid LOGGY_PORT %q", v)
		}
		cfg.Server.Port = p
	}
	if v := os.Getenv("LOGGY_ANALYZER"); v != "" {
		cfg.Analyzer.Path = v
	}
	if v := os.Getenv("LOGGY_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) UploadDir() string {
	return filepath.Join(c.Data.Dir, "uploads")
}

func (c *Config) SessionsDir() string {
	return filepath.Join(c.Data.Dir, "sessions")
}

// AnalyzerDir is where the analyzer lives; the signature catalogs sit
// beside it.
func (c *Config) AnalyzerDir() string {
	abs, err := filepath.Abs(c.Analyzer.Path)
	if err != nil {
		abs = c.Analyzer.Path
	}
	return filepath.Dir(abs)
}

func (c *Config) SignaturesFile() string {
	return filepath.Join(c.AnalyzerDir(), "signatures", "known_signatures.tsv")
}

func (c *Config) RegistryFile() string {
	return filepath.Join(c.AnalyzerDir(), "signatures", "error_registry.tsv")
}

func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.Analyzer.CheckTimeout) * time.Second
}

func (c *Config) AnalyzeTimeout() time.Duration {
	return time.Duration(c.Analyzer.AnalyzeTimeout) * time.Second
}

func (c *Config) CompareTimeout() time.Duration {
	return time.Duration(c.Analyzer.CompareTimeout) * time.Second
}

func (c *Config) FleetTimeout() time.Duration {
	return time.Duration(c.Analyzer.FleetTimeout) * time.Second
}
