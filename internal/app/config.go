package app

import (
	"errors"
	"time"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	SourcePath string // template file or directory
	OutputDir  string

	ModelID  string
	Region   string
	Endpoint string // non-empty switches to the OpenAI-compatible HTTP client
	Timeout  time.Duration

	MaxAttempts int
	RulesPath   string // optional YAML rule-override file

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

const (
	DefaultOutputDir   = "./terraform"
	DefaultModelID     = "us.amazon.nova-pro-v1:0"
	DefaultMaxAttempts = 3
	DefaultWorkerCount = 4
)

func NewConfig(cfg Config) (*Config, error) {
	if cfg.SourcePath == "" {
		return nil, errors.New("SourcePath is a required configuration field and cannot be empty")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	return &cfg, nil
}
