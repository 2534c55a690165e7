// Package config loads operational configuration for sandboxd from
// environment variables with an optional YAML file overlay.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs to start listening and to
// bound every submission it accepts.
type Config struct {
	ListenAddr      string `yaml:"listen_addr"`
	AdminAddr       string `yaml:"admin_addr"`
	WorkspaceRoot   string `yaml:"workspace_root"`
	CompilerPath    string `yaml:"compiler_path"`
	DenylistFile    string `yaml:"denylist_file"`
	Environment     string `yaml:"environment"`
	DefaultTimeLimitSec   int `yaml:"default_time_limit_sec"`
	DefaultMemoryLimitMB  int `yaml:"default_memory_limit_mb"`
	MaxTimeLimitSec       int `yaml:"max_time_limit_sec"`
	MaxMemoryLimitMB      int `yaml:"max_memory_limit_mb"`
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions"`
}

// Default returns the built-in defaults, matching the original sandbox's
// hard-coded constants (5s CPU, 256MB address space, port 8884).
func Default() Config {
	return Config{
		ListenAddr:            ":8884",
		AdminAddr:             ":9090",
		WorkspaceRoot:         "./tmp",
		CompilerPath:          "g++",
		Environment:           "development",
		DefaultTimeLimitSec:   5,
		DefaultMemoryLimitMB:  256,
		MaxTimeLimitSec:       30,
		MaxMemoryLimitMB:      1024,
		MaxConcurrentSessions: 64,
	}
}

// ValidationError aggregates every configuration problem found instead of
// failing on the first one.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

// Load builds a Config starting from Default(), overlaying an optional
// YAML file (path from SANDBOXD_CONFIG_FILE), then environment variables,
// and finally validates the result.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("SANDBOXD_CONFIG_FILE"); path != "" {
		if err := overlayYAML(&cfg, path); err != nil {
			return cfg, err
		}
	}

	overlayEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func overlayYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func overlayEnv(cfg *Config) {
	str(&cfg.ListenAddr, "SANDBOXD_LISTEN_ADDR")
	str(&cfg.AdminAddr, "SANDBOXD_ADMIN_ADDR")
	str(&cfg.WorkspaceRoot, "SANDBOXD_WORKSPACE_ROOT")
	str(&cfg.CompilerPath, "SANDBOXD_COMPILER_PATH")
	str(&cfg.DenylistFile, "SANDBOXD_DENYLIST_FILE")
	str(&cfg.Environment, "ENVIRONMENT")
	intVar(&cfg.DefaultTimeLimitSec, "SANDBOXD_DEFAULT_TIME_LIMIT_SEC")
	intVar(&cfg.DefaultMemoryLimitMB, "SANDBOXD_DEFAULT_MEMORY_LIMIT_MB")
	intVar(&cfg.MaxTimeLimitSec, "SANDBOXD_MAX_TIME_LIMIT_SEC")
	intVar(&cfg.MaxMemoryLimitMB, "SANDBOXD_MAX_MEMORY_LIMIT_MB")
	intVar(&cfg.MaxConcurrentSessions, "SANDBOXD_MAX_CONCURRENT_SESSIONS")
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func intVar(dst *int, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func (c Config) validate() error {
	var problems []string

	if c.ListenAddr == "" {
		problems = append(problems, "listen_addr must not be empty")
	}
	if c.WorkspaceRoot == "" {
		problems = append(problems, "workspace_root must not be empty")
	}
	if c.CompilerPath == "" {
		problems = append(problems, "compiler_path must not be empty")
	}
	if c.DefaultTimeLimitSec <= 0 {
		problems = append(problems, "default_time_limit_sec must be positive")
	}
	if c.DefaultMemoryLimitMB <= 0 {
		problems = append(problems, "default_memory_limit_mb must be positive")
	}
	if c.MaxTimeLimitSec < c.DefaultTimeLimitSec {
		problems = append(problems, "max_time_limit_sec must be >= default_time_limit_sec")
	}
	if c.MaxMemoryLimitMB < c.DefaultMemoryLimitMB {
		problems = append(problems, "max_memory_limit_mb must be >= default_memory_limit_mb")
	}
	if c.MaxConcurrentSessions <= 0 {
		problems = append(problems, "max_concurrent_sessions must be positive")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ClampTimeLimit bounds a requested CPU time limit to [1, MaxTimeLimitSec].
func (c Config) ClampTimeLimit(requested int) int {
	if requested <= 0 {
		return c.DefaultTimeLimitSec
	}
	if requested > c.MaxTimeLimitSec {
		return c.MaxTimeLimitSec
	}
	return requested
}

// ClampMemoryLimit bounds a requested address-space limit to
// [1, MaxMemoryLimitMB].
func (c Config) ClampMemoryLimit(requested int) int {
	if requested <= 0 {
		return c.DefaultMemoryLimitMB
	}
	if requested > c.MaxMemoryLimitMB {
		return c.MaxMemoryLimitMB
	}
	return requested
}
