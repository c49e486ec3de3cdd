// Package config loads the demo binary's JSON configuration, the way
// the teacher's utils.CargarConfiguracion does, generalised to a single
// generic loader and extended with environment overrides via godotenv
// for values a deployment typically wants to vary without editing the
// checked-in file.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Core is the demo binary's configuration: the sizes the System is
// constructed with, plus where to find the swap partition file and how
// verbosely to log.
type Core struct {
	LogLevel      string `json:"LOG_LEVEL"`
	RegionPages   int    `json:"REGION_PAGES"`
	PMTSlots      int    `json:"PMT_SLOTS"`
	SwapPath      string `json:"SWAP_PATH"`
	SwapClusters  int    `json:"SWAP_CLUSTERS"`
	DiagAddr      string `json:"DIAG_ADDR"`
	DumpPath      string `json:"DUMP_PATH"`
}

// Load loads a .env file, if present, into the process environment, then
// reads path as JSON into T. It does not copy environment values into
// T; ApplyCoreEnvOverrides does that for Core. Missing .env files are
// not an error — godotenv.Load is best-effort, matching how a deployed
// instance may or may not carry one.
func Load[T any](path string) (*T, error) {
	slog.Info("config: loading", "path", path)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("config: .env not loaded", "err", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolving path %q: %w", path, err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: opening %q: %w", absPath, err)
	}
	defer file.Close()

	var cfg T
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %q: %w", absPath, err)
	}
	return &cfg, nil
}

// ApplyCoreEnvOverrides overwrites fields of cfg from environment
// variables of the same name as the JSON tag, when set. This is the
// generalisation godotenv exists for here: config files stay static,
// deployments override via env.
func ApplyCoreEnvOverrides(cfg *Core) {
	if v := os.Getenv("SWAP_PATH"); v != "" {
		cfg.SwapPath = v
	}
	if v := os.Getenv("DIAG_ADDR"); v != "" {
		cfg.DiagAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("REGION_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RegionPages = n
		}
	}
	if v := os.Getenv("PMT_SLOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PMTSlots = n
		}
	}
	if v := os.Getenv("SWAP_CLUSTERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SwapClusters = n
		}
	}
	if v := os.Getenv("DUMP_PATH"); v != "" {
		cfg.DumpPath = v
	}
}

// ParseLevel maps the config's textual log level to a slog.Level, the
// way the teacher's InicializarLogger does.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
