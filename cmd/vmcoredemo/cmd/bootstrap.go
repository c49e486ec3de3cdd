package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/losvmkernel/vmcore"
	"github.com/losvmkernel/vmcore/internal/config"
	"github.com/losvmkernel/vmcore/internal/pagetable"
	"github.com/losvmkernel/vmcore/internal/swap"
	"github.com/losvmkernel/vmcore/pkg/blockdevice"
)

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "vmcoredemo.json", "path to the JSON config file")
}

// defaultConfig mirrors what the end-to-end scenarios in the core's
// contract use: an 8-page region with a single PMT slot, scaled up to
// something actually useful for a demo run.
func defaultConfig() config.Core {
	return config.Core{
		LogLevel:     "info",
		RegionPages:  64,
		PMTSlots:     4,
		SwapPath:     "vmcore.swap",
		SwapClusters: 256,
		DiagAddr:     ":8080",
		DumpPath:     "dumps",
	}
}

func buildSystem() (*vmcore.System, *config.Core, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		loaded, err := config.Load[config.Core](configPath)
		if err != nil {
			return nil, nil, err
		}
		cfg = *loaded
	}
	config.ApplyCoreEnvOverrides(&cfg)

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLevel(cfg.LogLevel),
	})).With("modulo", "vmcoredemo")

	dev, err := blockdevice.Open(cfg.SwapPath, pagetable.PageSize, swap.ClusterNo(cfg.SwapClusters))
	if err != nil {
		return nil, nil, fmt.Errorf("opening swap device: %w", err)
	}

	store, err := swap.New(dev, pagetable.PageSize, log)
	if err != nil {
		return nil, nil, fmt.Errorf("formatting swap store: %w", err)
	}

	sys, err := vmcore.New(uint64(cfg.RegionPages), cfg.PMTSlots, store, log)
	if err != nil {
		return nil, nil, fmt.Errorf("constructing system: %w", err)
	}
	return sys, &cfg, nil
}
