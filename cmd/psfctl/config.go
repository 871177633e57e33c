package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/psfgate/internal/analysis"
	"example.com/psfgate/internal/common"
	"example.com/psfgate/internal/export"
)

type config struct {
	Concurrency  int              `yaml:"concurrency"`
	Analysis     string           `yaml:"analysis"`
	ExportFormat string           `yaml:"exportFormat"`
	Logs         common.LogConfig `yaml:"logs"`
}

func defaultConfig() config {
	cfg := config{
		Concurrency:  runtime.NumCPU(),
		ExportFormat: string(export.FormatCSV),
		Logs:         common.LogConfig{Level: "warn"},
	}
	cfg.Logs.ApplyDefaults()
	return cfg
}

// loadConfig reads a YAML config file. An empty path yields the defaults.
// Relative log directories are resolved against the config file's directory.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if strings.TrimSpace(cfg.ExportFormat) == "" {
		cfg.ExportFormat = string(export.FormatCSV)
	}
	if _, err := export.ParseFormat(cfg.ExportFormat); err != nil {
		return cfg, err
	}
	if cfg.Analysis != "" {
		if _, err := analysis.ParseKind(cfg.Analysis); err != nil {
			return cfg, err
		}
	}
	if dir := strings.TrimSpace(cfg.Logs.Directory); dir != "" && !filepath.IsAbs(dir) {
		cfg.Logs.Directory = filepath.Clean(filepath.Join(filepath.Dir(path), dir))
	}
	cfg.Logs.ApplyDefaults()
	return cfg, nil
}
