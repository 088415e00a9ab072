package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = "/tmp/downloads"
	}
	if cfg.Storage.FileTTLSeconds == 0 {
		cfg.Storage.FileTTLSeconds = 300
	}
	if cfg.Storage.CleanupIntervalSeconds == 0 {
		cfg.Storage.CleanupIntervalSeconds = 60
	}
	if cfg.Download.DefaultQuality == "" {
		cfg.Download.DefaultQuality = "720p"
	}
	if cfg.Download.DefaultFormat == "" {
		cfg.Download.DefaultFormat = "mp4"
	}
	if cfg.Download.DefaultTimeoutSeconds == 0 {
		cfg.Download.DefaultTimeoutSeconds = 3600
	}
	if cfg.Download.MaxInlineBytes == 0 {
		cfg.Download.MaxInlineBytes = 50 * 1024 * 1024
	}
	if len(cfg.Strategies.CobaltInstances) == 0 {
		cfg.Strategies.CobaltInstances = []string{
			"https://api.cobalt.tools/",
			"https://co.wuk.sh/api/json",
		}
	}
	if len(cfg.Strategies.InvidiousInstances) == 0 {
		cfg.Strategies.InvidiousInstances = []string{
			"https://inv.nadeko.net",
			"https://yewtu.be",
			"https://invidious.nerdvpn.de",
		}
	}
	if len(cfg.Strategies.PipedInstances) == 0 {
		cfg.Strategies.PipedInstances = []string{
			"https://pipedapi.kavin.rocks",
			"https://pipedapi.in.projectsegfau.lt",
			"https://piped-api.garudalinux.org",
		}
	}
}
