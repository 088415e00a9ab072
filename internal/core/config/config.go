package config

import (
	"time"

	redisclient "github.com/vidfetch/vidfetch/internal/infra/redis"
	"github.com/vidfetch/vidfetch/internal/infra/tracking"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	Storage    StorageConfig      `yaml:"storage"`
	Download   DownloadConfig     `yaml:"download"`
	Strategies StrategiesConfig   `yaml:"strategies"`
	Proxy      ProxyConfig        `yaml:"proxy"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   tracking.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int `yaml:"port"`
	RateLimitRPM int `yaml:"rate_limit_rpm"` // per-IP requests/minute, 0 disables
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// StorageConfig holds workspace settings.
type StorageConfig struct {
	Dir                    string `yaml:"dir"`
	FileTTLSeconds         int    `yaml:"file_ttl_seconds"`
	CleanupIntervalSeconds int    `yaml:"cleanup_interval_seconds"`
}

func (c StorageConfig) FileTTL() time.Duration {
	return time.Duration(c.FileTTLSeconds) * time.Second
}

func (c StorageConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

// DownloadConfig holds request defaults.
type DownloadConfig struct {
	DefaultQuality        string `yaml:"default_quality"`
	DefaultFormat         string `yaml:"default_format"`
	DefaultTimeoutSeconds int    `yaml:"default_timeout_seconds"`
	MaxInlineBytes        int64  `yaml:"max_inline_bytes"` // base64 response ceiling
}

func (c DownloadConfig) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutSeconds) * time.Second
}

// StrategiesConfig controls which strategy families the catalog includes
// and the instances/credentials each family uses.
type StrategiesConfig struct {
	CobaltInstances    []string `yaml:"cobalt_instances"`
	InvidiousInstances []string `yaml:"invidious_instances"`
	PipedInstances     []string `yaml:"piped_instances"`
	NativeExtractor    bool     `yaml:"native_extractor"`
	CookiesB64         string   `yaml:"cookies_b64"` // netscape cookie jar, base64
	POToken            string   `yaml:"po_token"`
	VisitorData        string   `yaml:"visitor_data"`

	// Per-family attempt ceilings in seconds; unset families use defaults.
	AttemptTimeoutSeconds map[string]int `yaml:"attempt_timeout_seconds"`
}

// AttemptTimeout returns the wall-clock ceiling for one attempt of the
// given adapter family.
func (c StrategiesConfig) AttemptTimeout(kind string) time.Duration {
	if s, ok := c.AttemptTimeoutSeconds[kind]; ok && s > 0 {
		return time.Duration(s) * time.Second
	}
	if d, ok := defaultAttemptTimeouts[kind]; ok {
		return d
	}
	return 5 * time.Minute
}

var defaultAttemptTimeouts = map[string]time.Duration{
	"ytdlp":      5 * time.Minute,
	"cobalt":     6 * time.Minute,
	"invidious":  6 * time.Minute,
	"piped":      6 * time.Minute,
	"native":     5 * time.Minute,
	"streamlink": 5 * time.Minute,
}

// ProxyConfig holds Webshare residential proxy settings.
type ProxyConfig struct {
	DownloadLink           string `yaml:"download_link"`
	APIKey                 string `yaml:"api_key"`
	RefreshIntervalSeconds int    `yaml:"refresh_interval_seconds"`
}

func (c ProxyConfig) RefreshInterval() time.Duration {
	if c.RefreshIntervalSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}
