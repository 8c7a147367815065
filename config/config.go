package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Fetch    FetchConfig
	Browser  BrowserConfig
	Download DownloadConfig
	Static   StaticConfig
	Metrics  MetricsConfig
	Log      LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownTimeout is how long in-flight requests get to drain.
	ShutdownTimeout time.Duration // default: 5s

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string // default: ["*"]
}

// FetchConfig controls outbound requests for article pages and images.
type FetchConfig struct {
	// Timeout bounds every single fetch. Not overridable per request.
	Timeout time.Duration // default: 30s

	// UserAgent is the desktop browser identity sent upstream.
	UserAgent string

	// MaxBody caps response bodies in bytes.
	MaxBody int64 // default: 10 MiB

	MaxRedirects int // default: 10
}

// BrowserConfig controls the optional headless Chromium fallback used for
// article pages the plain HTTP engine cannot fetch.
type BrowserConfig struct {
	// Enabled adds the browser engine behind the HTTP engine.
	Enabled bool // default: false

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// Bin overrides the Chromium binary path.
	Bin string

	// Proxy is passed to Chromium as --proxy-server.
	Proxy string

	// Stealth injects anti-bot-detection evasions into every page.
	Stealth bool // default: true
}

// DownloadConfig controls the per-request image download stage.
type DownloadConfig struct {
	// Concurrency is the number of parallel image downloads.
	Concurrency int // default: 4

	// RatePerSecond paces downloads within one request; 0 disables pacing.
	RatePerSecond float64 // default: 0

	Burst int // default: 1
}

// StaticConfig controls serving of the bundled front-end.
type StaticConfig struct {
	// Dir is served for unmatched GET routes when it exists.
	Dir string // default: "web/dist"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   // default: true
	Path    string // default: "/metrics"
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            envOr("SLIDEPDF_HOST", "0.0.0.0"),
			Port:            envIntOr("SLIDEPDF_PORT", 8000),
			Mode:            envOr("SLIDEPDF_MODE", "release"),
			ShutdownTimeout: envDurationOr("SLIDEPDF_SHUTDOWN_TIMEOUT", 5*time.Second),
			CORSOrigins:     envSliceOr("SLIDEPDF_CORS_ORIGINS", []string{"*"}),
		},
		Fetch: FetchConfig{
			Timeout:      envDurationOr("SLIDEPDF_FETCH_TIMEOUT", 30*time.Second),
			UserAgent:    os.Getenv("SLIDEPDF_USER_AGENT"),
			MaxBody:      int64(envIntOr("SLIDEPDF_MAX_BODY", 10<<20)),
			MaxRedirects: envIntOr("SLIDEPDF_MAX_REDIRECTS", 10),
		},
		Browser: BrowserConfig{
			Enabled:   envBoolOr("SLIDEPDF_BROWSER", false),
			Headless:  envBoolOr("SLIDEPDF_HEADLESS", true),
			NoSandbox: envBoolOr("SLIDEPDF_NO_SANDBOX", false),
			Bin:       os.Getenv("SLIDEPDF_BROWSER_BIN"),
			Proxy:     os.Getenv("SLIDEPDF_PROXY"),
			Stealth:   envBoolOr("SLIDEPDF_STEALTH", true),
		},
		Download: DownloadConfig{
			Concurrency:   envIntOr("SLIDEPDF_DOWNLOAD_CONCURRENCY", 4),
			RatePerSecond: envFloatOr("SLIDEPDF_DOWNLOAD_RPS", 0),
			Burst:         envIntOr("SLIDEPDF_DOWNLOAD_BURST", 1),
		},
		Static: StaticConfig{
			Dir: envOr("SLIDEPDF_STATIC_DIR", "web/dist"),
		},
		Metrics: MetricsConfig{
			Enabled: envBoolOr("SLIDEPDF_METRICS", true),
			Path:    envOr("SLIDEPDF_METRICS_PATH", "/metrics"),
		},
		Log: LogConfig{
			Level:  envOr("SLIDEPDF_LOG_LEVEL", "info"),
			Format: envOr("SLIDEPDF_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envSliceOr splits a comma-separated variable, dropping empty items.
func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
