package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
)

var validLevels = []string{"debug", "info", "warn", "warning", "error", "fatal"}

// ValidateAndFixConfig validates the configuration and fixes any issues it can.
// It returns one warning per adjustment or suspicious value.
func ValidateAndFixConfig(config *Config) []string {
	var warnings []string

	// Check server timeouts
	minTimeout := 1 * time.Second
	maxTimeout := 5 * time.Minute

	if config.Server.ReadTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too short (%v), setting to %v", config.Server.ReadTimeout, minTimeout))
		config.Server.ReadTimeout = minTimeout
	} else if config.Server.ReadTimeout > maxTimeout {
		warnings = append(warnings, fmt.Sprintf("Server read timeout is too long (%v), setting to %v", config.Server.ReadTimeout, maxTimeout))
		config.Server.ReadTimeout = maxTimeout
	}

	if config.Server.WriteTimeout < 0 {
		warnings = append(warnings, "Server write timeout is negative, disabling it")
		config.Server.WriteTimeout = 0
	} else if config.Server.WriteTimeout > 0 && config.Features.StreamProxy {
		warnings = append(warnings, fmt.Sprintf("Server write timeout (%v) will cut long audio streams", config.Server.WriteTimeout))
	}

	if config.Server.IdleTimeout < minTimeout {
		warnings = append(warnings, fmt.Sprintf("Server idle timeout is too short (%v), setting to %v", config.Server.IdleTimeout, minTimeout))
		config.Server.IdleTimeout = minTimeout
	}

	if config.Server.ShutdownTimeout <= 0 {
		warnings = append(warnings, "Server shutdown timeout is not set, setting to 15s")
		config.Server.ShutdownTimeout = 15 * time.Second
	}

	// Extractor
	if config.Extractor.ProcessTimeout < 10*time.Second {
		warnings = append(warnings, fmt.Sprintf("Extractor process timeout is too short (%v), setting to 10s", config.Extractor.ProcessTimeout))
		config.Extractor.ProcessTimeout = 10 * time.Second
	}
	if config.Extractor.SpawnRate < 0 {
		warnings = append(warnings, "Extractor spawn rate is negative, disabling spawn throttling")
		config.Extractor.SpawnRate = 0
	}
	if config.Extractor.SpawnRate > 0 && config.Extractor.SpawnBurst < 1 {
		warnings = append(warnings, "Extractor spawn burst must be at least 1, setting to 1")
		config.Extractor.SpawnBurst = 1
	}

	// Search
	if clamped := lo.Clamp(config.Search.DefaultTake, 1, 50); clamped != config.Search.DefaultTake {
		warnings = append(warnings, fmt.Sprintf("Search default take %d is out of range, setting to %d", config.Search.DefaultTake, clamped))
		config.Search.DefaultTake = clamped
	}
	if clamped := lo.Clamp(config.Search.RelatedTake, 1, 50); clamped != config.Search.RelatedTake {
		warnings = append(warnings, fmt.Sprintf("Related default take %d is out of range, setting to %d", config.Search.RelatedTake, clamped))
		config.Search.RelatedTake = clamped
	}

	// Workers
	if config.Workers.MaxConcurrent < 1 {
		warnings = append(warnings, fmt.Sprintf("Worker count %d is invalid, setting to 1", config.Workers.MaxConcurrent))
		config.Workers.MaxConcurrent = 1
	}
	if config.Workers.QueueTimeout < 0 {
		warnings = append(warnings, "Worker queue timeout is negative, waiting without a limit")
		config.Workers.QueueTimeout = 0
	}

	// Downloads
	if config.Download.MaxParallel < 1 {
		warnings = append(warnings, fmt.Sprintf("Download parallelism %d is invalid, setting to 1", config.Download.MaxParallel))
		config.Download.MaxParallel = 1
	}
	if clamped := lo.Clamp(config.Download.ProgressStep, 1, 50); clamped != config.Download.ProgressStep {
		warnings = append(warnings, fmt.Sprintf("Download progress step %d is out of range, setting to %d", config.Download.ProgressStep, clamped))
		config.Download.ProgressStep = clamped
	}
	if config.Stream.CacheTTL < 0 {
		warnings = append(warnings, "Stream cache TTL is negative, disabling the cache")
		config.Stream.CacheTTL = 0
	}
	if config.Stream.CacheSize < 1 {
		warnings = append(warnings, fmt.Sprintf("Stream cache size %d is invalid, setting to 512", config.Stream.CacheSize))
		config.Stream.CacheSize = 512
	}

	if config.Features.Downloads {
		if err := CheckWritable(config.Download.Dir); err != nil {
			warnings = append(warnings, fmt.Sprintf("Download directory %s is not writable: %v", config.Download.Dir, err))
		}
	}

	// Saavn
	if config.Features.Saavn && !strings.HasPrefix(config.Saavn.BaseURL, "http") {
		warnings = append(warnings, fmt.Sprintf("Saavn base URL %q is invalid, disabling Saavn search", config.Saavn.BaseURL))
		config.Features.Saavn = false
	}

	// Redis
	if config.Redis.Enabled {
		host, port, err := net.SplitHostPort(config.Redis.Address)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("Invalid Redis address: %s", config.Redis.Address))
		case host == "":
			warnings = append(warnings, fmt.Sprintf("Redis address has empty host: %s", config.Redis.Address))
		case port == "":
			warnings = append(warnings, fmt.Sprintf("Redis address has empty port: %s", config.Redis.Address))
		}
	}

	// Rate limiting
	if config.RateLimit.Enabled {
		if config.RateLimit.Requests < 1 {
			warnings = append(warnings, "Rate limit requests must be at least 1, setting to 60")
			config.RateLimit.Requests = 60
		}
		if config.RateLimit.Window < time.Second {
			warnings = append(warnings, "Rate limit window is too short, setting to 1m")
			config.RateLimit.Window = time.Minute
		}
	}

	// WebSocket
	if config.WebSocket.PingPeriod >= config.WebSocket.PongWait {
		fixed := config.WebSocket.PongWait * 9 / 10
		warnings = append(warnings, fmt.Sprintf("WebSocket ping period must be shorter than pong wait, setting to %v", fixed))
		config.WebSocket.PingPeriod = fixed
	}

	// Logging
	if !lo.Contains(validLevels, strings.ToLower(config.Logging.Level)) {
		warnings = append(warnings, fmt.Sprintf("Invalid logging level: %s, setting to 'info'", config.Logging.Level))
		config.Logging.Level = "info"
	}

	return warnings
}

// CheckWritable creates dir if needed and probes it with a temporary file.
func CheckWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	testFile := filepath.Join(dir, ".test_write")
	if err := os.WriteFile(testFile, []byte{}, 0o644); err != nil {
		return err
	}
	return os.Remove(testFile)
}
