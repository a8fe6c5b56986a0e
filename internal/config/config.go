// Package config loads the orchestrator's environment-variable
// configuration (spec.md §6). Both cmd/api and cmd/worker start from
// this package.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config is the full set of environment-derived settings.
type Config struct {
	DatabaseURL      string
	JobsDir          string
	PollInterval     time.Duration
	RunnerTimeout    time.Duration
	LogDir           string
	RateLimitPerMin  int
	LogLevel         string

	// ArtifactMirrorBucket enables the optional S3 artifact mirror
	// (SPEC_FULL.md §6) when non-empty.
	ArtifactMirrorBucket   string
	ArtifactMirrorRegion   string
	ArtifactMirrorEndpoint string
}

// Load reads Config from the process environment, applying the defaults
// from spec.md §6. DATABASE_URL is the only required variable.
func Load() (Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required")
	}

	pollSecs, err := getFloat("RUNNER_POLL_SECS", 1)
	if err != nil {
		return Config{}, err
	}

	timeoutSecs, err := getInt("RUNNER_TIMEOUT_SECS", 30)
	if err != nil {
		return Config{}, err
	}

	rateLimit, err := getInt("RATE_LIMIT_PER_MIN", 200)
	if err != nil {
		return Config{}, err
	}

	return Config{
		DatabaseURL:            databaseURL,
		JobsDir:                getString("RUNNER_JOBS_DIR", "/srv/sandbox-orchestrator/var/jobs"),
		PollInterval:           time.Duration(pollSecs * float64(time.Second)),
		RunnerTimeout:          time.Duration(timeoutSecs) * time.Second,
		LogDir:                 getString("RUNNER_LOG_DIR", "logs"),
		RateLimitPerMin:        rateLimit,
		LogLevel:               getString("LOG_LEVEL", "INFO"),
		ArtifactMirrorBucket:   os.Getenv("ARTIFACT_MIRROR_BUCKET"),
		ArtifactMirrorRegion:   getString("ARTIFACT_MIRROR_REGION", "us-east-1"),
		ArtifactMirrorEndpoint: os.Getenv("ARTIFACT_MIRROR_ENDPOINT"),
	}, nil
}

func getString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", name, err)
	}
	return n, nil
}

func getFloat(name string, def float64) (float64, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", name, err)
	}
	return f, nil
}
