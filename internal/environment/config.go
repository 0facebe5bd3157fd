package environment

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Host-configured absolute ceilings. Requested budgets are clamped to
// these; requests above them are still valid, requests of zero or less
// are rejected.
const (
	DefaultMaxTimeoutSec  = 60
	DefaultMaxMemoryBytes = 512 * 1024 * 1024
	DefaultMaxOutputBytes = 1024 * 1024
)

type EnvConfig struct {
	// queue endpoints for serve mode
	ReqSqsUrl string
	ResSqsUrl string
	NatsUrl   string
	AwsRegion string

	// DataDir holds per-execution working directories and the seed
	// file cache.
	DataDir string

	// host ceilings
	MaxTimeoutSec  int
	MaxMemoryBytes int64
	MaxOutputBytes int64
	MaxConcurrent  int64

	// MemPollInterval is the best-effort memory polling interval used
	// when the host lacks hard memory enforcement.
	MemPollInterval time.Duration
}

func ReadEnvConfig() (*EnvConfig, error) {
	// a missing .env file is fine, env vars may be set directly
	_ = godotenv.Load()

	result := &EnvConfig{
		ReqSqsUrl: os.Getenv("RUNBOX_REQ_SQS_URL"),
		ResSqsUrl: os.Getenv("RUNBOX_RES_SQS_URL"),
		NatsUrl:   os.Getenv("RUNBOX_NATS_URL"),
		AwsRegion: os.Getenv("AWS_REGION"),

		DataDir: os.Getenv("RUNBOX_DATA_DIR"),

		MaxTimeoutSec:  DefaultMaxTimeoutSec,
		MaxMemoryBytes: DefaultMaxMemoryBytes,
		MaxOutputBytes: DefaultMaxOutputBytes,
		MaxConcurrent:  4,

		MemPollInterval: 100 * time.Millisecond,
	}

	if result.DataDir == "" {
		result.DataDir = "/var/lib/runbox"
	}

	var err error
	if result.MaxTimeoutSec, err = intEnv("RUNBOX_MAX_TIMEOUT_SEC", result.MaxTimeoutSec); err != nil {
		return nil, err
	}
	if result.MaxMemoryBytes, err = int64Env("RUNBOX_MAX_MEMORY_BYTES", result.MaxMemoryBytes); err != nil {
		return nil, err
	}
	if result.MaxOutputBytes, err = int64Env("RUNBOX_MAX_OUTPUT_BYTES", result.MaxOutputBytes); err != nil {
		return nil, err
	}
	if result.MaxConcurrent, err = int64Env("RUNBOX_MAX_CONCURRENT", result.MaxConcurrent); err != nil {
		return nil, err
	}

	pollMs, err := intEnv("RUNBOX_MEM_POLL_MS", int(result.MemPollInterval.Milliseconds()))
	if err != nil {
		return nil, err
	}
	result.MemPollInterval = time.Duration(pollMs) * time.Millisecond

	return result, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return parsed, nil
}

func int64Env(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return parsed, nil
}
