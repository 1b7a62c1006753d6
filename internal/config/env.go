// Package config provides centralized configuration management.
// Every STOREFRONT_* variable is read here and nowhere else.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Defaults used when the environment does not say otherwise.
const (
	DefaultAPIURL   = "http://localhost:5000"
	DefaultTimeout  = 15 * time.Second
	DefaultRate     = 10.0
	DefaultLogLevel = "warn"
)

// StorefrontEnv holds all storefront environment variables.
type StorefrontEnv struct {
	// APIURL is the remote storefront base URL (STOREFRONT_API_URL)
	APIURL string

	// Timeout bounds every gateway request (STOREFRONT_TIMEOUT)
	Timeout time.Duration

	// Rate caps outgoing requests per second, 0 disables pacing (STOREFRONT_RATE)
	Rate float64

	// LogLevel is the minimum structured log level (STOREFRONT_LOG_LEVEL)
	LogLevel string

	// Home overrides the state directory (STOREFRONT_HOME)
	Home string

	// NoColor disables colored output (NO_COLOR)
	NoColor bool
}

var (
	env     *StorefrontEnv
	envOnce sync.Once
)

// Env returns the singleton environment configuration.
// Thread-safe, loads once on first call.
func Env() *StorefrontEnv {
	envOnce.Do(func() {
		env = &StorefrontEnv{
			APIURL:   strings.TrimRight(getEnvDefault("STOREFRONT_API_URL", DefaultAPIURL), "/"),
			Timeout:  getEnvDuration("STOREFRONT_TIMEOUT", DefaultTimeout),
			Rate:     getEnvFloat("STOREFRONT_RATE", DefaultRate),
			LogLevel: getEnvDefault("STOREFRONT_LOG_LEVEL", DefaultLogLevel),
			Home:     os.Getenv("STOREFRONT_HOME"),
			NoColor:  os.Getenv("NO_COLOR") != "",
		}
	})
	return env
}

// ResetEnv resets the cached environment (for testing).
func ResetEnv() {
	envOnce = sync.Once{}
	env = nil
	pathsOnce = sync.Once{}
	paths = nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

// Paths holds standard storefront directory paths.
type Paths struct {
	// Home is the storefront home directory (~/.storefront)
	Home string

	// Data is the data directory (~/.storefront/data)
	Data string

	// CredentialDB is the persisted credential database (~/.storefront/data/credentials.db)
	CredentialDB string

	// AuditDB is the command journal (~/.storefront/data/audit.db)
	AuditDB string
}

var (
	paths     *Paths
	pathsOnce sync.Once
)

// GetPaths returns the singleton paths configuration.
func GetPaths() *Paths {
	pathsOnce.Do(func() {
		home := Env().Home
		if home == "" {
			userHome, err := os.UserHomeDir()
			if err != nil {
				userHome = "."
			}
			home = filepath.Join(userHome, ".storefront")
		}
		data := filepath.Join(home, "data")

		paths = &Paths{
			Home:         home,
			Data:         data,
			CredentialDB: filepath.Join(data, "credentials.db"),
			AuditDB:      filepath.Join(data, "audit.db"),
		}
	})
	return paths
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}
