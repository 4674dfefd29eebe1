package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvLogLevel   = "EXERCISER_LOG_LEVEL"
	EnvConfigFile = "EXERCISER_CONFIG"
)

// LoadEnv loads environment variables from a .env file when one exists.
func LoadEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	return godotenv.Load()
}

// GetEnvWithDefault gets an environment variable with a default value
func GetEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
