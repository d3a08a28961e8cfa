package config

import (
	"os"
)

// EnvFileVar names the variable pointing at an alternative .env file.
const EnvFileVar = "FXQUOTE_ENV_FILE"

// GetEnv retrieves an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// EnvFile returns the .env file the binaries should load.
func EnvFile() string {
	return GetEnv(EnvFileVar, ".env")
}
