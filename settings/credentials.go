// Package settings resolves the credentials pageloc needs to reach the
// translation service.
//
// Lookup order for the API key, first non-empty wins:
//  1. BUILT_IN_FORGE_API_KEY (process environment, then <root>/.env)
//  2. VITE_APP_ID (process environment, then <root>/.env)
//
// BUILT_IN_FORGE_API_URL overrides the configured base URL the same way.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// EnvAPIKey is the primary API key variable.
	EnvAPIKey = "BUILT_IN_FORGE_API_KEY"
	// EnvAppID is consulted when EnvAPIKey is unset.
	EnvAppID = "VITE_APP_ID"
	// EnvAPIURL overrides the translation base URL.
	EnvAPIURL = "BUILT_IN_FORGE_API_URL"

	// EnvFileName is the dotenv file read from the project root.
	EnvFileName = ".env"
)

// ErrNoAPIKey is returned when no API key can be found anywhere.
var ErrNoAPIKey = errors.New("no API key: set " + EnvAPIKey + " in the environment or in " + EnvFileName)

// API holds the resolved translation credentials.
type API struct {
	Key string
	// BaseURL is empty unless EnvAPIURL is set.
	BaseURL string
	// Source names the variable the key came from.
	Source string
}

// LoadAPI resolves the API key and base URL for the project at root.
// A missing .env file is not an error; a malformed one is.
func LoadAPI(root string) (*API, error) {
	v := viper.New()
	v.AutomaticEnv()

	path := filepath.Join(root, EnvFileName)
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	api := &API{BaseURL: v.GetString(EnvAPIURL)}
	for _, name := range []string{EnvAPIKey, EnvAppID} {
		if key := v.GetString(name); key != "" {
			api.Key = key
			api.Source = name
			return api, nil
		}
	}
	return nil, ErrNoAPIKey
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
