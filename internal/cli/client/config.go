package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const configFileName = "config.json"

// GlobalConfig is the credential file written by `ragsync auth login`.
type GlobalConfig struct {
	APIKey string `json:"api_key"`
	APIURL string `json:"api_url,omitempty"`
}

// CredentialSource names the layer an API key was resolved from.
type CredentialSource string

const (
	SourceFlag         CredentialSource = "flag"
	SourceEnv          CredentialSource = "env"
	SourceGlobalConfig CredentialSource = "global_config"
	SourceNone         CredentialSource = "none"
)

// Credentials is the outcome of the flag, env, config file cascade. Key and
// URL are resolved independently, so a key from the environment can pair
// with a URL from the config file.
type Credentials struct {
	APIKey string
	APIURL string
	Source CredentialSource
}

// Overridden in tests.
var configDirFunc = func() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(dir, "ragsync"), nil
}

// GetConfigDir returns the platform-specific ragsync configuration directory.
func GetConfigDir() (string, error) {
	return configDirFunc()
}

// GetConfigPath returns the full path of the credential file.
func GetConfigPath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// LoadGlobalConfig reads the credential file. A missing file yields a nil
// config and no error.
func LoadGlobalConfig() (*GlobalConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config GlobalConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &config, nil
}

// SaveGlobalConfig replaces the credential file atomically, readable only by
// the current user.
func SaveGlobalConfig(config *GlobalConfig) error {
	if config == nil {
		return errors.New("config cannot be nil")
	}
	if config.APIURL != "" {
		normalized, err := normalizeAPIURL(config.APIURL)
		if err != nil {
			return err
		}
		config.APIURL = normalized
	}

	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, configFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

// DeleteGlobalConfig removes the credential file if present.
func DeleteGlobalConfig() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete config file: %w", err)
	}
	return nil
}

// ResolveCredentials applies the cascade flag, then RAGSYNC_API_KEY and
// RAGSYNC_API_URL (a .env file in the working directory counts), then the
// credential file. The URL falls back to the local default.
func ResolveCredentials(flagKey, flagURL string) (Credentials, error) {
	_ = godotenv.Load()

	creds := Credentials{Source: SourceNone}
	switch envKey := os.Getenv(envAPIKey); {
	case flagKey != "":
		creds.APIKey, creds.Source = flagKey, SourceFlag
	case envKey != "":
		creds.APIKey, creds.Source = envKey, SourceEnv
	}
	creds.APIURL = firstNonEmpty(flagURL, os.Getenv(envAPIURL))

	if creds.APIKey == "" || creds.APIURL == "" {
		global, err := LoadGlobalConfig()
		if err != nil {
			return creds, err
		}
		if global != nil {
			if creds.APIKey == "" && global.APIKey != "" {
				creds.APIKey, creds.Source = global.APIKey, SourceGlobalConfig
			}
			creds.APIURL = firstNonEmpty(creds.APIURL, global.APIURL)
		}
	}

	creds.APIURL = firstNonEmpty(creds.APIURL, defaultAPIURL)
	return creds, nil
}

func normalizeAPIURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid API URL %q: expected http(s)://host[:port]", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
