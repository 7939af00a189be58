package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "rgs_test_key_0123456789"

// useConfigDir points the global config at a fresh temp dir and returns the
// config file path.
func useConfigDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ragsync")
	path := filepath.Join(dir, "config.json")

	old := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = old })
	return path
}

func clearEnv(t *testing.T) {
	t.Setenv(envAPIKey, "")
	t.Setenv(envAPIURL, "")
}

func TestGetConfigDir(t *testing.T) {
	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))
	assert.True(t, strings.HasSuffix(dir, "ragsync"))
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "config.json"))
}

func TestLoadGlobalConfig_FileNotExists(t *testing.T) {
	useConfigDir(t)

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestLoadGlobalConfig_InvalidJSON(t *testing.T) {
	path := useConfigDir(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("{invalid json}"), 0600))

	config, err := LoadGlobalConfig()
	assert.Nil(t, config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestSaveGlobalConfig_RoundTrip(t *testing.T) {
	path := useConfigDir(t)

	original := &GlobalConfig{APIKey: testKey, APIURL: "http://rag.internal:8080"}
	require.NoError(t, SaveGlobalConfig(original))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk GlobalConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, *original, onDisk)

	loaded, err := LoadGlobalConfig()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, *original, *loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestSaveGlobalConfig_NormalizesURL(t *testing.T) {
	useConfigDir(t)

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIKey: testKey, APIURL: " https://rag.example.com/ "}))

	loaded, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://rag.example.com", loaded.APIURL)
}

func TestSaveGlobalConfig_InvalidURL(t *testing.T) {
	path := useConfigDir(t)

	err := SaveGlobalConfig(&GlobalConfig{APIKey: testKey, APIURL: "ftp://rag.example.com"})
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestSaveGlobalConfig_NilConfig(t *testing.T) {
	err := SaveGlobalConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestDeleteGlobalConfig(t *testing.T) {
	path := useConfigDir(t)

	require.NoError(t, DeleteGlobalConfig(), "missing file is not an error")

	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIKey: testKey}))
	require.NoError(t, DeleteGlobalConfig())
	assert.NoFileExists(t, path)
}

func TestResolveCredentials(t *testing.T) {
	tests := []struct {
		name    string
		flagKey string
		flagURL string
		envKey  string
		envURL  string
		global  *GlobalConfig
		want    Credentials
	}{
		{
			name: "flag wins", flagKey: "flag-key", flagURL: "http://flag:8080",
			envKey: "env-key", envURL: "http://env:8080",
			want: Credentials{APIKey: "flag-key", APIURL: "http://flag:8080", Source: SourceFlag},
		},
		{
			name: "env over global", envKey: "env-key", envURL: "http://env:8080",
			global: &GlobalConfig{APIKey: "global-key", APIURL: "http://global:8080"},
			want:   Credentials{APIKey: "env-key", APIURL: "http://env:8080", Source: SourceEnv},
		},
		{
			name: "env key without url uses default", envKey: "env-key",
			want: Credentials{APIKey: "env-key", APIURL: defaultAPIURL, Source: SourceEnv},
		},
		{
			name: "env key pairs with stored url", envKey: "env-key",
			global: &GlobalConfig{APIKey: "global-key", APIURL: "http://global:8080"},
			want:   Credentials{APIKey: "env-key", APIURL: "http://global:8080", Source: SourceEnv},
		},
		{
			name:   "global config",
			global: &GlobalConfig{APIKey: "global-key", APIURL: "http://global:8080"},
			want:   Credentials{APIKey: "global-key", APIURL: "http://global:8080", Source: SourceGlobalConfig},
		},
		{
			name: "nothing configured", envURL: "http://env:8080",
			want: Credentials{APIURL: "http://env:8080", Source: SourceNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useConfigDir(t)
			t.Setenv(envAPIKey, tt.envKey)
			t.Setenv(envAPIURL, tt.envURL)
			if tt.global != nil {
				require.NoError(t, SaveGlobalConfig(tt.global))
			}

			creds, err := ResolveCredentials(tt.flagKey, tt.flagURL)
			require.NoError(t, err)
			assert.Equal(t, tt.want, creds)
		})
	}
}

func TestResolveCredentials_CorruptConfig(t *testing.T) {
	path := useConfigDir(t)
	clearEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := ResolveCredentials("", "")
	require.Error(t, err)

	creds, err := ResolveCredentials("flag-key", "http://flag:8080")
	require.NoError(t, err, "file is not read when flags cover both fields")
	assert.Equal(t, SourceFlag, creds.Source)
}
