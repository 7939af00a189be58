package client

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthLogin_StoresCredentials(t *testing.T) {
	useConfigDir(t)
	var out bytes.Buffer

	require.NoError(t, runAuthLogin(strings.NewReader(""), &out, testKey, "http://rag.internal:8080"))
	assert.Contains(t, out.String(), "Successfully logged in")

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, testKey, config.APIKey)
	assert.Equal(t, "http://rag.internal:8080", config.APIURL)
}

func TestAuthLogin_PromptsForKey(t *testing.T) {
	useConfigDir(t)
	var out bytes.Buffer

	require.NoError(t, runAuthLogin(strings.NewReader("  typed-key  \n"), &out, "", defaultAPIURL))
	assert.Contains(t, out.String(), "Enter API key: ")

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, "typed-key", config.APIKey)
}

func TestAuthLogin_EmptyKey(t *testing.T) {
	path := useConfigDir(t)

	err := runAuthLogin(strings.NewReader("\n"), &bytes.Buffer{}, "", defaultAPIURL)
	require.Error(t, err)
	assert.NoFileExists(t, path)
}

func TestAuthLogin_OverwritesExisting(t *testing.T) {
	useConfigDir(t)
	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIKey: "old-key", APIURL: "http://old"}))

	require.NoError(t, runAuthLogin(strings.NewReader(""), &bytes.Buffer{}, "new-key", "http://new"))

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Equal(t, "new-key", config.APIKey)
	assert.Equal(t, "http://new", config.APIURL)
}

func TestAuthLogin_RejectsBadURL(t *testing.T) {
	path := useConfigDir(t)

	err := runAuthLogin(strings.NewReader(""), &bytes.Buffer{}, testKey, "rag.internal:8080")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid API URL")
	assert.NoFileExists(t, path)
}

func TestPrintAuthStatus(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printAuthStatus(&out, Credentials{APIKey: testKey, APIURL: "http://env:8080", Source: SourceEnv}, false))
	assert.Contains(t, out.String(), "Source: env")
	assert.Contains(t, out.String(), "API Key: rgs_...6789")
	assert.NotContains(t, out.String(), testKey)

	out.Reset()
	require.NoError(t, printAuthStatus(&out, Credentials{APIURL: defaultAPIURL, Source: SourceNone}, false))
	assert.Contains(t, out.String(), "Not authenticated")

	out.Reset()
	require.NoError(t, printAuthStatus(&out, Credentials{APIKey: testKey, APIURL: "http://g", Source: SourceGlobalConfig}, true))
	var status map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.Equal(t, true, status["authenticated"])
	assert.Equal(t, "global_config", status["source"])
	assert.Equal(t, "rgs_...6789", status["api_key"])
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "***", maskAPIKey("short"))
	assert.Equal(t, "abcd...wxyz", maskAPIKey("abcdefghijklmnopqrstuvwxyz"))
}
