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

const testToken = "dc_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// useConfigDir points the global config at dir for the duration of the test.
func useConfigDir(t *testing.T, dir string) string {
	t.Helper()
	configPath := filepath.Join(dir, "config.json")

	oldDir, oldPath := getConfigDirFunc, getConfigPathFunc
	getConfigDirFunc = func() (string, error) { return dir, nil }
	getConfigPathFunc = func() (string, error) { return configPath, nil }
	t.Cleanup(func() {
		getConfigDirFunc = oldDir
		getConfigPathFunc = oldPath
	})

	return configPath
}

func TestGetConfigDir(t *testing.T) {
	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(dir))
	assert.True(t, strings.HasSuffix(dir, "docchat"))
}

func TestGetConfigPath(t *testing.T) {
	path, err := GetConfigPath()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, filepath.Join("docchat", "config.json")))
}

func TestLoadGlobalConfig_FileNotExists(t *testing.T) {
	useConfigDir(t, t.TempDir())

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	assert.Nil(t, config)
}

func TestLoadGlobalConfig_ValidFile(t *testing.T) {
	configPath := useConfigDir(t, t.TempDir())
	require.NoError(t, os.WriteFile(configPath, []byte(`{"api_token":"`+testToken+`","api_url":"http://docs.internal:8080"}`), 0600))

	config, err := LoadGlobalConfig()
	require.NoError(t, err)
	require.NotNil(t, config)
	assert.Equal(t, testToken, config.APIToken)
	assert.Equal(t, "http://docs.internal:8080", config.APIURL)
}

func TestLoadGlobalConfig_InvalidJSON(t *testing.T) {
	configPath := useConfigDir(t, t.TempDir())
	require.NoError(t, os.WriteFile(configPath, []byte("{invalid json}"), 0600))

	config, err := LoadGlobalConfig()
	require.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestSaveGlobalConfig_CreatesDirectoryWithPrivateFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "docchat")
	configPath := useConfigDir(t, dir)

	err := SaveGlobalConfig(&GlobalConfig{APIToken: testToken, APIURL: defaultAPIURL})
	require.NoError(t, err)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	var stored map[string]string
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, testToken, stored["api_token"])
	assert.Equal(t, defaultAPIURL, stored["api_url"])
}

func TestSaveGlobalConfig_NilConfig(t *testing.T) {
	err := SaveGlobalConfig(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestDeleteGlobalConfig(t *testing.T) {
	configPath := useConfigDir(t, t.TempDir())
	require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIToken: testToken, APIURL: defaultAPIURL}))

	require.NoError(t, DeleteGlobalConfig())
	assert.NoFileExists(t, configPath)

	// a second delete is a no-op
	assert.NoError(t, DeleteGlobalConfig())
}

func TestIsValidAPIToken(t *testing.T) {
	tests := []struct {
		token string
		valid bool
	}{
		{testToken, true},
		{"dc_" + strings.Repeat("AB", 32), true},
		{"", false},
		{"tok_" + strings.Repeat("a", 64), false},
		{"dc_" + strings.Repeat("a", 63), false},
		{"dc_" + strings.Repeat("a", 65), false},
		{"dc_" + strings.Repeat("z", 64), false},
		{strings.Repeat("a", 67), false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, IsValidAPIToken(tt.token), tt.token)
	}
}

func TestGetCredentialSource(t *testing.T) {
	t.Run("flags win", func(t *testing.T) {
		useConfigDir(t, t.TempDir())
		t.Setenv(envAPIToken, "dc_env")
		t.Setenv(envAPIURL, "http://env")

		source, token, url := GetCredentialSource("dc_flag", "http://flag")
		assert.Equal(t, SourceFlag, source)
		assert.Equal(t, "dc_flag", token)
		assert.Equal(t, "http://flag", url)
	})

	t.Run("env before global config", func(t *testing.T) {
		useConfigDir(t, t.TempDir())
		require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIToken: testToken, APIURL: "http://file"}))
		t.Setenv(envAPIToken, "dc_env")
		t.Setenv(envAPIURL, "http://env")

		source, token, _ := GetCredentialSource("", "")
		assert.Equal(t, SourceEnv, source)
		assert.Equal(t, "dc_env", token)
	})

	t.Run("global config", func(t *testing.T) {
		useConfigDir(t, t.TempDir())
		require.NoError(t, SaveGlobalConfig(&GlobalConfig{APIToken: testToken, APIURL: "http://file"}))
		t.Setenv(envAPIToken, "")
		t.Setenv(envAPIURL, "")

		source, token, url := GetCredentialSource("", "")
		assert.Equal(t, SourceGlobalConfig, source)
		assert.Equal(t, testToken, token)
		assert.Equal(t, "http://file", url)
	})

	t.Run("none", func(t *testing.T) {
		useConfigDir(t, t.TempDir())
		t.Setenv(envAPIToken, "")
		t.Setenv(envAPIURL, "")

		source, token, url := GetCredentialSource("", "")
		assert.Equal(t, SourceNone, source)
		assert.Empty(t, token)
		assert.Empty(t, url)
	})
}
