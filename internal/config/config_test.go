// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME at a temp dir so the real user config is never read.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

// =============================================================================
// LOAD TESTS
// =============================================================================

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "http://localhost:11434", cfg.Backend.URL)
	assert.Equal(t, "llama3.2", cfg.Backend.Model)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 20, cfg.Client.MaxMessages)
	assert.Equal(t, 10, cfg.Client.HistoryWindow)
	assert.Equal(t, filepath.Join(home, ".ollama-relay", "history.db"), cfg.Client.DBPath)
	assert.Equal(t, "127.0.0.1:3001", cfg.Addr())
}

func TestLoad_TOMLFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[server]
port = 8080
cors_origins = ["http://localhost:3000"]

[backend]
url = "http://gpu-box:11434/"
model = "qwen2.5"
probe_timeout = "10s"

[client]
history_window = 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "http://gpu-box:11434", cfg.Backend.URL, "trailing slash trimmed")
	assert.Equal(t, "qwen2.5", cfg.Backend.Model)
	assert.Equal(t, 10*time.Second, cfg.Backend.ProbeTimeout)
	assert.Equal(t, 4, cfg.Client.HistoryWindow)
	assert.Equal(t, 20, cfg.Client.MaxMessages, "untouched keys keep defaults")
}

func TestLoad_DefaultLocation(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".ollama-relay", "config.toml"), "[backend]\nmodel = \"mistral\"\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mistral", cfg.Backend.Model)
}

func TestLoad_Errors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		path    string
		wantErr string
	}{
		{"missing explicit file", "", filepath.Join(dir, "nope.toml"), "nope.toml"},
		{"bad syntax", "[server\nport=1", "", "failed to decode TOML"},
		{"unknown key", "[server]\nprot = 1\n", "", "unknown config keys"},
		{"bad port", "[server]\nport = 70000\n", "", "server.port"},
		{"bad backend url", "[backend]\nurl = \"ftp://x\"\n", "", "backend.url"},
	}

	for i, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := tc.path
			if path == "" {
				path = filepath.Join(dir, "cfg", string(rune('a'+i))+".toml")
				writeFile(t, path, tc.content)
			}
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[server]\nport = 8080\n[backend]\nmodel = \"from-file\"\n")

	t.Setenv("RELAY_PORT", "9090")
	t.Setenv("RELAY_MODEL", "from-env")
	t.Setenv("RELAY_OLLAMA_URL", "http://10.0.0.5:11434")
	t.Setenv("RELAY_CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("RELAY_PROBE_ON_START", "true")
	t.Setenv("RELAY_HISTORY_WINDOW", "0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Backend.Model)
	assert.Equal(t, "http://10.0.0.5:11434", cfg.Backend.URL)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Server.ProbeOnStart)
	assert.Equal(t, 0, cfg.Client.HistoryWindow, "explicit zero is honored")
}

func TestLoad_EnvBadValue(t *testing.T) {
	isolate(t)
	t.Setenv("RELAY_PORT", "not-a-number")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, path, "RELAY_TEST_DOTENV_A=from-file\nRELAY_TEST_DOTENV_B=from-file\n")

	t.Setenv("RELAY_TEST_DOTENV_B", "from-env")
	t.Cleanup(func() { os.Unsetenv("RELAY_TEST_DOTENV_A") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("RELAY_TEST_DOTENV_A"))
	assert.Equal(t, "from-env", os.Getenv("RELAY_TEST_DOTENV_B"), "real environment wins")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

// =============================================================================
// VALIDATION / SAVE TESTS
// =============================================================================

func TestValidate_AggregatesErrors(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Backend.Model = " "
	cfg.Client.MaxMessages = 0

	err := cfg.Validate()
	require.Error(t, err)

	var verrs ValidateErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3)
}

func TestSaveTOML_LoadBack(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "saved.toml")

	cfg := Default()
	cfg.Backend.Model = "phi3"
	cfg.Server.ProbeOnStart = true
	require.NoError(t, SaveTOML(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "phi3", loaded.Backend.Model)
	assert.True(t, loaded.Server.ProbeOnStart)
}

func TestClone_Independent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Server.CORSOrigins[0] = "http://changed"

	assert.Equal(t, "*", cfg.Server.CORSOrigins[0])
}

// =============================================================================
// WATCHER TESTS
// =============================================================================

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[backend]\nmodel = \"first\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, cfg, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	got := make(chan string, 4)
	w.Subscribe(func(c *Config) { got <- c.Backend.Model })

	writeFile(t, path, "[backend]\nmodel = \"second\"\n")

	select {
	case model := <-got:
		assert.Equal(t, "second", model)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
	assert.Equal(t, "second", w.Current().Backend.Model)
}

func TestWatcher_KeepsConfigOnInvalidFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[backend]\nmodel = \"good\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	w, err := NewWatcher(path, cfg, 20*time.Millisecond)
	require.NoError(t, err)
	defer w.Close()

	writeFile(t, path, "[server]\nport = -1\n")
	time.Sleep(300 * time.Millisecond)

	assert.Equal(t, "good", w.Current().Backend.Model)
}
