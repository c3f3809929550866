package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// setupConfigTestEnv points the config directory at a temp dir
func setupConfigTestEnv(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv(EnvHome, tmpDir)
	t.Setenv(EnvAPIKey, "")
	t.Setenv(EnvDatabaseURL, "")
	t.Setenv(EnvStorageBucket, "")
	return tmpDir
}

func TestDefaultConfig(t *testing.T) {
	setupConfigTestEnv(t)
	cfg := DefaultConfig()

	if cfg.MessagesPath != "messages" {
		t.Errorf("MessagesPath = %q, want messages", cfg.MessagesPath)
	}
	if cfg.PhotosPath != "chat_photos" {
		t.Errorf("PhotosPath = %q, want chat_photos", cfg.PhotosPath)
	}
	if cfg.PhotoMaxDimension != 1600 {
		t.Errorf("PhotoMaxDimension = %d, want 1600", cfg.PhotoMaxDimension)
	}
	if cfg.RefreshMinutes != 50 {
		t.Errorf("RefreshMinutes = %d, want 50", cfg.RefreshMinutes)
	}
	if cfg.Verbose {
		t.Error("Expected Verbose to be false")
	}
}

func TestGetConfigDir(t *testing.T) {
	tmpDir := setupConfigTestEnv(t)

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() returned error: %v", err)
	}
	if dir != tmpDir {
		t.Errorf("GetConfigDir() = %s, want %s", dir, tmpDir)
	}

	SetConfigDir("/custom/dir")
	defer SetConfigDir("")
	dir, _ = GetConfigDir()
	if dir != "/custom/dir" {
		t.Errorf("GetConfigDir() with override = %s, want /custom/dir", dir)
	}
}

func TestGetConfigDir_HomeFallback(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv(EnvHome, "")
	t.Setenv("HOME", tmpDir)

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() returned error: %v", err)
	}
	if dir != filepath.Join(tmpDir, ".friendlychat") {
		t.Errorf("GetConfigDir() = %s", dir)
	}
}

func TestLoadConfig_FileNotExists(t *testing.T) {
	setupConfigTestEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if cfg.MessagesPath != "messages" {
		t.Errorf("Expected defaults, got MessagesPath=%q", cfg.MessagesPath)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	tmpDir := setupConfigTestEnv(t)

	cfg := DefaultConfig()
	cfg.APIKey = "key-123"
	cfg.DatabaseURL = "https://demo.firebaseio.com"
	cfg.StorageBucket = "demo.appspot.com"
	cfg.Verbose = true

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig() returned error: %v", err)
	}

	configPath := filepath.Join(tmpDir, "config.json")
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	var saved Config
	if err := json.Unmarshal(data, &saved); err != nil {
		t.Fatalf("Failed to parse saved config: %v", err)
	}
	if saved.APIKey != "key-123" {
		t.Errorf("APIKey = %s, want key-123", saved.APIKey)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Failed to stat config file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("File permissions = %o, want 600", perm)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() returned error: %v", err)
	}
	if loaded.DatabaseURL != cfg.DatabaseURL || loaded.StorageBucket != cfg.StorageBucket || !loaded.Verbose {
		t.Errorf("LoadConfig() = %+v, want %+v", loaded, cfg)
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	tmpDir := setupConfigTestEnv(t)

	if err := os.WriteFile(filepath.Join(tmpDir, "config.json"), []byte("{invalid"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(); err == nil {
		t.Error("LoadConfig() with invalid JSON should return error")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	setupConfigTestEnv(t)

	cfg := DefaultConfig()
	cfg.APIKey = "from-file"
	if err := SaveConfig(cfg); err != nil {
		t.Fatal(err)
	}

	t.Setenv(EnvAPIKey, "from-env")
	t.Setenv(EnvDatabaseURL, "https://env.firebaseio.com")

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.APIKey != "from-env" {
		t.Errorf("APIKey = %s, want from-env", loaded.APIKey)
	}
	if loaded.DatabaseURL != "https://env.firebaseio.com" {
		t.Errorf("DatabaseURL = %s", loaded.DatabaseURL)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"complete", Config{APIKey: "k", DatabaseURL: "https://x.firebaseio.com"}, false},
		{"emulator url", Config{APIKey: "k", DatabaseURL: "http://127.0.0.1:9000"}, false},
		{"missing key", Config{DatabaseURL: "https://x.firebaseio.com"}, true},
		{"missing database", Config{APIKey: "k"}, true},
		{"bad scheme", Config{APIKey: "k", DatabaseURL: "x.firebaseio.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfigEndpoints(t *testing.T) {
	cfg := Config{}
	if cfg.IdentityEndpoint() != "https://identitytoolkit.googleapis.com/v1" {
		t.Errorf("IdentityEndpoint() = %s", cfg.IdentityEndpoint())
	}
	if cfg.MessagesCollection() != "messages" {
		t.Errorf("MessagesCollection() = %s", cfg.MessagesCollection())
	}
	if cfg.PhotosFolder() != "chat_photos" {
		t.Errorf("PhotosFolder() = %s", cfg.PhotosFolder())
	}

	cfg = Config{AuthURL: "http://localhost:9099/identitytoolkit.googleapis.com/v1", MessagesPath: "/rooms/general/"}
	if cfg.IdentityEndpoint() != cfg.AuthURL {
		t.Errorf("IdentityEndpoint() = %s, want override", cfg.IdentityEndpoint())
	}
	if cfg.MessagesCollection() != "rooms/general" {
		t.Errorf("MessagesCollection() = %s, want rooms/general", cfg.MessagesCollection())
	}
}

func TestConfigSet(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		check   func(Config) bool
		wantErr bool
	}{
		{"api_key", "abc", func(c Config) bool { return c.APIKey == "abc" }, false},
		{"database_url", "https://x.firebaseio.com/", func(c Config) bool { return c.DatabaseURL == "https://x.firebaseio.com" }, false},
		{"photo_max_dimension", "800", func(c Config) bool { return c.PhotoMaxDimension == 800 }, false},
		{"photo_max_dimension", "-1", nil, true},
		{"refresh_minutes", "abc", nil, true},
		{"verbose", "true", func(c Config) bool { return c.Verbose }, false},
		{"markdown.enable_emoji", "false", func(c Config) bool { return !c.Markdown.EnableEmoji }, false},
		{"copy_to_clipboard", "maybe", nil, true},
		{"unknown", "x", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := Config{Markdown: DefaultMarkdownConfig()}
			err := cfg.Set(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("Set(%s, %s) did not apply: %+v", tt.key, tt.value, cfg)
			}
		})
	}
}

func TestSettableKeysAreAccepted(t *testing.T) {
	for _, key := range SettableKeys() {
		cfg := Config{}
		value := "x"
		switch key {
		case "photo_max_dimension", "refresh_minutes":
			value = "1"
		case "verbose", "copy_to_clipboard", "markdown.enable_emoji", "markdown.preserve_newlines":
			value = "true"
		}
		if err := cfg.Set(key, value); err != nil {
			t.Errorf("Set(%s) returned error: %v", key, err)
		}
	}
}

func TestGetDownloadDir(t *testing.T) {
	tmpDir := setupConfigTestEnv(t)

	dir, err := GetDownloadDir(Config{})
	if err != nil {
		t.Fatalf("GetDownloadDir() returned error: %v", err)
	}
	if dir != filepath.Join(tmpDir, "photos") {
		t.Errorf("GetDownloadDir() = %s", dir)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("download dir was not created: %v", err)
	}
}

func TestConfigGetRoundTripsSet(t *testing.T) {
	setupConfigTestEnv(t)
	values := map[string]string{
		"api_key":                    "key-1",
		"database_url":               "https://demo.firebaseio.com",
		"photo_max_dimension":        "800",
		"copy_to_clipboard":          "true",
		"markdown.style":             "light",
		"markdown.preserve_newlines": "false",
	}

	cfg := DefaultConfig()
	for key, value := range values {
		if err := cfg.Set(key, value); err != nil {
			t.Fatalf("Set(%q) error: %v", key, err)
		}
	}
	for key, want := range values {
		got, err := cfg.Get(key)
		if err != nil {
			t.Fatalf("Get(%q) error: %v", key, err)
		}
		if got != want {
			t.Errorf("Get(%q) = %q, want %q", key, got, want)
		}
	}

	for _, key := range SettableKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) error: %v", key, err)
		}
	}
	if _, err := cfg.Get("nope"); err == nil {
		t.Error("Get of an unknown key should fail")
	}
}
