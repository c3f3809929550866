// Package config handles configuration and credential storage for friendlychat.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/diogo/friendlychat/internal/models"
)

// Environment variables that override values from config.json
const (
	EnvHome          = "FRIENDLYCHAT_HOME"
	EnvAPIKey        = "FRIENDLYCHAT_API_KEY"
	EnvDatabaseURL   = "FRIENDLYCHAT_DATABASE_URL"
	EnvStorageBucket = "FRIENDLYCHAT_STORAGE_BUCKET"
)

// MarkdownConfig configures markdown rendering of text messages
type MarkdownConfig struct {
	Style            string `json:"style"`             // "dark", "light", or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji"`      // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines"` // Preserve original line breaks
}

// Config represents the user configuration
type Config struct {
	// Project settings. APIKey and DatabaseURL are required.
	APIKey        string `json:"api_key"`
	DatabaseURL   string `json:"database_url"`
	StorageBucket string `json:"storage_bucket"`

	// Endpoint overrides, mostly useful against local emulators.
	AuthURL    string `json:"auth_url,omitempty"`
	TokenURL   string `json:"token_url,omitempty"`
	StorageURL string `json:"storage_url,omitempty"`

	MessagesPath string `json:"messages_path"`
	PhotosPath   string `json:"photos_path"`

	// PhotoMaxDimension downscales larger images before upload. 0 disables.
	PhotoMaxDimension int `json:"photo_max_dimension"`
	// RefreshMinutes is how often the session token is refreshed in the background.
	RefreshMinutes int `json:"refresh_minutes"`

	Verbose         bool           `json:"verbose"`
	CopyToClipboard bool           `json:"copy_to_clipboard"`
	TUITheme        string         `json:"tui_theme,omitempty"`    // TUI color theme
	DownloadDir     string         `json:"download_dir,omitempty"` // Directory for saving photos
	Markdown        MarkdownConfig `json:"markdown,omitempty"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	dir, _ := GetConfigDir()
	return Config{
		MessagesPath:      models.DefaultMessagesPath,
		PhotosPath:        models.DefaultPhotosPath,
		PhotoMaxDimension: 1600,
		RefreshMinutes:    50,
		Verbose:           false,
		CopyToClipboard:   false,
		TUITheme:          "tokyonight",
		DownloadDir:       filepath.Join(dir, "photos"),
		Markdown:          DefaultMarkdownConfig(),
	}
}

// configDirOverride is set by the --config-dir flag.
var configDirOverride string

// SetConfigDir overrides the configuration directory for this process.
func SetConfigDir(dir string) {
	configDirOverride = dir
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if dir := os.Getenv(EnvHome); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".friendlychat"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// 0o700: the directory holds session tokens
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetLogPath returns the path to the log file
func GetLogPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "friendlychat.log"), nil
}

// GetDownloadDir returns the download directory from config, creating it if necessary
func GetDownloadDir(cfg Config) (string, error) {
	dir := cfg.DownloadDir
	if dir == "" {
		configDir, err := GetConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(configDir, "photos")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	return dir, nil
}

// LoadConfig loads the configuration from disk and applies environment overrides
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnv()
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// The API key is not a secret, but the file sits next to credentials.json.
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides project settings from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv(EnvStorageBucket); v != "" {
		c.StorageBucket = v
	}
}

// Validate checks that the project settings needed to talk to the platform are present.
func (c Config) Validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "api_key")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "database_url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s (run 'friendlychat config set <key> <value>')",
			strings.Join(missing, ", "))
	}
	if !strings.HasPrefix(c.DatabaseURL, "http://") && !strings.HasPrefix(c.DatabaseURL, "https://") {
		return fmt.Errorf("database_url must be an http(s) URL: %s", c.DatabaseURL)
	}
	return nil
}

// Endpoint helpers fall back to the public platform endpoints.

func (c Config) IdentityEndpoint() string {
	return firstNonEmpty(c.AuthURL, models.EndpointIdentityToolkit)
}

func (c Config) TokenEndpoint() string {
	return firstNonEmpty(c.TokenURL, models.EndpointSecureToken)
}

func (c Config) StorageEndpoint() string {
	return firstNonEmpty(c.StorageURL, models.EndpointStorage)
}

func (c Config) MessagesCollection() string {
	return strings.Trim(firstNonEmpty(c.MessagesPath, models.DefaultMessagesPath), "/")
}

func (c Config) PhotosFolder() string {
	return strings.Trim(firstNonEmpty(c.PhotosPath, models.DefaultPhotosPath), "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// SettableKeys returns the keys accepted by Set, in display order.
func SettableKeys() []string {
	return []string{
		"api_key", "database_url", "storage_bucket",
		"auth_url", "token_url", "storage_url",
		"messages_path", "photos_path",
		"photo_max_dimension", "refresh_minutes",
		"verbose", "copy_to_clipboard", "tui_theme", "download_dir",
		"markdown.style", "markdown.enable_emoji", "markdown.preserve_newlines",
	}
}

// Set updates a single setting by its JSON key.
func (c *Config) Set(key, value string) error {
	switch key {
	case "api_key":
		c.APIKey = value
	case "database_url":
		c.DatabaseURL = strings.TrimRight(value, "/")
	case "storage_bucket":
		c.StorageBucket = value
	case "auth_url":
		c.AuthURL = strings.TrimRight(value, "/")
	case "token_url":
		c.TokenURL = value
	case "storage_url":
		c.StorageURL = strings.TrimRight(value, "/")
	case "messages_path":
		c.MessagesPath = value
	case "photos_path":
		c.PhotosPath = value
	case "tui_theme":
		c.TUITheme = value
	case "download_dir":
		c.DownloadDir = value
	case "markdown.style":
		c.Markdown.Style = value
	case "photo_max_dimension", "refresh_minutes":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
		}
		if key == "photo_max_dimension" {
			c.PhotoMaxDimension = n
		} else {
			c.RefreshMinutes = n
		}
	case "verbose", "copy_to_clipboard", "markdown.enable_emoji", "markdown.preserve_newlines":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s must be true or false, got %q", key, value)
		}
		switch key {
		case "verbose":
			c.Verbose = b
		case "copy_to_clipboard":
			c.CopyToClipboard = b
		case "markdown.enable_emoji":
			c.Markdown.EnableEmoji = b
		default:
			c.Markdown.PreserveNewLines = b
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

// Get returns a setting by its JSON key, formatted the way Set accepts it.
func (c Config) Get(key string) (string, error) {
	switch key {
	case "api_key":
		return c.APIKey, nil
	case "database_url":
		return c.DatabaseURL, nil
	case "storage_bucket":
		return c.StorageBucket, nil
	case "auth_url":
		return c.AuthURL, nil
	case "token_url":
		return c.TokenURL, nil
	case "storage_url":
		return c.StorageURL, nil
	case "messages_path":
		return c.MessagesPath, nil
	case "photos_path":
		return c.PhotosPath, nil
	case "photo_max_dimension":
		return strconv.Itoa(c.PhotoMaxDimension), nil
	case "refresh_minutes":
		return strconv.Itoa(c.RefreshMinutes), nil
	case "verbose":
		return strconv.FormatBool(c.Verbose), nil
	case "copy_to_clipboard":
		return strconv.FormatBool(c.CopyToClipboard), nil
	case "tui_theme":
		return c.TUITheme, nil
	case "download_dir":
		return c.DownloadDir, nil
	case "markdown.style":
		return c.Markdown.Style, nil
	case "markdown.enable_emoji":
		return strconv.FormatBool(c.Markdown.EnableEmoji), nil
	case "markdown.preserve_newlines":
		return strconv.FormatBool(c.Markdown.PreserveNewLines), nil
	}
	return "", fmt.Errorf("unknown config key: %s", key)
}
