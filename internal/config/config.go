package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for autopost.
type Config struct {
	BaseDir     string `toml:"base_dir"`
	LogDir      string `toml:"log_dir"`
	AgentsDir   string `toml:"agents_dir"`
	DownloadDir string `toml:"download_dir"`

	Vault     VaultConfig     `toml:"vault"`
	History   HistoryConfig   `toml:"history"`
	Archive   ArchiveConfig   `toml:"archive"`
	Download  DownloadConfig  `toml:"download"`
	Platforms PlatformsConfig `toml:"platforms"`
	Defaults  DefaultsConfig  `toml:"defaults"`
}

// VaultConfig controls the credential cipher.
type VaultConfig struct {
	Type string `toml:"type"` // "age" (default) or "test"

	// WorkFactor is the scrypt work factor (log2 N); 0 selects the default.
	WorkFactor int `toml:"work_factor,omitempty"`

	// MinSecretLength is enforced when the master secret is prompted for.
	MinSecretLength int `toml:"min_secret_length"`
}

// HistoryConfig represents configuration for the post-history ledger.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type HistoryConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ArchiveConfig represents configuration for the posted-video archive.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type ArchiveConfig struct {
	Type string `toml:"type"` // "none", "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket    string `toml:"s3_bucket,omitempty"`
	S3Prefix    string `toml:"s3_prefix,omitempty"`
	S3Region    string `toml:"s3_region,omitempty"`
	S3AccessKey string `toml:"s3_access_key,omitempty"`
	S3SecretKey string `toml:"s3_secret_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSArchiveRoot string `toml:"fs_archive_root,omitempty"`
}

// DownloadConfig controls the video downloader.
type DownloadConfig struct {
	// Quality preset: "low", "medium", "high", or "auto".
	Quality string `toml:"quality"`

	MaxFileSizeMB  int    `toml:"max_file_size_mb"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	YtdlpPath      string `toml:"ytdlp_path,omitempty"` // defaults to "yt-dlp" on PATH
}

// PlatformsConfig controls how uploads reach the social platforms.
type PlatformsConfig struct {
	// UploaderCommand is an external program invoked per upload. It receives
	// the platform, file path and caption as arguments and credentials via
	// environment variables. Empty disables posting.
	UploaderCommand string `toml:"uploader_command,omitempty"`
}

// DefaultsConfig holds tunables applied to agents that do not override them.
type DefaultsConfig struct {
	CheckIntervalMinutes int `toml:"check_interval_minutes"`
	MaxRetryAttempts     int `toml:"max_retry_attempts"`
	StopTimeoutSeconds   int `toml:"stop_timeout_seconds"`
}

// NewConfig creates a Config with the provided base directory and defaults.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:     baseDir,
		LogDir:      filepath.Join(baseDir, "log"),
		AgentsDir:   filepath.Join(baseDir, "agents"),
		DownloadDir: filepath.Join(baseDir, "downloads"),
		Vault: VaultConfig{
			Type:            "age",
			MinSecretLength: 12,
		},
		History: HistoryConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Archive: ArchiveConfig{
			Type: "none",
		},
		Download: DownloadConfig{
			Quality:        "high",
			MaxFileSizeMB:  500,
			TimeoutSeconds: 300,
		},
		Defaults: DefaultsConfig{
			CheckIntervalMinutes: 5,
			MaxRetryAttempts:     3,
			StopTimeoutSeconds:   10,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
// This is an internal helper and should not be exported.
func writeToFile(path string, cfg *Config) error {
	// Ensure the directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
