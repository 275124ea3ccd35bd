package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Config holds application configuration
type Config struct {
	DataDir         string   `json:"data_dir"`
	FeedPath        string   `json:"feed_path"`
	DatabaseURL     string   `json:"database_url,omitempty"`
	DefaultRate     float64  `json:"default_rate"`
	UsePreview      bool     `json:"use_preview"`
	DefaultVolume   float64  `json:"default_volume"`
	StatusInterval  Duration `json:"status_interval"`
	WaveformTimeout Duration `json:"waveform_timeout"`
	WaveformWidth   int      `json:"waveform_width"`
	TagWorkers      int      `json:"tag_workers"`
	LogLevel        string   `json:"log_level"`
	LogPath         string   `json:"log_path"`
	KeyBindings     KeyMap   `json:"key_bindings"`
}

// Duration is a time.Duration stored as a string such as "500ms".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// KeyMap defines keyboard shortcuts
type KeyMap struct {
	Play            string `json:"play"`
	PlayPause       string `json:"play_pause"`
	Stop            string `json:"stop"`
	SeekForward     string `json:"seek_forward"`
	SeekBack        string `json:"seek_back"`
	SeekCommit      string `json:"seek_commit"`
	RateUp          string `json:"rate_up"`
	RateDown        string `json:"rate_down"`
	Minimize        string `json:"minimize"`
	ClosePlayer     string `json:"close_player"`
	FullScreen      string `json:"full_screen"`
	Retry           string `json:"retry"`
	InlinePlayPause string `json:"inline_play_pause"`
	Quit            string `json:"quit"`
}

// GetDefaultConfig returns default configuration
func GetDefaultConfig() *Config {
	return &Config{
		DataDir:         "./data",
		FeedPath:        "./data/feed.json",
		DefaultRate:     1.0,
		UsePreview:      false,
		DefaultVolume:   1.0,
		StatusInterval:  Duration{time.Second},
		WaveformTimeout: Duration{5 * time.Second},
		WaveformWidth:   48,
		TagWorkers:      4,
		LogLevel:        "info",
		LogPath:         "./data/logs/player.log",
		KeyBindings: KeyMap{
			Play:            "enter",
			PlayPause:       " ",
			Stop:            "s",
			SeekForward:     "right",
			SeekBack:        "left",
			SeekCommit:      "tab",
			RateUp:          "+",
			RateDown:        "-",
			Minimize:        "m",
			ClosePlayer:     "x",
			FullScreen:      "f",
			Retry:           "r",
			InlinePlayPause: "i",
			Quit:            "q",
		},
	}
}

// Validate rejects values the player cannot run with.
func (c *Config) Validate() error {
	if c.DefaultRate <= 0 {
		return fmt.Errorf("default_rate must be positive, got %v", c.DefaultRate)
	}
	if c.DefaultVolume < 0 || c.DefaultVolume > 1 {
		return fmt.Errorf("default_volume must be within [0,1], got %v", c.DefaultVolume)
	}
	if c.StatusInterval.Duration <= 0 {
		return fmt.Errorf("status_interval must be positive")
	}
	if c.WaveformWidth <= 0 {
		return fmt.Errorf("waveform_width must be positive, got %d", c.WaveformWidth)
	}
	if c.TagWorkers <= 0 {
		return fmt.Errorf("tag_workers must be positive, got %d", c.TagWorkers)
	}
	return nil
}

// LoadConfig reads and unmarshals configuration from file. Missing keys keep
// their defaults.
func LoadConfig(path string) (*Config, error) {
	config := GetDefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

// SaveConfig marshals and saves configuration to file
func SaveConfig(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadOrCreate loads config from path or creates default if not exists.
// Environment overrides are applied on top and never written back.
func LoadOrCreate(path string) (*Config, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveConfig(config, path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	ApplyEnv(config)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

// LoadDotEnv loads .env files into the process environment. Variables that
// are already set win. Missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := lo.Filter(files, func(f string, _ int) bool {
		_, err := os.Stat(f)
		return err == nil
	})
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// ApplyEnv overrides config fields from FEEDAUDIO_* variables.
func ApplyEnv(c *Config) {
	c.DataDir = getEnv("FEEDAUDIO_DATA_DIR", c.DataDir)
	c.FeedPath = getEnv("FEEDAUDIO_FEED", c.FeedPath)
	c.DatabaseURL = getEnv("FEEDAUDIO_DATABASE_URL", c.DatabaseURL)
	c.DefaultRate = getEnvFloat("FEEDAUDIO_RATE", c.DefaultRate)
	c.UsePreview = getEnvBool("FEEDAUDIO_PREVIEW", c.UsePreview)
	c.DefaultVolume = getEnvFloat("FEEDAUDIO_VOLUME", c.DefaultVolume)
	c.StatusInterval.Duration = getEnvDuration("FEEDAUDIO_STATUS_INTERVAL", c.StatusInterval.Duration)
	c.WaveformTimeout.Duration = getEnvDuration("FEEDAUDIO_WAVEFORM_TIMEOUT", c.WaveformTimeout.Duration)
	c.WaveformWidth = getEnvInt("FEEDAUDIO_WAVEFORM_WIDTH", c.WaveformWidth)
	c.TagWorkers = getEnvInt("FEEDAUDIO_TAG_WORKERS", c.TagWorkers)
	c.LogLevel = getEnv("FEEDAUDIO_LOG_LEVEL", c.LogLevel)
	c.LogPath = getEnv("FEEDAUDIO_LOG_PATH", c.LogPath)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	if path := os.Getenv("FEEDAUDIO_CONFIG"); path != "" {
		return path
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "feedaudio", "config.json")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(home, ".config", "feedaudio", "config.json")
}
