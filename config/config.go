// Package config holds the durable client configuration, including the
// bearer token used for note sync.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

const debounceDefaultMs = 800

type HotkeySettings struct {
	PushToTalk    string `json:"push_to_talk"`
	ReadClipboard string `json:"read_clipboard"`
	PauseSpeech   string `json:"pause_speech"`
	StopSpeech    string `json:"stop_speech"`
}

type STTSettings struct {
	Language string `json:"language"`
	Format   string `json:"format"` // "wav" or "flac"
}

type TTSSettings struct {
	Engine string  `json:"engine"`
	Voice  string  `json:"voice"`
	Speed  float64 `json:"speed"`
}

type SyncSettings struct {
	ServerURL  string `json:"server_url"`
	Token      string `json:"token"`
	PageSize   int    `json:"page_size"`
	DebounceMs int    `json:"debounce_ms"`
}

type Config struct {
	Hotkeys HotkeySettings `json:"hotkeys"`
	STT     STTSettings    `json:"stt"`
	TTS     TTSSettings    `json:"tts"`
	Sync    SyncSettings   `json:"sync"`

	path string
}

func defaults() *Config {
	return &Config{
		Hotkeys: HotkeySettings{
			PushToTalk:    "ctrl+shift+space",
			ReadClipboard: "ctrl+shift+r",
			PauseSpeech:   "ctrl+shift+p",
			StopSpeech:    "ctrl+shift+s",
		},
		STT: STTSettings{
			Language: "en",
			Format:   "flac",
		},
		TTS: TTSSettings{
			Engine: "edge",
			Voice:  "en-US-AriaNeural",
			Speed:  1.0,
		},
		Sync: SyncSettings{
			ServerURL:  "http://127.0.0.1:8432",
			PageSize:   100,
			DebounceMs: debounceDefaultMs,
		},
	}
}

func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".orion", "config.json"), nil
}

// Load reads the config file at path, creating it with defaults when missing.
// A .env file (if present) and ORION_* environment variables override the
// server URL and token without being written back to disk.
func Load(path string) (*Config, error) {
	cfg := defaults()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if err := cfg.Save(); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	godotenv.Load()
	if v := os.Getenv("ORION_SERVER_URL"); v != "" {
		cfg.Sync.ServerURL = v
	}
	if v := os.Getenv("ORION_API_TOKEN"); v != "" {
		cfg.Sync.Token = v
	}

	if cfg.Sync.DebounceMs <= 0 {
		cfg.Sync.DebounceMs = debounceDefaultMs
	}
	if cfg.Sync.PageSize <= 0 {
		cfg.Sync.PageSize = 100
	}
	if cfg.TTS.Speed <= 0 {
		cfg.TTS.Speed = 1.0
	}
	return cfg, nil
}

func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config has no backing path")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, append(data, '\n'), 0600)
}

// SetToken persists a verified bearer token.
func (c *Config) SetToken(token string) error {
	c.Sync.Token = token
	return c.Save()
}
