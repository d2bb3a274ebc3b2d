// Package config manages the justplayit settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	listening "github.com/koscakluka/justplayit/core"
	"github.com/spf13/afero"
)

const (
	dirName  = ".justplayit"
	fileName = "config.yaml"
)

const (
	CaptureMiniaudio = "miniaudio"
	CapturePortaudio = "portaudio"

	ExtractorModel = "model"
	ExtractorGroq  = "groq"
)

// Config is the persisted application configuration.
type Config struct {
	AutomaticListening bool     `yaml:"automatic_listening"`
	Cooldown           Duration `yaml:"cooldown"`
	TimedRecognition   Duration `yaml:"timed_recognition"`
	TriggerPhrase      string   `yaml:"trigger_phrase,omitempty"`
	ExplicitFilter     bool     `yaml:"explicit_filter"`

	Capture    Capture    `yaml:"capture"`
	Entities   Entities   `yaml:"entities"`
	Deepgram   Deepgram   `yaml:"deepgram,omitempty"`
	AppleMusic AppleMusic `yaml:"apple_music,omitempty"`
}

type Capture struct {
	Backend    string `yaml:"backend"`
	SampleRate int    `yaml:"sample_rate,omitempty"`
	Channels   int    `yaml:"channels,omitempty"`
	BufferSize int    `yaml:"buffer_size,omitempty"`
}

type Entities struct {
	Extractor         string `yaml:"extractor"`
	VocabPath         string `yaml:"vocab_path,omitempty"`
	InferenceEndpoint string `yaml:"inference_endpoint,omitempty"`
	GroqModel         string `yaml:"groq_model,omitempty"`
}

type Deepgram struct {
	Model    string `yaml:"model,omitempty"`
	Language string `yaml:"language,omitempty"`
}

type AppleMusic struct {
	Storefront string `yaml:"storefront,omitempty"`
}

// Duration is a time.Duration written as "15s" in the YAML file.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the configuration used when no file exists yet.
func Default() *Config {
	return &Config{
		AutomaticListening: true,
		Cooldown:           Duration{listening.DefaultCooldown},
		TimedRecognition:   Duration{listening.DefaultTimedRecognition},
		ExplicitFilter:     true,
		Capture: Capture{
			Backend:    CaptureMiniaudio,
			SampleRate: 16000,
			Channels:   1,
			BufferSize: 512,
		},
		Entities: Entities{Extractor: ExtractorGroq},
	}
}

// Validate reports settings the application cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Capture.Backend {
	case CaptureMiniaudio, CapturePortaudio:
	default:
		errs = append(errs, fmt.Errorf("capture.backend: unknown backend %q", c.Capture.Backend))
	}
	switch c.Entities.Extractor {
	case ExtractorGroq:
	case ExtractorModel:
		if c.Entities.VocabPath == "" {
			errs = append(errs, errors.New("entities.vocab_path: required by the model extractor"))
		}
		if c.Entities.InferenceEndpoint == "" {
			errs = append(errs, errors.New("entities.inference_endpoint: required by the model extractor"))
		}
	default:
		errs = append(errs, fmt.Errorf("entities.extractor: unknown extractor %q", c.Entities.Extractor))
	}
	if c.Cooldown.Duration < 0 {
		errs = append(errs, errors.New("cooldown: must not be negative"))
	}
	if c.TimedRecognition.Duration < 0 {
		errs = append(errs, errors.New("timed_recognition: must not be negative"))
	}
	return errors.Join(errs...)
}

// DefaultPath returns ~/.justplayit/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, dirName, fileName), nil
}

// Store reads and writes one config file.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore opens the config file at path on the OS filesystem.
func NewStore(path string) *Store {
	return NewStoreFs(afero.NewOsFs(), path)
}

func NewStoreFs(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

func (s *Store) Path() string { return s.path }

// Load reads the config file. A missing file yields Default().
func (s *Store) Load() (*Config, error) {
	cfg := Default()
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return cfg, nil
}

func (s *Store) Save(cfg *Config) error {
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
