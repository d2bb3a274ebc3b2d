package config

import (
	"strings"
	"testing"
	"time"

	listening "github.com/koscakluka/justplayit/core"
	"github.com/spf13/afero"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	store := NewStoreFs(afero.NewMemMapFs(), "/home/test/.justplayit/config.yaml")

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !cfg.AutomaticListening {
		t.Fatalf("expected automatic listening to default to enabled")
	}
	if cfg.Cooldown.Duration != listening.DefaultCooldown {
		t.Fatalf("expected %s cooldown, got %s", listening.DefaultCooldown, cfg.Cooldown)
	}
	if cfg.TimedRecognition.Duration != listening.DefaultTimedRecognition {
		t.Fatalf("expected %s timed recognition, got %s", listening.DefaultTimedRecognition, cfg.TimedRecognition)
	}
	if !cfg.ExplicitFilter {
		t.Fatalf("expected explicit filter to default to enabled")
	}
}

func TestSaveThenLoadKeepsSettings(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStoreFs(fs, "/home/test/.justplayit/config.yaml")

	cfg := Default()
	cfg.AutomaticListening = false
	cfg.Cooldown = Duration{30 * time.Second}
	cfg.TriggerPhrase = "hey play"
	if err := store.Save(cfg); err != nil {
		t.Fatalf("expected save to succeed, got %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("expected load to succeed, got %v", err)
	}
	if loaded.AutomaticListening {
		t.Fatalf("expected automatic listening to stay disabled")
	}
	if loaded.Cooldown.Duration != 30*time.Second {
		t.Fatalf("expected 30s cooldown, got %s", loaded.Cooldown)
	}
	if loaded.TriggerPhrase != "hey play" {
		t.Fatalf("expected trigger phrase %q, got %q", "hey play", loaded.TriggerPhrase)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/cfg/config.yaml"
	if err := afero.WriteFile(fs, path, []byte("cooldown: 5s\ncapture:\n  backend: portaudio\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := NewStoreFs(fs, path).Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Cooldown.Duration != 5*time.Second {
		t.Fatalf("expected 5s cooldown, got %s", cfg.Cooldown)
	}
	if cfg.Capture.Backend != CapturePortaudio {
		t.Fatalf("expected portaudio backend, got %q", cfg.Capture.Backend)
	}
	if cfg.TimedRecognition.Duration != listening.DefaultTimedRecognition {
		t.Fatalf("expected default timed recognition, got %s", cfg.TimedRecognition)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/cfg/config.yaml"
	if err := afero.WriteFile(fs, path, []byte("cooldown: soon\n"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := NewStoreFs(fs, path).Load(); err == nil {
		t.Fatalf("expected parse error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Capture.Backend = "alsa" },
			wantErr: "capture.backend",
		},
		{
			name:    "model extractor without vocab",
			mutate:  func(c *Config) { c.Entities = Entities{Extractor: ExtractorModel, InferenceEndpoint: "http://localhost"} },
			wantErr: "entities.vocab_path",
		},
		{
			name:    "negative cooldown",
			mutate:  func(c *Config) { c.Cooldown = Duration{-time.Second} },
			wantErr: "cooldown",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			cfg := Default()
			testCase.mutate(cfg)
			err := cfg.Validate()
			if testCase.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), testCase.wantErr) {
				t.Fatalf("expected error containing %q, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestSaveOnReadOnlyFilesystemFails(t *testing.T) {
	store := NewStoreFs(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/cfg/config.yaml")

	if err := store.Save(Default()); err == nil {
		t.Fatalf("expected save on read-only filesystem to fail")
	}
}
