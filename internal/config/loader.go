package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yomu-app/yomu/internal/deck"
	"github.com/yomu-app/yomu/internal/engine"
	"github.com/yomu-app/yomu/internal/score"
)

// Defaults applied by [Validate] when the corresponding field is unset.
const (
	DefaultListenAddr  = ":8080"
	DefaultBaseURL     = "https://api.wanikani.com"
	DefaultLanguage    = "ja-JP"
	DefaultSampleRate  = 16000
	DefaultAutoAdvance = 2 * time.Second
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values and fills in
// defaults for unset fields. It returns a joined error listing all
// validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Source
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = DefaultBaseURL
	}
	if cfg.Source.Token == "" {
		errs = append(errs, errors.New("source.token is required"))
	}

	// Capture
	if cfg.Capture.Recognizer == "" {
		cfg.Capture.Recognizer = RecognizerNone
	}
	if !cfg.Capture.Recognizer.IsValid() {
		errs = append(errs, fmt.Errorf("capture.recognizer %q is invalid; valid values: deepgram, none", cfg.Capture.Recognizer))
	}
	if cfg.Capture.Recognizer == RecognizerDeepgram && cfg.Capture.APIKey == "" {
		errs = append(errs, errors.New("capture.api_key is required when capture.recognizer is deepgram"))
	}
	if cfg.Capture.Language == "" {
		cfg.Capture.Language = DefaultLanguage
	}
	if cfg.Capture.SampleRate == 0 {
		cfg.Capture.SampleRate = DefaultSampleRate
	}
	if cfg.Capture.SampleRate < 8000 || cfg.Capture.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d is out of range [8000, 48000]", cfg.Capture.SampleRate))
	}

	// Practice
	if cfg.Practice.Mode == "" {
		cfg.Practice.Mode = engine.ModeManual
	}
	if !cfg.Practice.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("practice.mode %q is invalid; valid values: manual, voice", cfg.Practice.Mode))
	}
	if cfg.Practice.Mode == engine.ModeVoice && cfg.Capture.Recognizer == RecognizerNone {
		errs = append(errs, errors.New("practice.mode is voice but capture.recognizer is none"))
	}
	if cfg.Practice.Filter == "" {
		cfg.Practice.Filter = deck.FilterAll
	}
	if !cfg.Practice.Filter.IsValid() {
		errs = append(errs, fmt.Errorf("practice.filter %q is invalid; valid values: all, apprentice, guru, master, enlightened, burned", cfg.Practice.Filter))
	}
	if cfg.Practice.AutoAdvance == 0 {
		cfg.Practice.AutoAdvance = Duration(DefaultAutoAdvance)
	}
	if cfg.Practice.AutoAdvance < 0 {
		errs = append(errs, fmt.Errorf("practice.auto_advance %s must not be negative", cfg.Practice.AutoAdvance))
	}

	// Thresholds
	th := &cfg.Practice.Thresholds
	if th.Correct == 0 {
		th.Correct = score.DefaultCorrectThreshold
	}
	if th.Close == 0 {
		th.Close = score.DefaultCloseThreshold
	}
	if th.Correct < 0 || th.Correct > 100 {
		errs = append(errs, fmt.Errorf("practice.thresholds.correct %d is out of range [0, 100]", th.Correct))
	}
	if th.Close < 0 || th.Close > 100 {
		errs = append(errs, fmt.Errorf("practice.thresholds.close %d is out of range [0, 100]", th.Close))
	}
	if th.Close > th.Correct {
		errs = append(errs, fmt.Errorf("practice.thresholds.close %d must not exceed practice.thresholds.correct %d", th.Close, th.Correct))
	}

	if cfg.Practice.Shuffle && cfg.Practice.ShuffleSeed == 0 {
		slog.Warn("practice.shuffle is enabled with shuffle_seed 0; deck order is stable but arbitrary")
	}

	return errors.Join(errs...)
}
