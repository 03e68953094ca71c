// Package config provides the configuration schema and loader for the Yomu
// pronunciation practice server.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yomu-app/yomu/internal/deck"
	"github.com/yomu-app/yomu/internal/engine"
)

// Duration wraps time.Duration so values can be written as "2s" or "500ms"
// in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in Go syntax.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// String returns the duration in Go syntax.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// LogLevel controls log verbosity for the Yomu server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// RecognizerName selects the speech recognizer implementation.
type RecognizerName string

const (
	// RecognizerDeepgram streams audio to the Deepgram WebSocket API.
	RecognizerDeepgram RecognizerName = "deepgram"

	// RecognizerNone disables speech capture; only manual review works.
	RecognizerNone RecognizerName = "none"
)

// IsValid reports whether r is a recognised recognizer name.
func (r RecognizerName) IsValid() bool {
	return r == RecognizerDeepgram || r == RecognizerNone
}

// Config is the root configuration structure for Yomu.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Source   SourceConfig   `yaml:"source"`
	Capture  CaptureConfig  `yaml:"capture"`
	Practice PracticeConfig `yaml:"practice"`
	Playback PlaybackConfig `yaml:"playback"`
}

// ServerConfig holds network and logging settings for the Yomu server.
type ServerConfig struct {
	// ListenAddr is the TCP address for the metrics/health endpoint
	// (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// SourceConfig configures the vocabulary API the deck is loaded from.
type SourceConfig struct {
	// BaseURL is the root of the WaniKani-compatible API
	// (e.g., "https://api.wanikani.com"). Leave empty for the default.
	BaseURL string `yaml:"base_url"`

	// Token is the API token sent as a Bearer credential.
	Token string `yaml:"token"`
}

// CaptureConfig configures speech recognition.
type CaptureConfig struct {
	// Recognizer selects the speech-to-text backend.
	Recognizer RecognizerName `yaml:"recognizer"`

	// APIKey authenticates against the recognizer's API.
	APIKey string `yaml:"api_key"`

	// Language is the BCP-47 tag of the practiced language.
	// Defaults to "ja-JP".
	Language string `yaml:"language"`

	// SampleRate is the microphone capture rate in Hz. Defaults to 16000.
	SampleRate int `yaml:"sample_rate"`
}

// PracticeConfig holds session defaults.
type PracticeConfig struct {
	// Mode is the initial review mode, "manual" or "voice".
	Mode engine.Mode `yaml:"mode"`

	// Filter selects the SRS stage band to practice.
	Filter deck.Filter `yaml:"filter"`

	// Shuffle enables deterministic seeded deck shuffling.
	Shuffle bool `yaml:"shuffle"`

	// ShuffleSeed keys the shuffle order. 0 means unseeded (stable order
	// still, but derived from seed 0).
	ShuffleSeed uint64 `yaml:"shuffle_seed"`

	// AutoAdvance is the delay before an auto-graded voice item advances.
	// Defaults to 2s.
	AutoAdvance Duration `yaml:"auto_advance"`

	// Thresholds tune the similarity cutoffs for grading.
	Thresholds ThresholdConfig `yaml:"thresholds"`
}

// ThresholdConfig holds the pronunciation similarity cutoffs, both on the
// 0–100 scale. Correct must be at least Close.
type ThresholdConfig struct {
	// Correct is the minimum similarity graded as correct. Defaults to 90.
	Correct int `yaml:"correct"`

	// Close is the minimum similarity graded as close. Defaults to 70.
	Close int `yaml:"close"`
}

// PlaybackConfig configures reference-audio playback.
type PlaybackConfig struct {
	// Enabled turns reference-audio playback on reveal on or off.
	Enabled bool `yaml:"enabled"`
}
