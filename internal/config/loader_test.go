package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/yomu-app/yomu/internal/config"
	"github.com/yomu-app/yomu/internal/deck"
	"github.com/yomu-app/yomu/internal/engine"
)

const minimalYAML = `
source:
  token: "abc123"
`

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(minimalYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr = %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
	if cfg.Source.BaseURL != config.DefaultBaseURL {
		t.Errorf("base_url = %q, want %q", cfg.Source.BaseURL, config.DefaultBaseURL)
	}
	if cfg.Capture.Recognizer != config.RecognizerNone {
		t.Errorf("recognizer = %q, want none", cfg.Capture.Recognizer)
	}
	if cfg.Capture.Language != "ja-JP" {
		t.Errorf("language = %q, want ja-JP", cfg.Capture.Language)
	}
	if cfg.Capture.SampleRate != config.DefaultSampleRate {
		t.Errorf("sample_rate = %d, want %d", cfg.Capture.SampleRate, config.DefaultSampleRate)
	}
	if cfg.Practice.Mode != engine.ModeManual {
		t.Errorf("mode = %q, want manual", cfg.Practice.Mode)
	}
	if cfg.Practice.Filter != deck.FilterAll {
		t.Errorf("filter = %q, want all", cfg.Practice.Filter)
	}
	if cfg.Practice.AutoAdvance != config.Duration(2*time.Second) {
		t.Errorf("auto_advance = %s, want 2s", cfg.Practice.AutoAdvance)
	}
	if cfg.Practice.Thresholds.Correct != 90 || cfg.Practice.Thresholds.Close != 70 {
		t.Errorf("thresholds = %+v, want 90/70", cfg.Practice.Thresholds)
	}
}

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":9090"
  log_level: debug
source:
  base_url: "https://wk.example.com"
  token: "abc123"
capture:
  recognizer: deepgram
  api_key: "dg-key"
  language: "ja"
  sample_rate: 44100
practice:
  mode: voice
  filter: apprentice
  shuffle: true
  shuffle_seed: 7
  auto_advance: 3s
  thresholds:
    correct: 85
    close: 60
playback:
  enabled: true
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Practice.Mode != engine.ModeVoice {
		t.Errorf("mode = %q, want voice", cfg.Practice.Mode)
	}
	if cfg.Practice.Filter != deck.FilterApprentice {
		t.Errorf("filter = %q, want apprentice", cfg.Practice.Filter)
	}
	if !cfg.Practice.Shuffle || cfg.Practice.ShuffleSeed != 7 {
		t.Errorf("shuffle = %v/%d", cfg.Practice.Shuffle, cfg.Practice.ShuffleSeed)
	}
	if cfg.Practice.AutoAdvance != config.Duration(3*time.Second) {
		t.Errorf("auto_advance = %s, want 3s", cfg.Practice.AutoAdvance)
	}
	if cfg.Practice.Thresholds.Correct != 85 || cfg.Practice.Thresholds.Close != 60 {
		t.Errorf("thresholds = %+v", cfg.Practice.Thresholds)
	}
	if !cfg.Playback.Enabled {
		t.Error("playback.enabled = false, want true")
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	yaml := minimalYAML + `
sorcery: true
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Error("unknown top-level field accepted, want decode error")
	}
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing token",
			yaml: `server: {listen_addr: ":8080"}`,
			want: "source.token",
		},
		{
			name: "bad log level",
			yaml: minimalYAML + "server:\n  log_level: loud\n",
			want: "server.log_level",
		},
		{
			name: "deepgram without api key",
			yaml: minimalYAML + "capture:\n  recognizer: deepgram\n",
			want: "capture.api_key",
		},
		{
			name: "bad recognizer",
			yaml: minimalYAML + "capture:\n  recognizer: parrot\n",
			want: "capture.recognizer",
		},
		{
			name: "voice mode without recognizer",
			yaml: minimalYAML + "practice:\n  mode: voice\n",
			want: "capture.recognizer is none",
		},
		{
			name: "bad mode",
			yaml: minimalYAML + "practice:\n  mode: karaoke\n",
			want: "practice.mode",
		},
		{
			name: "bad filter",
			yaml: minimalYAML + "practice:\n  filter: sensei\n",
			want: "practice.filter",
		},
		{
			name: "sample rate out of range",
			yaml: minimalYAML + "capture:\n  sample_rate: 4000\n",
			want: "sample_rate",
		},
		{
			name: "close above correct",
			yaml: minimalYAML + "practice:\n  thresholds:\n    correct: 60\n    close: 80\n",
			want: "must not exceed",
		},
		{
			name: "negative auto advance",
			yaml: minimalYAML + "practice:\n  auto_advance: -1s\n",
			want: "auto_advance",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tc.yaml))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error should mention %q, got: %v", tc.want, err)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
practice:
  mode: karaoke
  filter: sensei
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation errors, got nil")
	}
	for _, want := range []string{"source.token", "practice.mode", "practice.filter"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}
