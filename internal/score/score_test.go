package score_test

import (
	"testing"

	"github.com/yomu-app/yomu/internal/score"
)

func TestNormalize(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"katakana to hiragana", "カバン", "かばん"},
		{"hiragana unchanged", "かばん", "かばん"},
		{"long vowel mark kept", "コーヒー", "こーひー"},
		{"small tsu kept", "がっこう", "がっこう"},
		{"half-width katakana folded", "ｶﾊﾞﾝ", "かばん"},
		{"whitespace stripped", " か ばん\t", "かばん"},
		{"punctuation stripped", "かばん。", "かばん"},
		{"full-width latin folded and lowered", "ＡＢＣ", "abc"},
		{"ascii lowered", "Kaban", "kaban"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := score.Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestPronunciation_ExactMatch(t *testing.T) {
	t.Parallel()
	s := score.New()

	res := s.Pronunciation("カバン", "かばん")
	if res.Similarity != 100 {
		t.Errorf("similarity = %d, want 100", res.Similarity)
	}
	if res.Feedback != score.Correct {
		t.Errorf("feedback = %q, want %q", res.Feedback, score.Correct)
	}
	if res.Reading != "かばん" {
		t.Errorf("reading = %q, want %q", res.Reading, "かばん")
	}
}

func TestPronunciation_ThresholdBoundaries(t *testing.T) {
	t.Parallel()
	s := score.New()

	// 10-rune reading with one substitution: similarity is exactly 90.
	res := s.Pronunciation("あいうえおかきくけこ", "あいうえおかきくけさ")
	if res.Similarity != 90 {
		t.Fatalf("similarity = %d, want 90", res.Similarity)
	}
	if res.Feedback != score.Correct {
		t.Errorf("feedback at 90 = %q, want %q", res.Feedback, score.Correct)
	}

	// Two substitutions on the same reading: 80, inside the close band.
	res = s.Pronunciation("あいうえおかきくすせ", "あいうえおかきくけこ")
	if res.Similarity != 80 {
		t.Fatalf("similarity = %d, want 80", res.Similarity)
	}
	if res.Feedback != score.Close {
		t.Errorf("feedback at 80 = %q, want %q", res.Feedback, score.Close)
	}

	// Three substitutions: 70, the exact close boundary.
	res = s.Pronunciation("あいうえおかきたちつ", "あいうえおかきくけこ")
	if res.Similarity != 70 {
		t.Fatalf("similarity = %d, want 70", res.Similarity)
	}
	if res.Feedback != score.Close {
		t.Errorf("feedback at 70 = %q, want %q", res.Feedback, score.Close)
	}

	// Four substitutions: 60, below the close band.
	res = s.Pronunciation("あいうえおかなにぬね", "あいうえおかきくけこ")
	if res.Similarity != 60 {
		t.Fatalf("similarity = %d, want 60", res.Similarity)
	}
	if res.Feedback != score.Incorrect {
		t.Errorf("feedback at 60 = %q, want %q", res.Feedback, score.Incorrect)
	}
}

func TestPronunciation_CompletelyDifferent(t *testing.T) {
	t.Parallel()
	s := score.New()

	res := s.Pronunciation("ねこ", "いぬ")
	if res.Similarity != 0 {
		t.Errorf("similarity = %d, want 0", res.Similarity)
	}
	if res.Feedback != score.Incorrect {
		t.Errorf("feedback = %q, want %q", res.Feedback, score.Incorrect)
	}
}

func TestWithThresholds(t *testing.T) {
	t.Parallel()
	s := score.New(score.WithThresholds(80, 50))

	// One substitution over eight runes: 88, inside the custom correct band.
	res := s.Pronunciation("あいうえおかきた", "あいうえおかきく")
	if res.Similarity != 88 {
		t.Fatalf("similarity = %d, want 88", res.Similarity)
	}
	if res.Feedback != score.Correct {
		t.Errorf("feedback = %q, want %q with correct threshold 80", res.Feedback, score.Correct)
	}
}

func TestWithThresholds_IgnoresInvalid(t *testing.T) {
	t.Parallel()
	// close ≥ correct is rejected; defaults stay in effect.
	s := score.New(score.WithThresholds(50, 80))

	res := s.Pronunciation("あいうえおかきくけさ", "あいうえおかきくけこ")
	if res.Similarity != 90 {
		t.Fatalf("similarity = %d, want 90", res.Similarity)
	}
	if res.Feedback != score.Correct {
		t.Errorf("feedback = %q, want %q under default thresholds", res.Feedback, score.Correct)
	}
}

func TestBestMatch(t *testing.T) {
	t.Parallel()
	s := score.New()

	t.Run("picks highest similarity", func(t *testing.T) {
		t.Parallel()
		res, ok := s.BestMatch("にほん", []string{"にっぽん", "にほん"})
		if !ok {
			t.Fatal("ok = false, want true")
		}
		if res.Reading != "にほん" {
			t.Errorf("reading = %q, want %q", res.Reading, "にほん")
		}
		if res.Similarity != 100 {
			t.Errorf("similarity = %d, want 100", res.Similarity)
		}
	})

	t.Run("tie keeps earliest reading", func(t *testing.T) {
		t.Parallel()
		res, ok := s.BestMatch("かばん", []string{"かばん", "かばん"})
		if !ok {
			t.Fatal("ok = false, want true")
		}
		if res.Reading != "かばん" {
			t.Errorf("reading = %q", res.Reading)
		}
	})

	t.Run("empty transcript", func(t *testing.T) {
		t.Parallel()
		if _, ok := s.BestMatch("", []string{"かばん"}); ok {
			t.Error("ok = true for empty transcript, want false")
		}
	})

	t.Run("whitespace transcript", func(t *testing.T) {
		t.Parallel()
		if _, ok := s.BestMatch("   \t", []string{"かばん"}); ok {
			t.Error("ok = true for whitespace transcript, want false")
		}
	})

	t.Run("no readings", func(t *testing.T) {
		t.Parallel()
		if _, ok := s.BestMatch("かばん", nil); ok {
			t.Error("ok = true with no readings, want false")
		}
	})
}
