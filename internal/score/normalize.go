package score

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize folds a transcript or reading into a canonical form for
// comparison:
//
//   - NFKC compatibility folding (half-width katakana → full-width,
//     full-width latin → ASCII)
//   - katakana → hiragana, so カバン and かばん compare equal
//   - ASCII case folding
//   - punctuation and whitespace stripped
//
// Phonetically significant marks survive: the long-vowel mark ー, small-tsu
// っ, and small-y kana ゃゅょ are real phonetic content, not noise, and are
// kept as-is.
func Normalize(s string) string {
	s = norm.NFKC.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			continue
		case r >= katakanaFirst && r <= katakanaLast:
			b.WriteRune(r - katakanaToHiragana)
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Katakana block covered by the kana fold: ァ (U+30A1) through ヶ (U+30F6),
// which sits exactly 0x60 above the hiragana block. The prolonged sound
// mark ー (U+30FC) is outside this range and passes through unchanged.
const (
	katakanaFirst      = 'ァ'
	katakanaLast       = 'ヶ'
	katakanaToHiragana = 0x60
)
