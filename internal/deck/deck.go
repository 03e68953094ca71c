// Package deck holds the practice item model and derives the ordered deck a
// practice session runs over: items are filtered by SRS stage band of their
// assignment, then optionally reordered by a deterministic seeded shuffle.
//
// Decks are always rebuilt, never mutated in place — the same
// (items, filter, seed) inputs yield the same order every time.
package deck

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// StageUnknown marks an item with no known SRS assignment (never reviewed,
// or its assignment is hidden). Unknown stages match only [FilterAll].
const StageUnknown = -1

// Reading is one phonetic (kana) transcription of an item. Only primary
// readings are authoritative for pronunciation scoring.
type Reading struct {
	// Value is the kana text of the reading.
	Value string

	// Primary marks the reading as authoritative.
	Primary bool
}

// Clip references one reference-pronunciation audio file for an item.
type Clip struct {
	// URL locates the audio content.
	URL string

	// ContentType is the MIME type (e.g., "audio/mpeg").
	ContentType string
}

// Item is a single practice item. Items are immutable once loaded into a
// session; the deck is derived from them, never the other way around.
type Item struct {
	// ID is the data source's subject identifier.
	ID int64

	// Text is the written form shown to the learner.
	Text string

	// Meanings lists the item's accepted meanings.
	Meanings []string

	// Readings lists the item's kana readings.
	Readings []Reading

	// Stage is the SRS mastery stage 0–9, or [StageUnknown].
	Stage int

	// Level is the data source's level grouping for the item.
	Level int

	// Audio references reference-pronunciation clips, possibly empty.
	Audio []Clip
}

// PrimaryReadings returns the kana values of the item's primary readings, in
// source order. These are the ground truth for pronunciation scoring.
func (it Item) PrimaryReadings() []string {
	var out []string
	for _, r := range it.Readings {
		if r.Primary {
			out = append(out, r.Value)
		}
	}
	return out
}

// Filter selects items by SRS stage band.
type Filter string

const (
	// FilterAll matches every item, including unknown stages.
	FilterAll Filter = "all"

	// FilterApprentice matches stages 1–4.
	FilterApprentice Filter = "apprentice"

	// FilterGuru matches stages 5–6.
	FilterGuru Filter = "guru"

	// FilterMaster matches stage 7.
	FilterMaster Filter = "master"

	// FilterEnlightened matches stage 8.
	FilterEnlightened Filter = "enlightened"

	// FilterBurned matches stage 9.
	FilterBurned Filter = "burned"
)

// IsValid reports whether f is a recognised filter.
func (f Filter) IsValid() bool {
	switch f {
	case FilterAll, FilterApprentice, FilterGuru, FilterMaster, FilterEnlightened, FilterBurned:
		return true
	}
	return false
}

// Matches reports whether an item at the given SRS stage belongs to this
// band. Unknown stages are excluded from every band except [FilterAll].
func (f Filter) Matches(stage int) bool {
	switch f {
	case FilterAll:
		return true
	case FilterApprentice:
		return stage >= 1 && stage <= 4
	case FilterGuru:
		return stage == 5 || stage == 6
	case FilterMaster:
		return stage == 7
	case FilterEnlightened:
		return stage == 8
	case FilterBurned:
		return stage == 9
	default:
		return false
	}
}

// Build derives the ordered deck from items: items without any reading are
// dropped, the filter is applied, and — when shuffle is enabled — the
// survivors are reordered by a per-item seeded hash key so that the order is
// a pure function of (items, filter, seed). With shuffle disabled, source
// order is preserved.
func Build(items []Item, f Filter, shuffle bool, seed uint64) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if len(it.Readings) == 0 {
			continue
		}
		if !f.Matches(it.Stage) {
			continue
		}
		out = append(out, it)
	}

	if shuffle {
		sort.SliceStable(out, func(i, j int) bool {
			return shuffleKey(seed, out[i].ID) < shuffleKey(seed, out[j].ID)
		})
	}
	return out
}

// shuffleKey hashes (seed, itemID) into a stable ordering key.
func shuffleKey(seed uint64, id int64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	binary.LittleEndian.PutUint64(buf[8:], uint64(id))
	return xxhash.Sum64(buf[:])
}
