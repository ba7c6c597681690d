// Package playback implements the audio/document synchronization engine:
// a word timing index answering position lookups, and a controller that
// drives highlight and scroll effects from the audio clock.
package playback

import (
	"errors"
	"sort"

	"github.com/jonathan/lecture-pipeline/internal/types"
)

// ErrNoTimings reports a lookup against an index built from no timing data.
var ErrNoTimings = errors.New("playback: word timing index is empty")

// WordTimingIndex answers "which word is spoken at time t" queries over a
// sorted, non-overlapping timing track.
type WordTimingIndex struct {
	timings []types.WordTiming
	search  func(n int, f func(int) bool) int // replaceable in tests
}

// NewWordTimingIndex builds an index over the given timings. The input is
// copied and sorted by start time so later mutation of the caller's slice
// cannot corrupt lookups.
func NewWordTimingIndex(timings []types.WordTiming) *WordTimingIndex {
	sorted := make([]types.WordTiming, len(timings))
	copy(sorted, timings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})
	return &WordTimingIndex{timings: sorted, search: sort.Search}
}

// Len reports the number of indexed words.
func (idx *WordTimingIndex) Len() int {
	return len(idx.timings)
}

// Duration reports the end time of the last indexed word, or zero when empty.
func (idx *WordTimingIndex) Duration() float64 {
	if len(idx.timings) == 0 {
		return 0
	}
	return idx.timings[len(idx.timings)-1].EndTime
}

// Lookup resolves a playback position to the word active at that instant and
// its index in the track.
//
// Positions before the first word clamp to the first word, positions past the
// last word clamp to the last. A position falling in a silence gap between
// words resolves to the nearest preceding word, so the highlight holds on
// what was last spoken instead of jumping ahead.
func (idx *WordTimingIndex) Lookup(position float64) (types.WordTiming, int, error) {
	if len(idx.timings) == 0 {
		return types.WordTiming{}, 0, ErrNoTimings
	}
	if position < idx.timings[0].StartTime {
		return idx.timings[0], 0, nil
	}
	last := len(idx.timings) - 1
	if position >= idx.timings[last].EndTime {
		return idx.timings[last], last, nil
	}

	// First word starting strictly after the position; the active word is
	// the one before it.
	i := idx.search(len(idx.timings), func(i int) bool {
		return idx.timings[i].StartTime > position
	})
	i--
	return idx.timings[i], i, nil
}

// At returns the timing at index i. It panics on out-of-range access, same as
// a slice.
func (idx *WordTimingIndex) At(i int) types.WordTiming {
	return idx.timings[i]
}
