package playback

import "math"

// SyncOffset is added to the elapsed time, in seconds, before mapping it
// to a word.
const SyncOffset = 0.15

// WordIndex returns the word to highlight at elapsed seconds, or -1 when
// highlighting is disabled for the given word count and duration.
func WordIndex(elapsed, wordDuration float64, wordCount int) int {
	if wordCount <= 0 || !(wordDuration > 0) || math.IsInf(wordDuration, 0) {
		return -1
	}

	idx := math.Floor((elapsed + SyncOffset) / wordDuration)
	switch {
	case idx < 0 || math.IsNaN(idx):
		return 0
	case idx > float64(wordCount-1):
		return wordCount - 1
	default:
		return int(idx)
	}
}

// WordDuration splits the audio duration evenly across the words. It
// returns 0 when highlighting is not possible.
func WordDuration(duration float64, wordCount int) float64 {
	if wordCount <= 0 || !(duration > 0) || math.IsInf(duration, 0) {
		return 0
	}
	return duration / float64(wordCount)
}
