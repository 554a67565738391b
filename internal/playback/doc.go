// Package playback plays synthesized speech on the single audio output
// and highlights the spoken word.
//
// The backend gives no word timings, so the audio duration is split
// evenly across the words. At elapsed time t the highlighted word is
//
//	floor((t + SyncOffset) / (duration / wordCount))
//
// clamped to the word range. SyncOffset leads the audio slightly so the
// highlight does not trail the voice.
//
// Each call to Player.Play is a session with its own cancellation token.
// Starting a session cancels the previous one, stops its audio and clears
// its highlight before anything else happens.
package playback
