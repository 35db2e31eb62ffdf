// Package engine abstracts the playback backend. The playback controller
// drives any Engine implementation; this package ships a wall-clock engine
// that simulates playback for the headless daemon and for tests.
package engine

import (
	"errors"
	"time"

	"jukeboxd/internal/core"
)

var (
	// ErrNoTrack is returned by transport controls before a Load.
	ErrNoTrack = errors.New("no track loaded")
	// ErrInvalidPosition is returned by Seek for positions outside the track.
	ErrInvalidPosition = errors.New("position outside track bounds")
)

// Engine is a single-track playback backend. Implementations must be safe
// for concurrent use; the controller calls them from its command loop while
// the progress ticker reads Position concurrently.
type Engine interface {
	// Load replaces the current track and leaves the engine paused at zero.
	Load(track core.Track) error
	// Play starts or resumes the loaded track.
	Play() error
	// Pause halts playback keeping the position.
	Pause() error
	// Stop halts playback and unloads the track.
	Stop() error
	// Seek moves the position within the loaded track.
	Seek(position time.Duration) error
	// Position returns the current playback position.
	Position() time.Duration
	// Duration returns the loaded track's duration, zero when unloaded.
	Duration() time.Duration
	// Status returns the coarse playback status.
	Status() core.PlaybackStatus
	// SetOnComplete registers the callback fired when a track plays to its
	// end. The callback runs on an engine goroutine and must not call back
	// into the engine synchronously.
	SetOnComplete(fn func())
	// Close releases the engine.
	Close() error
}
