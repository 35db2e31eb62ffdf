// Package input decodes external control inputs into playback commands:
// multi-click headset button sequences and assistant voice search queries.
package input

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// maxAllowedClicks is the longest decodable click sequence. Anything
	// beyond it invalidates the whole sequence.
	maxAllowedClicks = 3
)

// ButtonCommand is the decoded outcome of a click sequence.
type ButtonCommand int

const (
	CommandPlayPause ButtonCommand = iota + 1
	CommandSkipNext
	CommandSkipPrevious
)

func (c ButtonCommand) String() string {
	switch c {
	case CommandPlayPause:
		return "play_pause"
	case CommandSkipNext:
		return "skip_next"
	case CommandSkipPrevious:
		return "skip_previous"
	default:
		return "unknown"
	}
}

// MediaButton turns headset button click bursts into commands. Each click
// restarts the debounce window; when the window elapses the accumulated
// count decodes as one click for play/pause, two for next, three for
// previous. Four or more clicks invalidate the burst and nothing fires.
type MediaButton struct {
	logger   *zap.Logger
	delay    time.Duration
	dispatch func(ButtonCommand)

	mutex      sync.Mutex
	clicks     int
	overflowed bool
	timer      *time.Timer
	closed     bool
}

func NewMediaButton(delay time.Duration, dispatch func(ButtonCommand), logger *zap.Logger) *MediaButton {
	return &MediaButton{
		logger:   logger.Named("mediabutton"),
		delay:    delay,
		dispatch: dispatch,
	}
}

// Click registers one button press.
func (b *MediaButton) Click() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return
	}

	b.clicks++
	if b.clicks > maxAllowedClicks {
		b.overflowed = true
	}

	// Every click restarts the window, including overflowed bursts, so a
	// long mash stays silent until the user lets go.
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.delay, b.fire)
}

func (b *MediaButton) fire() {
	b.mutex.Lock()
	clicks := b.clicks
	overflowed := b.overflowed
	b.clicks = 0
	b.overflowed = false
	b.timer = nil
	closed := b.closed
	b.mutex.Unlock()

	if closed {
		return
	}
	if overflowed {
		b.logger.Debug("Ignoring overflowed click burst", zap.Int("clicks", clicks))
		return
	}

	var command ButtonCommand
	switch clicks {
	case 1:
		command = CommandPlayPause
	case 2:
		command = CommandSkipNext
	case 3:
		command = CommandSkipPrevious
	default:
		return
	}

	b.logger.Debug("Click burst decoded",
		zap.Int("clicks", clicks),
		zap.String("command", command.String()))
	b.dispatch(command)
}

// Close cancels any pending burst.
func (b *MediaButton) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
