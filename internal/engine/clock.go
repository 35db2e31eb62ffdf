package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
)

// ClockEngine simulates playback against the wall clock. While playing, the
// position advances in real time; when it reaches the track duration the
// completion callback fires. It backs the daemon when no audio output is
// wired and doubles as the test engine.
type ClockEngine struct {
	logger *zap.Logger

	mutex      sync.Mutex
	track      core.Track
	loaded     bool
	status     core.PlaybackStatus
	base       time.Duration
	resumedAt  time.Time
	timer      *time.Timer
	onComplete func()
	closed     bool
}

var _ Engine = (*ClockEngine)(nil)

func NewClockEngine(logger *zap.Logger) *ClockEngine {
	return &ClockEngine{
		logger: logger.Named("clockengine"),
		status: core.StatusIdle,
	}
}

func (e *ClockEngine) Load(track core.Track) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.stopTimerLocked()
	e.track = track
	e.loaded = true
	e.status = core.StatusPaused
	e.base = 0
	e.logger.Debug("Track loaded",
		zap.Int64("songID", track.ID),
		zap.Duration("duration", track.Duration))
	return nil
}

func (e *ClockEngine) Play() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.loaded {
		return ErrNoTrack
	}
	if e.status == core.StatusPlaying {
		return nil
	}

	e.status = core.StatusPlaying
	e.resumedAt = time.Now()
	e.armTimerLocked()
	return nil
}

func (e *ClockEngine) Pause() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.loaded {
		return ErrNoTrack
	}
	if e.status != core.StatusPlaying {
		return nil
	}

	e.base = e.positionLocked()
	e.status = core.StatusPaused
	e.stopTimerLocked()
	return nil
}

func (e *ClockEngine) Stop() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.stopTimerLocked()
	e.loaded = false
	e.track = core.Track{}
	e.status = core.StatusIdle
	e.base = 0
	return nil
}

func (e *ClockEngine) Seek(position time.Duration) error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if !e.loaded {
		return ErrNoTrack
	}
	if position < 0 || (e.track.Duration > 0 && position > e.track.Duration) {
		return ErrInvalidPosition
	}

	e.base = position
	if e.status == core.StatusPlaying {
		e.resumedAt = time.Now()
		e.armTimerLocked()
	}
	return nil
}

func (e *ClockEngine) Position() time.Duration {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.positionLocked()
}

func (e *ClockEngine) Duration() time.Duration {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if !e.loaded {
		return 0
	}
	return e.track.Duration
}

func (e *ClockEngine) Status() core.PlaybackStatus {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.status
}

func (e *ClockEngine) SetOnComplete(fn func()) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.onComplete = fn
}

func (e *ClockEngine) Close() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.stopTimerLocked()
	e.closed = true
	e.loaded = false
	e.status = core.StatusIdle
	return nil
}

func (e *ClockEngine) positionLocked() time.Duration {
	if !e.loaded {
		return 0
	}
	pos := e.base
	if e.status == core.StatusPlaying {
		pos += time.Since(e.resumedAt)
	}
	if e.track.Duration > 0 && pos > e.track.Duration {
		pos = e.track.Duration
	}
	return pos
}

func (e *ClockEngine) armTimerLocked() {
	e.stopTimerLocked()
	if e.track.Duration <= 0 {
		return
	}
	remaining := e.track.Duration - e.base
	if remaining <= 0 {
		remaining = time.Millisecond
	}
	e.timer = time.AfterFunc(remaining, e.complete)
}

func (e *ClockEngine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *ClockEngine) complete() {
	e.mutex.Lock()
	if e.closed || !e.loaded || e.status != core.StatusPlaying {
		e.mutex.Unlock()
		return
	}
	e.base = e.track.Duration
	e.status = core.StatusPaused
	fn := e.onComplete
	e.mutex.Unlock()

	if fn != nil {
		fn()
	}
}
