package engine

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"jukeboxd/internal/core"
)

func testTrack(duration time.Duration) core.Track {
	return core.Track{ID: 1, Title: "test", Duration: duration}
}

func TestClockEngine_TransportControls(t *testing.T) {
	e := NewClockEngine(zap.NewNop())
	defer func() { _ = e.Close() }()

	// Controls before a load fail
	if err := e.Play(); err != ErrNoTrack {
		t.Errorf("Play without track should return ErrNoTrack, got %v", err)
	}
	if err := e.Seek(time.Second); err != ErrNoTrack {
		t.Errorf("Seek without track should return ErrNoTrack, got %v", err)
	}

	if err := e.Load(testTrack(time.Hour)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := e.Status(); got != core.StatusPaused {
		t.Errorf("Loaded engine should be paused, got %v", got)
	}
	if got := e.Duration(); got != time.Hour {
		t.Errorf("Expected duration 1h, got %v", got)
	}

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if got := e.Status(); got != core.StatusPlaying {
		t.Errorf("Expected playing, got %v", got)
	}

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if got := e.Status(); got != core.StatusPaused {
		t.Errorf("Expected paused, got %v", got)
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := e.Status(); got != core.StatusIdle {
		t.Errorf("Expected idle after stop, got %v", got)
	}
	if got := e.Position(); got != 0 {
		t.Errorf("Stopped engine position should be 0, got %v", got)
	}
}

func TestClockEngine_PositionAdvancesWhilePlaying(t *testing.T) {
	e := NewClockEngine(zap.NewNop())
	defer func() { _ = e.Close() }()

	if err := e.Load(testTrack(time.Hour)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Paused position stays put
	if got := e.Position(); got != 0 {
		t.Errorf("Paused position should be 0, got %v", got)
	}

	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	time.Sleep(30 * time.Millisecond)

	pos := e.Position()
	if pos <= 0 {
		t.Errorf("Playing position should advance, got %v", pos)
	}

	if err := e.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	frozen := e.Position()
	time.Sleep(20 * time.Millisecond)
	if got := e.Position(); got != frozen {
		t.Errorf("Paused position should not advance: %v then %v", frozen, got)
	}
}

func TestClockEngine_Seek(t *testing.T) {
	e := NewClockEngine(zap.NewNop())
	defer func() { _ = e.Close() }()

	if err := e.Load(testTrack(time.Minute)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if err := e.Seek(30 * time.Second); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if got := e.Position(); got != 30*time.Second {
		t.Errorf("Expected position 30s, got %v", got)
	}

	if err := e.Seek(-time.Second); err != ErrInvalidPosition {
		t.Errorf("Negative seek should fail, got %v", err)
	}
	if err := e.Seek(2 * time.Minute); err != ErrInvalidPosition {
		t.Errorf("Seek past the end should fail, got %v", err)
	}
}

func TestClockEngine_Completion(t *testing.T) {
	e := NewClockEngine(zap.NewNop())
	defer func() { _ = e.Close() }()

	done := make(chan struct{})
	e.SetOnComplete(func() { close(done) })

	if err := e.Load(testTrack(20 * time.Millisecond)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Completion callback never fired")
	}

	if got := e.Status(); got != core.StatusPaused {
		t.Errorf("Completed engine should be paused, got %v", got)
	}
	if got := e.Position(); got != 20*time.Millisecond {
		t.Errorf("Completed position should equal duration, got %v", got)
	}
}

func TestClockEngine_PauseCancelsCompletion(t *testing.T) {
	e := NewClockEngine(zap.NewNop())
	defer func() { _ = e.Close() }()

	completed := make(chan struct{}, 1)
	e.SetOnComplete(func() { completed <- struct{}{} })

	if err := e.Load(testTrack(30 * time.Millisecond)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := e.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := e.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	select {
	case <-completed:
		t.Error("Paused track must not complete")
	case <-time.After(100 * time.Millisecond):
	}
}
