package input

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type commandSink struct {
	mutex    sync.Mutex
	commands []ButtonCommand
}

func (s *commandSink) dispatch(c ButtonCommand) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.commands = append(s.commands, c)
}

func (s *commandSink) all() []ButtonCommand {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]ButtonCommand(nil), s.commands...)
}

func waitForCommands(t *testing.T, sink *commandSink, n int) []ButtonCommand {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := sink.all(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d commands, got %v", n, sink.all())
	return nil
}

func newTestButton(t *testing.T, sink *commandSink) *MediaButton {
	t.Helper()
	b := NewMediaButton(30*time.Millisecond, sink.dispatch, zap.NewNop())
	t.Cleanup(b.Close)
	return b
}

func TestMediaButton_SingleClick(t *testing.T) {
	sink := &commandSink{}
	b := newTestButton(t, sink)

	b.Click()

	got := waitForCommands(t, sink, 1)
	if got[0] != CommandPlayPause {
		t.Errorf("Single click should decode play/pause, got %v", got[0])
	}
}

func TestMediaButton_DoubleClick(t *testing.T) {
	sink := &commandSink{}
	b := newTestButton(t, sink)

	b.Click()
	b.Click()

	got := waitForCommands(t, sink, 1)
	if len(got) != 1 || got[0] != CommandSkipNext {
		t.Errorf("Double click should decode a single skip next, got %v", got)
	}
}

func TestMediaButton_TripleClick(t *testing.T) {
	sink := &commandSink{}
	b := newTestButton(t, sink)

	b.Click()
	b.Click()
	b.Click()

	got := waitForCommands(t, sink, 1)
	if len(got) != 1 || got[0] != CommandSkipPrevious {
		t.Errorf("Triple click should decode a single skip previous, got %v", got)
	}
}

func TestMediaButton_OverflowedBurstIsSilent(t *testing.T) {
	sink := &commandSink{}
	b := newTestButton(t, sink)

	for i := 0; i < 4; i++ {
		b.Click()
	}

	time.Sleep(100 * time.Millisecond)
	if got := sink.all(); len(got) != 0 {
		t.Errorf("Four clicks should dispatch nothing, got %v", got)
	}

	// The decoder recovers for the next burst
	b.Click()
	got := waitForCommands(t, sink, 1)
	if got[0] != CommandPlayPause {
		t.Errorf("Burst after overflow should decode normally, got %v", got[0])
	}
}

func TestMediaButton_SeparateBursts(t *testing.T) {
	sink := &commandSink{}
	b := newTestButton(t, sink)

	b.Click()
	waitForCommands(t, sink, 1)

	b.Click()
	b.Click()
	got := waitForCommands(t, sink, 2)

	if got[0] != CommandPlayPause || got[1] != CommandSkipNext {
		t.Errorf("Expected play/pause then skip next, got %v", got)
	}
}

func TestMediaButton_ClickRestartsWindow(t *testing.T) {
	sink := &commandSink{}
	b := NewMediaButton(50*time.Millisecond, sink.dispatch, zap.NewNop())
	defer b.Close()

	// Clicks spaced inside the window accumulate into one burst
	b.Click()
	time.Sleep(30 * time.Millisecond)
	b.Click()

	got := waitForCommands(t, sink, 1)
	if len(got) != 1 || got[0] != CommandSkipNext {
		t.Errorf("Spaced clicks within the window should decode double click, got %v", got)
	}
}

func TestMediaButton_CloseCancelsPending(t *testing.T) {
	sink := &commandSink{}
	b := NewMediaButton(30*time.Millisecond, sink.dispatch, zap.NewNop())

	b.Click()
	b.Close()

	time.Sleep(80 * time.Millisecond)
	if got := sink.all(); len(got) != 0 {
		t.Errorf("Close should cancel the pending burst, got %v", got)
	}
}
