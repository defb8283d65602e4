package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"orion/audio"
	"orion/transcriber"
)

// stubDevice records Start/Stop calls and lets tests push PCM through
// the registered callback.
type stubDevice struct {
	mu     sync.Mutex
	cb     audio.DataCallback
	starts int
	stops  int
}

func (d *stubDevice) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	return nil
}

func (d *stubDevice) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
}

func (d *stubDevice) Close() {}

func (d *stubDevice) SetCallback(cb audio.DataCallback) {
	d.mu.Lock()
	d.cb = cb
	d.mu.Unlock()
}

func (d *stubDevice) ClearCallback() {
	d.mu.Lock()
	d.cb = nil
	d.mu.Unlock()
}

func (d *stubDevice) feed(pcm []byte) {
	d.mu.Lock()
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(pcm, uint32(len(pcm)/2))
	}
}

func (d *stubDevice) startCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

// slowTranscriber returns sessions whose Close blocks until released.
type slowTranscriber struct {
	release chan struct{}
	aborts  int
	mu      sync.Mutex
}

func (s *slowTranscriber) Name() string            { return "slow" }
func (s *slowTranscriber) SetLanguage(string)      {}
func (s *slowTranscriber) GetLanguage() string     { return "" }
func (s *slowTranscriber) NewSession(context.Context, transcriber.SessionConfig) (transcriber.Session, error) {
	return &slowSession{parent: s}, nil
}

type slowSession struct{ parent *slowTranscriber }

func (s *slowSession) Feed([]byte) {}
func (s *slowSession) Abort() {
	s.parent.mu.Lock()
	s.parent.aborts++
	s.parent.mu.Unlock()
}
func (s *slowSession) Close() (transcriber.SessionResult, error) {
	<-s.parent.release
	return transcriber.SessionResult{Text: "late", HasText: true}, nil
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.State(), want)
}

func TestCaptureSuccess(t *testing.T) {
	dev := &stubDevice{}
	var injected []string
	var mu sync.Mutex
	c := NewController(dev, transcriber.NewFake("hello world", nil),
		Config{Format: "wav", MinCapture: time.Millisecond},
		func(text string) error {
			mu.Lock()
			injected = append(injected, text)
			mu.Unlock()
			return nil
		}, nil)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if c.State() != Recording {
		t.Fatalf("state = %v, want Recording", c.State())
	}
	dev.feed(make([]byte, 2048))
	time.Sleep(5 * time.Millisecond)
	c.Stop()

	waitState(t, c, Idle)
	mu.Lock()
	defer mu.Unlock()
	if len(injected) != 1 || injected[0] != "hello world" {
		t.Errorf("injected = %v, want the transcribed text once", injected)
	}
	if c.Captures() != 1 {
		t.Errorf("Captures = %d, want 1", c.Captures())
	}
}

// A second Start while recording must not spin up another session.
func TestDoubleStartNoOp(t *testing.T) {
	dev := &stubDevice{}
	c := NewController(dev, transcriber.NewFake("x", nil),
		Config{Format: "wav", MinCapture: time.Millisecond}, nil, nil)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if got := dev.startCount(); got != 1 {
		t.Errorf("device started %d times, want 1", got)
	}
	c.Stop()
	waitState(t, c, Idle)
}

func TestStopWhileIdleNoOp(t *testing.T) {
	dev := &stubDevice{}
	c := NewController(dev, transcriber.NewFake("x", nil), Config{Format: "wav"}, nil, nil)
	c.Stop() // must not panic or change state
	if c.State() != Idle {
		t.Errorf("state = %v, want Idle", c.State())
	}
}

// Sub-minimum captures are dropped: session aborted, nothing injected.
func TestShortCaptureDropped(t *testing.T) {
	dev := &stubDevice{}
	st := &slowTranscriber{release: make(chan struct{})}
	var injected int
	c := NewController(dev, st,
		Config{Format: "wav", MinCapture: time.Hour},
		func(string) error { injected++; return nil }, nil)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	c.Stop()

	if c.State() != Idle {
		t.Errorf("state = %v, want Idle", c.State())
	}
	st.mu.Lock()
	aborts := st.aborts
	st.mu.Unlock()
	if aborts != 1 {
		t.Errorf("aborts = %d, want 1 (no upload for short capture)", aborts)
	}
	if injected != 0 {
		t.Error("short capture injected text")
	}
}

// Transcription exceeding the timeout surfaces Failed, returns to Idle,
// and injects nothing even if the response arrives later.
func TestTranscriptionTimeout(t *testing.T) {
	dev := &stubDevice{}
	st := &slowTranscriber{release: make(chan struct{})}
	var mu sync.Mutex
	var injected int
	var sawFailed bool
	c := NewController(dev, st,
		Config{Format: "wav", MinCapture: time.Millisecond, Timeout: 30 * time.Millisecond},
		func(string) error {
			mu.Lock()
			injected++
			mu.Unlock()
			return nil
		},
		func(ev Event) {
			if ev.State == Failed {
				mu.Lock()
				sawFailed = true
				mu.Unlock()
				if ev.Err == nil {
					t.Error("Failed event without error")
				}
			}
		})

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	c.Stop()

	waitState(t, c, Idle)
	mu.Lock()
	if !sawFailed {
		t.Error("never saw Failed state")
	}
	mu.Unlock()

	// Late response must not inject.
	close(st.release)
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if injected != 0 {
		t.Error("timed-out transcription injected text")
	}
}

func TestTranscriptionError(t *testing.T) {
	dev := &stubDevice{}
	var sawFailed bool
	var mu sync.Mutex
	c := NewController(dev, transcriber.NewFake("", errors.New("boom")),
		Config{Format: "wav", MinCapture: time.Millisecond},
		nil,
		func(ev Event) {
			if ev.State == Failed {
				mu.Lock()
				sawFailed = true
				mu.Unlock()
			}
		})

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	c.Stop()
	waitState(t, c, Idle)
	mu.Lock()
	defer mu.Unlock()
	if !sawFailed {
		t.Error("error path skipped Failed state")
	}
}

// A recording that hits the maximum length stops itself and still
// transcribes.
func TestMaxCaptureAutoStop(t *testing.T) {
	dev := &stubDevice{}
	var injected int
	var mu sync.Mutex
	c := NewController(dev, transcriber.NewFake("long one", nil),
		Config{Format: "wav", MinCapture: time.Millisecond, MaxCapture: 30 * time.Millisecond},
		func(string) error {
			mu.Lock()
			injected++
			mu.Unlock()
			return nil
		}, nil)

	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	// No Stop call: the guard fires.
	waitState(t, c, Idle)
	mu.Lock()
	defer mu.Unlock()
	if injected != 1 {
		t.Errorf("injected = %d, want 1", injected)
	}
	if c.Captures() != 1 {
		t.Errorf("Captures = %d, want 1", c.Captures())
	}
}

// After processing completes, a new capture can start.
func TestCaptureCycle(t *testing.T) {
	dev := &stubDevice{}
	c := NewController(dev, transcriber.NewFake("again", nil),
		Config{Format: "wav", MinCapture: time.Millisecond}, nil, nil)

	for i := 0; i < 3; i++ {
		if err := c.Start(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
		c.Stop()
		waitState(t, c, Idle)
	}
	if c.Captures() != 3 {
		t.Errorf("Captures = %d, want 3", c.Captures())
	}
}
