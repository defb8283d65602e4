// Package capture runs the push-to-talk loop: microphone PCM flows
// into a transcription session while the key is held, and the
// transcribed text is injected at the cursor when it is released.
package capture

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"orion/audio"
	"orion/beep"
	"orion/log"
	"orion/transcriber"
)

type State int

const (
	Idle State = iota
	Recording
	Processing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	case Failed:
		return "failed"
	}
	return "unknown"
}

const (
	DefaultMinCapture = 200 * time.Millisecond
	DefaultMaxCapture = 5 * time.Minute
	DefaultTimeout    = 30 * time.Second
)

type Config struct {
	Format     string
	Language   string
	MinCapture time.Duration
	MaxCapture time.Duration
	Timeout    time.Duration
}

// Event reports a state change to the UI layer.
type Event struct {
	State    State
	Text     string
	NoSpeech bool
	Err      error
	Level    float64 // RMS while recording
	Metrics  []string
}

// Controller owns the capture state machine. At most one capture is
// active: Start while not Idle and Stop while not Recording are no-ops,
// so a key bounce can never spawn a second session.
type Controller struct {
	device audio.CaptureDevice
	tr     transcriber.Transcriber
	cfg    Config
	inject func(string) error
	notify func(Event)

	mu       sync.Mutex
	state    State
	sess     transcriber.Session
	started  time.Time
	frames   uint64
	captures int
	guard    *time.Timer
}

func NewController(device audio.CaptureDevice, tr transcriber.Transcriber, cfg Config, inject func(string) error, notify func(Event)) *Controller {
	if cfg.MinCapture <= 0 {
		cfg.MinCapture = DefaultMinCapture
	}
	if cfg.MaxCapture <= 0 {
		cfg.MaxCapture = DefaultMaxCapture
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if notify == nil {
		notify = func(Event) {}
	}
	if inject == nil {
		inject = func(string) error { return nil }
	}
	return &Controller{
		device: device,
		tr:     tr,
		cfg:    cfg,
		inject: inject,
		notify: notify,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Captures reports how many captures completed processing.
func (c *Controller) Captures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captures
}

// Start begins recording. Not Idle means a capture is already under way
// and the call does nothing.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return nil
	}

	sess, err := c.tr.NewSession(context.Background(), transcriber.SessionConfig{
		Format:   c.cfg.Format,
		Language: c.cfg.Language,
	})
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.sess = sess
	c.frames = 0
	c.started = time.Now()
	c.state = Recording
	c.mu.Unlock()

	c.device.SetCallback(func(data []byte, frameCount uint32) {
		c.mu.Lock()
		if c.state != Recording {
			c.mu.Unlock()
			return
		}
		c.frames += uint64(frameCount)
		c.mu.Unlock()

		if len(data) > 0 {
			pcm := make([]byte, len(data))
			copy(pcm, data)
			sess.Feed(pcm)
		}
		if len(data) > 1 {
			c.notify(Event{State: Recording, Level: rms(data)})
		}
	})

	if err := c.device.Start(); err != nil {
		c.device.ClearCallback()
		c.mu.Lock()
		c.sess = nil
		c.state = Idle
		c.mu.Unlock()
		sess.Abort()
		return err
	}

	// Runaway recordings stop themselves.
	c.mu.Lock()
	c.guard = time.AfterFunc(c.cfg.MaxCapture, func() {
		log.Info("capture_max_length")
		c.Stop()
	})
	c.mu.Unlock()

	go beep.PlayStart()
	c.notify(Event{State: Recording})
	return nil
}

// Stop ends the recording. Captures shorter than the minimum are
// dropped without an upload; otherwise transcription runs in the
// background, bounded by the configured timeout.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != Recording {
		c.mu.Unlock()
		return
	}
	sess := c.sess
	elapsed := time.Since(c.started)
	if c.guard != nil {
		c.guard.Stop()
		c.guard = nil
	}

	if elapsed < c.cfg.MinCapture {
		c.sess = nil
		c.state = Idle
		c.mu.Unlock()

		c.device.Stop()
		c.device.ClearCallback()
		sess.Abort()
		log.Info("capture_dropped_short")
		c.notify(Event{State: Idle})
		return
	}

	c.state = Processing
	c.mu.Unlock()

	c.device.Stop()
	c.device.ClearCallback()
	go beep.PlayEnd()
	c.notify(Event{State: Processing})

	go c.finish(sess)
}

type closeResult struct {
	result transcriber.SessionResult
	err    error
}

func (c *Controller) finish(sess transcriber.Session) {
	ch := make(chan closeResult, 1)
	go func() {
		r, err := sess.Close()
		ch <- closeResult{r, err}
	}()

	var res closeResult
	select {
	case res = <-ch:
	case <-time.After(c.cfg.Timeout):
		c.fail(context.DeadlineExceeded)
		return
	}

	if res.err != nil {
		c.fail(res.err)
		return
	}

	result := res.result
	if result.HasText {
		if err := c.inject(result.Text); err != nil {
			log.Warnf("text injection failed: %v", err)
		}
		log.TranscriptionText(result.Text)
	} else {
		log.Info("no_speech")
	}

	if result.Batch != nil {
		bs := result.Batch
		log.Capture(log.CaptureMetrics{
			AudioLengthS: bs.AudioLengthS,
			RawSizeKB:    bs.RawSizeKB,
			UploadKB:     bs.CompressedSizeKB,
			EncodeTimeMs: bs.EncodeTimeMs,
			RequestMs:    bs.TTFBMs,
			TotalMs:      bs.TotalTimeMs,
		}, c.cfg.Format)
	}

	c.mu.Lock()
	c.captures++
	c.state = Idle
	c.sess = nil
	c.mu.Unlock()

	c.notify(Event{
		State:    Idle,
		Text:     result.Text,
		NoSpeech: result.NoSpeech,
		Metrics:  result.Metrics,
	})
}

// fail passes through Failed on the way back to Idle so the UI can show
// the error. No text is injected on this path.
func (c *Controller) fail(err error) {
	log.Errorf("transcription error: %v", err)
	go beep.PlayError()

	c.mu.Lock()
	c.state = Failed
	c.mu.Unlock()
	c.notify(Event{State: Failed, Err: err})

	c.mu.Lock()
	c.state = Idle
	c.sess = nil
	c.mu.Unlock()
	c.notify(Event{State: Idle})
}

func rms(data []byte) float64 {
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(data)/2))
}
