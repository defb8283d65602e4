// Package playback drives text-to-speech: it requests synthesis from
// the server and renders the returned audio, one utterance at a time.
package playback

import (
	"context"
	"errors"
	"strings"
	"sync"

	"orion/audio"
	"orion/log"
)

// ErrEmptyText is returned locally; no synthesis request is made.
var ErrEmptyText = errors.New("nothing to speak")

type State int

const (
	Idle State = iota
	Requesting
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "unknown"
}

// Synthesizer turns text into WAV bytes. speech.Client satisfies it.
type Synthesizer interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// PlayerFactory opens an output device for one buffer. audio.Context
// satisfies it.
type PlayerFactory interface {
	NewPlayer(pcm []byte, config audio.PlayerConfig) (audio.Player, error)
}

type Event struct {
	State State
	Err   error
	Chars int
}

// session wraps one player so its device is released exactly once, no
// matter how many of Stop, replacement, and natural completion race.
type session struct {
	player audio.Player
	once   sync.Once
}

func (s *session) release() {
	s.once.Do(func() { s.player.Stop() })
}

// Controller owns the playback state machine. Each Speak bumps a
// generation counter; a synthesis response whose generation is no
// longer current is discarded instead of played.
type Controller struct {
	synth   Synthesizer
	factory PlayerFactory
	notify  func(Event)

	mu    sync.Mutex
	state State
	gen   uint64
	cur   *session
}

func NewController(synth Synthesizer, factory PlayerFactory, notify func(Event)) *Controller {
	if notify == nil {
		notify = func(Event) {}
	}
	return &Controller{synth: synth, factory: factory, notify: notify}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Speak requests synthesis for text and plays it, replacing any active
// or in-flight utterance. Empty text fails without touching the network.
func (c *Controller) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	c.mu.Lock()
	c.gen++
	myGen := c.gen
	prev := c.cur
	c.cur = nil
	c.state = Requesting
	c.mu.Unlock()

	if prev != nil {
		prev.release()
	}
	log.Playback("speak", len(text))
	c.notify(Event{State: Requesting, Chars: len(text)})

	go c.synthesize(ctx, text, myGen)
	return nil
}

func (c *Controller) synthesize(ctx context.Context, text string, myGen uint64) {
	wav, err := c.synth.Speak(ctx, text)

	c.mu.Lock()
	if c.gen != myGen {
		c.mu.Unlock()
		log.Playback("stale_discard", len(text))
		return
	}
	if err != nil {
		c.state = Idle
		c.mu.Unlock()
		log.Errorf("synthesis failed: %v", err)
		c.notify(Event{State: Idle, Err: err})
		return
	}
	c.mu.Unlock()

	pcm, rate, channels, err := parseWAV(wav)
	if err == nil {
		var player audio.Player
		player, err = c.factory.NewPlayer(pcm, audio.PlayerConfig{SampleRate: rate, Channels: channels})
		if err == nil {
			err = c.start(player, myGen)
		}
	}
	if err != nil {
		c.mu.Lock()
		if c.gen == myGen {
			c.state = Idle
		}
		c.mu.Unlock()
		log.Errorf("playback failed: %v", err)
		c.notify(Event{State: Idle, Err: err})
	}
}

func (c *Controller) start(player audio.Player, myGen uint64) error {
	s := &session{player: player}

	c.mu.Lock()
	if c.gen != myGen {
		c.mu.Unlock()
		s.release()
		return nil
	}
	c.cur = s
	c.state = Playing
	c.mu.Unlock()

	if err := player.Start(); err != nil {
		c.mu.Lock()
		if c.cur == s {
			c.cur = nil
			c.state = Idle
		}
		c.mu.Unlock()
		s.release()
		return err
	}
	log.Playback("playing", 0)
	c.notify(Event{State: Playing})

	go func() {
		<-player.Done()
		c.mu.Lock()
		mine := c.cur == s
		if mine {
			c.cur = nil
			c.state = Idle
		}
		c.mu.Unlock()
		s.release()
		if mine {
			log.Playback("finished", 0)
			c.notify(Event{State: Idle})
		}
	}()
	return nil
}

// TogglePause flips between Playing and Paused. Any other state is a
// no-op.
func (c *Controller) TogglePause() {
	c.mu.Lock()
	var player audio.Player
	var ev Event
	switch c.state {
	case Playing:
		c.state = Paused
		player = c.cur.player
		ev = Event{State: Paused}
	case Paused:
		c.state = Playing
		player = c.cur.player
		ev = Event{State: Playing}
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if ev.State == Paused {
		player.Pause()
		log.Playback("paused", 0)
	} else {
		player.Resume()
		log.Playback("resumed", 0)
	}
	c.notify(ev)
}

// Stop ends the active utterance. Calling it again, or racing it with
// natural completion, still releases the device exactly once.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.cur
	c.cur = nil
	wasActive := c.state != Idle
	c.state = Idle
	c.gen++ // invalidate any in-flight synthesis
	c.mu.Unlock()

	if s != nil {
		s.release()
	}
	if wasActive {
		log.Playback("stopped", 0)
		c.notify(Event{State: Idle})
	}
}
