package hotkey

import (
	"sync/atomic"
	"time"
)

type Mode string

const (
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
)

// StartEvent indicates a new recording should start.
type StartEvent struct {
	Mode Mode
}

// Hybrid gives one key combination both hold-to-talk and tap-to-toggle
// behavior. A press always starts recording; a release before the long
// press threshold leaves it running until the next tap, a later release
// stops it.
type Hybrid struct {
	startCh chan StartEvent
	stopCh  chan struct{}
	toggle  atomic.Bool
}

func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan StartEvent, 1),
		stopCh:  make(chan struct{}, 1),
	}
	go h.run(hk, longPress)
	return h
}

// Start signals when to begin recording.
func (h *Hybrid) Start() <-chan StartEvent { return h.startCh }

// StopChan signals when to stop, in both PTT and toggle mode.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the current recording is toggle-latched.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		<-hk.Keydown()
		h.toggle.Store(false)
		h.startCh <- StartEvent{Mode: ModeToggle}

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			// Held past the threshold: PTT, stop on release.
			<-hk.Keyup()
			h.emitStop()
		case <-hk.Keyup():
			// Short tap: latched on, next press+release stops.
			if !timer.Stop() {
				<-timer.C
			}
			h.toggle.Store(true)
			<-hk.Keydown()
			<-hk.Keyup()
			h.emitStop()
		}
	}
}

func (h *Hybrid) emitStop() {
	select {
	case h.stopCh <- struct{}{}:
	default:
	}
}
