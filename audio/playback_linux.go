//go:build linux

package audio

import (
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
)

func (p *pulseContext) NewPlayer(pcm []byte, config PlayerConfig) (Player, error) {
	pl := &pulsePlayer{pcm: pcm, done: make(chan struct{})}

	reader := pulse.Int16Reader(func(out []int16) (int, error) {
		pl.mu.Lock()
		defer pl.mu.Unlock()
		if pl.stopped || pl.pos >= len(pl.pcm) {
			return 0, io.EOF
		}
		n := 0
		for n < len(out) && pl.pos+1 < len(pl.pcm) {
			out[n] = int16(uint16(pl.pcm[pl.pos]) | uint16(pl.pcm[pl.pos+1])<<8)
			pl.pos += 2
			n++
		}
		return n, nil
	})

	opts := []pulse.PlaybackOption{
		pulse.PlaybackSampleRate(int(config.SampleRate)),
		pulse.PlaybackLatency(0.1),
	}
	if config.Channels >= 2 {
		opts = append(opts, pulse.PlaybackStereo)
	} else {
		opts = append(opts, pulse.PlaybackMono)
	}

	stream, err := p.client.NewPlayback(reader, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulse playback: %w", err)
	}
	pl.stream = stream
	return pl, nil
}

type pulsePlayer struct {
	stream *pulse.PlaybackStream
	pcm    []byte

	mu      sync.Mutex
	pos     int
	stopped bool

	done     chan struct{}
	doneOnce sync.Once
}

func (pl *pulsePlayer) Start() error {
	pl.stream.Start()
	go func() {
		pl.stream.Drain()
		pl.doneOnce.Do(func() { close(pl.done) })
	}()
	return nil
}

func (pl *pulsePlayer) Pause() {
	pl.stream.Stop()
}

func (pl *pulsePlayer) Resume() {
	pl.stream.Start()
}

func (pl *pulsePlayer) Stop() {
	pl.mu.Lock()
	pl.stopped = true
	pl.mu.Unlock()
	pl.stream.Stop()
	pl.stream.Close()
	pl.doneOnce.Do(func() { close(pl.done) })
}

func (pl *pulsePlayer) Done() <-chan struct{} {
	return pl.done
}
