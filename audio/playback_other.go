//go:build !linux

package audio

import (
	"sync"

	"github.com/gen2brain/malgo"
)

func (m *malgoContext) NewPlayer(pcm []byte, config PlayerConfig) (Player, error) {
	pl := &malgoPlayer{pcm: pcm, done: make(chan struct{})}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = config.Channels
	deviceConfig.SampleRate = config.SampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			pl.mu.Lock()
			n := copy(out, pl.pcm[pl.pos:])
			pl.pos += n
			finished := pl.pos >= len(pl.pcm)
			pl.mu.Unlock()
			for i := n; i < len(out); i++ {
				out[i] = 0
			}
			if finished {
				pl.doneOnce.Do(func() { close(pl.done) })
			}
		},
	}

	dev, err := malgo.InitDevice(m.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, err
	}
	pl.device = dev
	return pl, nil
}

type malgoPlayer struct {
	device *malgo.Device
	pcm    []byte

	mu  sync.Mutex
	pos int

	done     chan struct{}
	doneOnce sync.Once
}

func (pl *malgoPlayer) Start() error {
	return pl.device.Start()
}

func (pl *malgoPlayer) Pause() {
	pl.device.Stop()
}

func (pl *malgoPlayer) Resume() {
	pl.device.Start()
}

func (pl *malgoPlayer) Stop() {
	pl.device.Stop()
	pl.device.Uninit()
	pl.doneOnce.Do(func() { close(pl.done) })
}

func (pl *malgoPlayer) Done() <-chan struct{} {
	return pl.done
}
