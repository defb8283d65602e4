package encoder

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"
)

const wavHeaderSize = 44

// WavEncoder writes 16-bit little-endian PCM behind a RIFF header. The
// header sizes are patched at Close, once the sample count is known.
type WavEncoder struct {
	buf         bytes.Buffer
	totalFrames uint64
	encodeTime  time.Duration
	mu          sync.Mutex
	closed      bool
}

func NewWav() *WavEncoder {
	e := &WavEncoder{}
	e.buf.Write(make([]byte, wavHeaderSize))
	return e
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	raw := make([]byte, len(block)*2)
	for i, s := range block {
		binary.LittleEndian.PutUint16(raw[i*2:], uint16(s))
	}
	e.buf.Write(raw)
	e.totalFrames += uint64(len(block))
	e.encodeTime += time.Since(start)
	return nil
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	data := e.buf.Bytes()
	dataSize := uint32(len(data) - wavHeaderSize)

	copy(data[0:], "RIFF")
	binary.LittleEndian.PutUint32(data[4:], 36+dataSize)
	copy(data[8:], "WAVE")

	copy(data[12:], "fmt ")
	binary.LittleEndian.PutUint32(data[16:], 16)
	binary.LittleEndian.PutUint16(data[20:], 1) // PCM
	binary.LittleEndian.PutUint16(data[22:], Channels)
	binary.LittleEndian.PutUint32(data[24:], SampleRate)
	binary.LittleEndian.PutUint32(data[28:], SampleRate*Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(data[32:], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(data[34:], BitsPerSample)

	copy(data[36:], "data")
	binary.LittleEndian.PutUint32(data[40:], dataSize)
	return nil
}

func (e *WavEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *WavEncoder) TotalFrames() uint64 {
	return e.totalFrames
}

func (e *WavEncoder) AddEncodeTime(d time.Duration) {
	e.mu.Lock()
	e.encodeTime += d
	e.mu.Unlock()
}

func (e *WavEncoder) EncodeTime() time.Duration {
	return e.encodeTime
}
