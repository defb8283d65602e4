package transcriber

import "runtime"

func (r *SessionResult) captureMemStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	r.MemoryAllocMB = float64(m.Alloc) / 1024 / 1024
	r.MemoryPeakMB = float64(m.TotalAlloc) / 1024 / 1024
}

type SessionConfig struct {
	Format   string // "flac" or "wav"
	Language string
}

type BatchStats struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	TTFBMs           float64
	TotalTimeMs      float64
	ConnReused       bool
}

type SessionResult struct {
	Text          string
	HasText       bool
	NoSpeech      bool
	MemoryAllocMB float64
	MemoryPeakMB  float64
	Batch         *BatchStats
	Metrics       []string // pre-formatted lines for the status view
}

type Session interface {
	Feed(pcm []byte)
	// Close finishes encoding and uploads for transcription.
	Close() (SessionResult, error)
	// Abort discards the session without contacting the server.
	Abort()
}
