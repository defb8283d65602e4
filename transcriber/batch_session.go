package transcriber

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"time"

	"orion/encoder"
)

type transcribeFunc func(audio []byte, format string) (*Result, error)

// batchSession encodes PCM concurrently while the user is still
// speaking, then uploads the finished file in one request at Close.
type batchSession struct {
	cfg        SessionConfig
	transcribe transcribeFunc
	encoder    encoder.Encoder
	blockChan  chan []int16
	encodeDone chan struct{}
	sampleBuf  []int16
	bufMu      sync.Mutex
}

func newBatchSession(cfg SessionConfig, transcribe transcribeFunc) (*batchSession, error) {
	enc, err := encoder.New(cfg.Format)
	if err != nil {
		return nil, err
	}

	bs := &batchSession{
		cfg:        cfg,
		transcribe: transcribe,
		encoder:    enc,
		blockChan:  make(chan []int16, 64),
		encodeDone: make(chan struct{}),
	}

	go func() {
		defer close(bs.encodeDone)
		for block := range bs.blockChan {
			start := time.Now()
			bs.encoder.EncodeBlock(block)
			bs.encoder.AddEncodeTime(time.Since(start))
		}
	}()

	return bs, nil
}

func (bs *batchSession) Feed(pcm []byte) {
	bs.bufMu.Lock()
	for i := 0; i+1 < len(pcm); i += 2 {
		bs.sampleBuf = append(bs.sampleBuf, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	var blocks [][]int16
	for len(bs.sampleBuf) >= encoder.BlockSize {
		block := make([]int16, encoder.BlockSize)
		copy(block, bs.sampleBuf[:encoder.BlockSize])
		bs.sampleBuf = bs.sampleBuf[encoder.BlockSize:]
		blocks = append(blocks, block)
	}
	bs.bufMu.Unlock()

	for _, block := range blocks {
		bs.blockChan <- block
	}
}

func (bs *batchSession) Abort() {
	close(bs.blockChan)
	<-bs.encodeDone
	bs.encoder.Close()
}

func (bs *batchSession) Close() (SessionResult, error) {
	bs.bufMu.Lock()
	if len(bs.sampleBuf) > 0 {
		partial := make([]int16, len(bs.sampleBuf))
		copy(partial, bs.sampleBuf)
		bs.blockChan <- partial
	}
	bs.bufMu.Unlock()

	close(bs.blockChan)
	<-bs.encodeDone

	if err := bs.encoder.Close(); err != nil {
		return SessionResult{}, err
	}

	audioData := bs.encoder.Bytes()
	result, err := bs.transcribe(audioData, bs.cfg.Format)
	if err != nil {
		return SessionResult{}, err
	}

	text := strings.TrimSpace(result.Text)
	noSpeech := text == ""

	enc := bs.encoder
	rawSize := enc.TotalFrames() * 2
	encodedSize := uint64(len(enc.Bytes()))
	compressionPct := (1.0 - float64(encodedSize)/float64(rawSize)) * 100
	audioDuration := float64(enc.TotalFrames()) / float64(encoder.SampleRate)
	netMetrics := result.Metrics

	sr := SessionResult{
		Text:     text,
		HasText:  !noSpeech,
		NoSpeech: noSpeech,
		Batch: &BatchStats{
			AudioLengthS:     audioDuration,
			RawSizeKB:        float64(rawSize) / 1024,
			CompressedSizeKB: float64(encodedSize) / 1024,
			CompressionPct:   compressionPct,
			EncodeTimeMs:     float64(enc.EncodeTime().Milliseconds()),
			TTFBMs:           float64(netMetrics.TTFB.Milliseconds()),
			TotalTimeMs:      float64(netMetrics.Total.Milliseconds()),
			ConnReused:       netMetrics.ConnReused,
		},
		Metrics: bs.formatMetrics(rawSize, encodedSize, compressionPct, audioDuration, result),
	}
	sr.captureMemStats()
	return sr, nil
}

func (bs *batchSession) formatMetrics(rawSize, encodedSize uint64, compressionPct, audioDuration float64, result *Result) []string {
	metrics := result.Metrics

	reusedStatus := ""
	if metrics.ConnReused {
		reusedStatus = " (reused)"
	}

	lines := []string{
		fmt.Sprintf("audio:      %.1fs | %.1f KB → %.1f KB (%.0f%% smaller)",
			audioDuration, float64(rawSize)/1024, float64(encodedSize)/1024, compressionPct),
		fmt.Sprintf("format:     %s", bs.cfg.Format),
		fmt.Sprintf("encode:     %dms (concurrent)", bs.encoder.EncodeTime().Milliseconds()),
		fmt.Sprintf("ttfb:       %dms%s", metrics.TTFB.Milliseconds(), reusedStatus),
		fmt.Sprintf("total:      %dms", metrics.Total.Milliseconds()),
	}
	if result.Duration > 0 {
		lines = append(lines, fmt.Sprintf("api_dur:    %.2fs", result.Duration))
	}
	if result.Language != "" {
		lines = append(lines, fmt.Sprintf("language:   %s", result.Language))
	}
	return lines
}
