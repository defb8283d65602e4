package encoder

import (
	"encoding/binary"
	"math"
	"testing"
)

// toneSamples generates a 440Hz sine so the encoders have something
// non-trivial to chew on.
func toneSamples(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/SampleRate))
	}
	return samples
}

func feedBlocks(t *testing.T, enc Encoder, samples []int16) uint64 {
	t.Helper()
	var fed uint64
	for i := 0; i < len(samples); i += BlockSize {
		end := i + BlockSize
		if end > len(samples) {
			end = len(samples)
		}
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			t.Fatalf("EncodeBlock at offset %d: %v", i, err)
		}
		fed += uint64(end - i)
	}
	return fed
}

func TestFlacEncoder(t *testing.T) {
	samples := toneSamples(SampleRate) // one second

	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	fed := feedBlocks(t, enc, samples)
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if enc.TotalFrames() != fed {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), fed)
	}
	out := enc.Bytes()
	if len(out) < 4 || string(out[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacEncoderPartialBlock(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	partial := toneSamples(BlockSize / 4)
	if err := enc.EncodeBlock(partial); err != nil {
		t.Fatalf("EncodeBlock partial: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != uint64(len(partial)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(partial))
	}
}

func TestWavEncoder(t *testing.T) {
	samples := toneSamples(SampleRate / 2)

	enc := NewWav()
	fed := feedBlocks(t, enc, samples)
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != fed {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), fed)
	}

	out := enc.Bytes()
	if len(out) != 44+len(samples)*2 {
		t.Fatalf("output size = %d, want %d", len(out), 44+len(samples)*2)
	}
	if string(out[:4]) != "RIFF" || string(out[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint32(out[24:]); got != SampleRate {
		t.Errorf("header sample rate = %d, want %d", got, SampleRate)
	}
	if got := binary.LittleEndian.Uint32(out[40:]); got != uint32(len(samples)*2) {
		t.Errorf("data chunk size = %d, want %d", got, len(samples)*2)
	}
	// first sample survives the round trip
	if got := int16(binary.LittleEndian.Uint16(out[44:])); got != samples[0] {
		t.Errorf("first sample = %d, want %d", got, samples[0])
	}
}

func TestNewByFormat(t *testing.T) {
	for _, format := range []string{"flac", "wav"} {
		if _, err := New(format); err != nil {
			t.Errorf("New(%q): %v", format, err)
		}
	}
	if _, err := New("ogg"); err == nil {
		t.Error("New(ogg) should fail")
	}
}
