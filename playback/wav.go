package playback

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// parseWAV extracts the PCM payload and format from a RIFF/WAVE buffer.
// Only 16-bit PCM is accepted, which is what the server synthesizes.
func parseWAV(data []byte) (pcm []byte, sampleRate, channels uint32, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("not a RIFF/WAVE stream")
	}

	var haveFmt bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body // tolerate truncated final chunk
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, 0, errors.New("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body:])
			channels = uint32(binary.LittleEndian.Uint16(data[body+2:]))
			sampleRate = binary.LittleEndian.Uint32(data[body+4:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if format != 1 || bits != 16 {
				return nil, 0, 0, fmt.Errorf("unsupported WAV encoding (format=%d bits=%d)", format, bits)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, 0, 0, errors.New("data chunk before fmt")
			}
			return data[body : body+size], sampleRate, channels, nil
		}

		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}
	return nil, 0, 0, errors.New("no data chunk")
}
