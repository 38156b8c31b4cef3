package audio

import (
	"encoding/binary"
	"fmt"
)

// wavInfo holds the fields of a WAV fmt chunk needed for playback.
type wavInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// decodeWAV walks the RIFF chunks of a WAV file and returns its format
// and raw PCM payload. Only uncompressed PCM is supported.
func decodeWAV(data []byte) (wavInfo, []byte, error) {
	var info wavInfo

	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return info, nil, fmt.Errorf("not a RIFF WAVE file")
	}

	pos := 12
	var pcm []byte
	haveFmt := false

	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8

		if pos+chunkSize > len(data) {
			return info, nil, fmt.Errorf("truncated %q chunk", chunkID)
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return info, nil, fmt.Errorf("fmt chunk too short: %d bytes", chunkSize)
			}
			format := binary.LittleEndian.Uint16(data[pos : pos+2])
			if format != 1 {
				return info, nil, fmt.Errorf("unsupported WAV encoding %d, want PCM", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[pos+2 : pos+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
			info.BitDepth = int(binary.LittleEndian.Uint16(data[pos+14 : pos+16]))
			haveFmt = true
		case "data":
			pcm = data[pos : pos+chunkSize]
		}

		pos += chunkSize
		if chunkSize%2 == 1 {
			pos++ // chunks are word aligned
		}
	}

	if !haveFmt {
		return info, nil, fmt.Errorf("missing fmt chunk")
	}
	if pcm == nil {
		return info, nil, fmt.Errorf("missing data chunk")
	}
	return info, pcm, nil
}
