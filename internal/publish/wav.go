package publish

import (
	"encoding/binary"
	"fmt"
)

// wavInfo is the playback metadata read from a RIFF/WAVE header
type wavInfo struct {
	SampleRate int
	Duration   float64
}

// parseWAV walks the RIFF chunk list for the fmt and data chunks. Duration
// is derived from the data chunk length and the byte rate, so it is correct
// for any PCM bit depth and channel count.
func parseWAV(data []byte) (*wavInfo, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var sampleRate, byteRate uint32
	var dataLen uint32
	haveFmt, haveData := false, false

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkLen := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if body+16 > len(data) {
				return nil, fmt.Errorf("truncated fmt chunk")
			}
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
			haveFmt = true
		case "data":
			dataLen = chunkLen
			haveData = true
		}

		// Chunks are word-aligned
		offset = body + int(chunkLen)
		if chunkLen%2 == 1 {
			offset++
		}

		if haveFmt && haveData {
			break
		}
	}

	if !haveFmt || !haveData {
		return nil, fmt.Errorf("missing fmt or data chunk")
	}
	if sampleRate == 0 || byteRate == 0 {
		return nil, fmt.Errorf("fmt chunk has zero rates")
	}

	return &wavInfo{
		SampleRate: int(sampleRate),
		Duration:   float64(dataLen) / float64(byteRate),
	}, nil
}
