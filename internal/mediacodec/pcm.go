package mediacodec

import (
	"encoding/binary"
	"fmt"
)

// Chunk is a transport-ready audio payload.
type Chunk struct {
	MIMEType string
	Data     []byte
}

// PCMChunk converts float samples in [-1, 1] to 16-bit little-endian PCM
// tagged with the capture rate. Out-of-range samples are clamped.
func PCMChunk(samples []float32) Chunk {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return Chunk{
		MIMEType: fmt.Sprintf("audio/pcm;rate=%d", CaptureSampleRate),
		Data:     out,
	}
}

// DecodePCM16 converts 16-bit little-endian PCM into float samples. A trailing
// odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

func floatToInt16(s float32) int16 {
	switch {
	case s >= 1:
		return 32767
	case s <= -1:
		return -32768
	default:
		return int16(s * 32768)
	}
}
