package recorder

import (
	"encoding/binary"
	"errors"
)

const wavHeaderSize = 44

// EncodeWAV wraps signed 16-bit little endian PCM in a RIFF/WAVE container
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	const bitsPerSample = 16
	blockAlign := channels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// WAVInfo is the header of a canonical PCM WAV file
type WAVInfo struct {
	SampleRate int
	Channels   int
	DataSize   int
}

// Duration of the PCM payload in seconds
func (w WAVInfo) Duration() float64 {
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return 0
	}
	return float64(w.DataSize) / float64(w.SampleRate*w.Channels*2)
}

// ParseWAVHeader reads the header written by EncodeWAV
func ParseWAVHeader(data []byte) (WAVInfo, error) {
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return WAVInfo{}, errors.New("not a RIFF/WAVE file")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return WAVInfo{}, errors.New("unsupported WAV layout")
	}
	return WAVInfo{
		SampleRate: int(binary.LittleEndian.Uint32(data[24:28])),
		Channels:   int(binary.LittleEndian.Uint16(data[22:24])),
		DataSize:   int(binary.LittleEndian.Uint32(data[40:44])),
	}, nil
}
