package recorder

import (
	"encoding/binary"
	"math"
)

// Level is one amplitude sample of the most recent audio, normalised to 0..1
type Level struct {
	RMS  float64
	Peak float64
}

// LevelSink receives amplitude samples. Sends never block; a full sink drops samples.
type LevelSink chan<- Level

// measureLevel computes RMS and peak of s16le PCM
func measureLevel(pcm []byte) Level {
	samples := len(pcm) / 2
	if samples == 0 {
		return Level{}
	}

	var sum float64
	var peak float64
	for i := 0; i < samples; i++ {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
		sum += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return Level{RMS: math.Sqrt(sum / float64(samples)), Peak: peak}
}

// Bar renders a level as a fixed-width meter
func (l Level) Bar(width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(math.Min(l.RMS*4, 1) * float64(width)))
	bar := make([]byte, width)
	for i := range bar {
		if i < filled {
			bar[i] = '#'
		} else {
			bar[i] = '.'
		}
	}
	return string(bar)
}
