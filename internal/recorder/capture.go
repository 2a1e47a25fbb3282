package recorder

import (
	"context"
	"io"
)

// Format describes how the microphone should be captured. Samples are always
// signed 16-bit little endian.
type Format struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// DefaultFormat is mono 16 kHz from the default pulse source
var DefaultFormat = Format{
	SampleRate:  16000,
	Channels:    1,
	InputFormat: "pulse",
	InputDevice: "default",
}

func (f Format) withDefaults() Format {
	if f.SampleRate <= 0 {
		f.SampleRate = DefaultFormat.SampleRate
	}
	if f.Channels <= 0 {
		f.Channels = DefaultFormat.Channels
	}
	if f.InputFormat == "" {
		f.InputFormat = DefaultFormat.InputFormat
	}
	if f.InputDevice == "" {
		f.InputDevice = DefaultFormat.InputDevice
	}
	return f
}

// bytesPerSecond of raw PCM in this format
func (f Format) bytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Stream is a live capture stream of raw PCM.
type Stream interface {
	io.ReadCloser
	Stop() error
}

// Capture opens microphone streams.
type Capture interface {
	Start(ctx context.Context, format Format) (Stream, error)
}
