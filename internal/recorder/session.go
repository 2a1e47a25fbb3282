package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
)

// State of a capture session
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

const (
	// DefaultLevelInterval is the amplitude sampling cadence
	DefaultLevelInterval = 100 * time.Millisecond

	elapsedTick = time.Second
	readChunk   = 4096
)

// Option configures a Session
type Option func(*Session)

// WithFormat sets the capture format
func WithFormat(format Format) Option {
	return func(s *Session) {
		s.format = format.withDefaults()
	}
}

// WithLevelSink enables amplitude sampling into sink
func WithLevelSink(sink LevelSink) Option {
	return func(s *Session) {
		s.levels = sink
	}
}

// WithLevelInterval overrides the amplitude sampling cadence
func WithLevelInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.levelInterval = d
		}
	}
}

// WithTickInterval overrides the one second elapsed tick
func WithTickInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// Session owns one microphone capture at a time. Every goroutine it starts is
// torn down before Stop returns.
type Session struct {
	capture       Capture
	ownerID       string
	format        Format
	levels        LevelSink
	levelInterval time.Duration
	tickInterval  time.Duration
	now           func() time.Time
	logger        *zap.Logger

	mu     sync.Mutex
	state  State
	active *activeCapture

	elapsed atomic.Int64
}

type activeCapture struct {
	stream    Stream
	cancel    context.CancelFunc
	startedAt time.Time
	done      chan struct{}
	wg        sync.WaitGroup

	bufMu  sync.Mutex
	buf    bytes.Buffer
	recent []byte
}

// NewSession creates an idle session recording for ownerID
func NewSession(capture Capture, ownerID string, logger *zap.Logger, opts ...Option) *Session {
	s := &Session{
		capture:       capture,
		ownerID:       ownerID,
		format:        DefaultFormat,
		levelInterval: DefaultLevelInterval,
		tickInterval:  elapsedTick,
		now:           time.Now,
		logger:        logger,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Elapsed returns whole seconds recorded since the last Start
func (s *Session) Elapsed() int {
	return int(s.elapsed.Load())
}

// Start opens the microphone and begins buffering
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording {
		return domain.ErrAlreadyRecording
	}

	captureCtx, cancel := context.WithCancel(ctx)
	stream, err := s.capture.Start(captureCtx, s.format)
	if err != nil {
		cancel()
		s.logger.Error("Failed to open capture device", zap.Error(err))
		return fmt.Errorf("%w: %w", domain.ErrDeviceUnavailable, err)
	}

	active := &activeCapture{
		stream:    stream,
		cancel:    cancel,
		startedAt: s.now(),
		done:      make(chan struct{}),
	}
	s.elapsed.Store(0)
	s.active = active
	s.state = StateRecording

	active.wg.Add(2)
	go s.readLoop(active)
	go s.tickLoop(active)
	if s.levels != nil {
		active.wg.Add(1)
		go s.sampleLoop(active)
	}

	s.logger.Info("Recording started",
		zap.String("owner_id", s.ownerID),
		zap.Int("sample_rate", s.format.SampleRate))
	return nil
}

// Stop ends the capture and returns the WAV recording. Stopping an idle
// session returns nil without error.
func (s *Session) Stop() (*entities.AudioRecording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return nil, nil
	}
	active := s.active

	close(active.done)
	if err := active.stream.Stop(); err != nil {
		s.logger.Warn("Capture did not stop cleanly", zap.Error(err))
	}
	active.cancel()
	active.wg.Wait()

	s.active = nil
	s.state = StateIdle

	active.bufMu.Lock()
	pcm := active.buf.Bytes()
	active.bufMu.Unlock()

	duration := float64(len(pcm)) / float64(s.format.bytesPerSecond())
	recording := entities.NewAudioRecording(
		s.ownerID,
		active.startedAt,
		EncodeWAV(pcm, s.format.SampleRate, s.format.Channels),
		entities.ContentTypeWAV,
		duration,
	)

	s.logger.Info("Recording stopped",
		zap.String("owner_id", s.ownerID),
		zap.Int("pcm_bytes", len(pcm)),
		zap.Float64("duration_seconds", duration))
	return recording, nil
}

func (s *Session) readLoop(active *activeCapture) {
	defer active.wg.Done()

	chunk := make([]byte, readChunk)
	for {
		n, err := active.stream.Read(chunk)
		if n > 0 {
			active.bufMu.Lock()
			active.buf.Write(chunk[:n])
			active.recent = append(active.recent[:0], chunk[:n]...)
			active.bufMu.Unlock()
		}
		if err != nil {
			select {
			case <-active.done:
			default:
				if !errors.Is(err, io.EOF) {
					s.logger.Warn("Capture read failed", zap.Error(err))
				}
			}
			return
		}
	}
}

func (s *Session) tickLoop(active *activeCapture) {
	defer active.wg.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-active.done:
			return
		case <-ticker.C:
			s.elapsed.Add(1)
		}
	}
}

func (s *Session) sampleLoop(active *activeCapture) {
	defer active.wg.Done()

	ticker := time.NewTicker(s.levelInterval)
	defer ticker.Stop()
	for {
		select {
		case <-active.done:
			return
		case <-ticker.C:
			active.bufMu.Lock()
			level := measureLevel(active.recent)
			active.bufMu.Unlock()

			select {
			case s.levels <- level:
			default:
			}
		}
	}
}
