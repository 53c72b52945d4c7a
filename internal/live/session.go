// Package live runs the realtime voice assistant: microphone frames stream up,
// synthesized audio streams down and is queued gap-free on the output clock.
package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/infra"
	"studio/internal/mediacodec"
)

// FrameSize is the number of samples per captured frame.
const FrameSize = 4096

// ErrAlreadyConnected is returned by Connect outside the Disconnected state.
var ErrAlreadyConnected = errors.New("live: session already connected")

// State is the session lifecycle.
type State int

const (
	Disconnected State = iota
	Connecting
	Active
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Active:
		return "active"
	default:
		return "disconnected"
	}
}

// Options configures a Session.
type Options struct {
	Devices Devices
	Dialer  Dialer
	Config  Config
	// OnStatus observes the active flag. It is called outside internal locks.
	OnStatus func(active bool)
	Logger   *infra.Logger
}

// Session is one assistant channel. It may be reconnected after teardown but
// every connection gets fresh devices and transport.
type Session struct {
	devices  Devices
	dialer   Dialer
	cfg      Config
	onStatus func(bool)
	logger   *infra.Logger

	mu        sync.Mutex
	state     State
	active    bool
	gen       uint64
	// opened records an open event that arrived before Dial returned.
	opened    bool
	mic       Microphone
	input     InputPipeline
	output    OutputPipeline
	node      CaptureNode
	transport Transport
	nextStart time.Duration
	voices    map[Voice]struct{}
}

func NewSession(opts Options) (*Session, error) {
	if opts.Devices == nil {
		return nil, errors.New("live: devices are required")
	}
	if opts.Dialer == nil {
		return nil, errors.New("live: dialer is required")
	}
	cfg := opts.Config
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash-native-audio-preview-09-2025"
	}
	if cfg.Voice == "" {
		cfg.Voice = "Kore"
	}
	if cfg.SystemInstruction == "" {
		cfg.SystemInstruction = SystemInstruction
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Session{
		devices:  opts.Devices,
		dialer:   opts.Dialer,
		cfg:      cfg,
		onStatus: opts.OnStatus,
		logger:   logger,
		voices:   map[Voice]struct{}{},
	}, nil
}

// State reports the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether audio is flowing.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Connect acquires devices and dials the assistant. On failure nothing is left
// open and the session is Disconnected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = Connecting
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	if err := s.acquire(gen); err != nil {
		s.teardown(gen)
		return err
	}

	transport, err := s.dialer.Dial(ctx, s.cfg, Callbacks{
		OnOpen:    func() { s.handleOpen(gen) },
		OnMessage: func(m Message) { s.handleMessage(gen, m) },
		OnClose: func() {
			s.logger.Info().Msg("live: session closed")
			s.teardown(gen)
		},
		OnError: func(err error) {
			s.logger.Error().Err(err).Msg("live: session error")
			s.teardown(gen)
		},
	})
	if err != nil {
		s.teardown(gen)
		return fmt.Errorf("live: dial: %w", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		_ = transport.Close()
		return errSuperseded
	}
	s.transport = transport
	opened := s.opened
	s.opened = false
	s.mu.Unlock()
	s.logger.Info().Str("model", s.cfg.Model).Msg("live: dialed")
	if opened {
		s.activate(gen)
	}
	return nil
}

var errSuperseded = errors.New("live: session ended while connecting")

func (s *Session) acquire(gen uint64) error {
	mic, err := s.devices.Microphone()
	if err != nil {
		return fmt.Errorf("live: microphone: %w", err)
	}
	if !s.store(gen, func() { s.mic = mic }) {
		_ = mic.Close()
		return errSuperseded
	}

	input, err := s.devices.NewInputPipeline(mediacodec.CaptureSampleRate)
	if err != nil {
		return fmt.Errorf("live: input pipeline: %w", err)
	}
	if !s.store(gen, func() { s.input = input }) {
		_ = input.Close()
		return errSuperseded
	}

	output, err := s.devices.NewOutputPipeline(mediacodec.SpeechSampleRate)
	if err != nil {
		return fmt.Errorf("live: output pipeline: %w", err)
	}
	if !s.store(gen, func() { s.output = output }) {
		_ = output.Close()
		return errSuperseded
	}
	return nil
}

// store runs set under the lock if gen is still current.
func (s *Session) store(gen uint64, set func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	set()
	return true
}

// Disconnect asks the remote end to close and tears down regardless.
func (s *Session) Disconnect() {
	s.mu.Lock()
	transport := s.transport
	gen := s.gen
	s.mu.Unlock()
	if transport != nil {
		if err := transport.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("live: close transport")
		}
	}
	s.teardown(gen)
}

// handleOpen starts capture once the transport is known. An open that races
// ahead of Dial is deferred to Connect so no frame is captured without a
// transport to send it on.
func (s *Session) handleOpen(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != Connecting {
		s.mu.Unlock()
		return
	}
	if s.transport == nil {
		s.opened = true
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.activate(gen)
}

func (s *Session) activate(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != Connecting {
		s.mu.Unlock()
		return
	}
	s.state = Active
	s.active = true
	mic, input := s.mic, s.input
	s.mu.Unlock()

	s.notify(true)

	node, err := input.Capture(mic, FrameSize, func(samples []float32) { s.sendFrame(gen, samples) })
	if err != nil {
		s.logger.Error().Err(err).Msg("live: start capture")
		s.teardown(gen)
		return
	}
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		node.Disconnect()
		return
	}
	s.node = node
	s.mu.Unlock()
}

// sendFrame streams a frame without waiting for acknowledgement.
func (s *Session) sendFrame(gen uint64, samples []float32) {
	s.mu.Lock()
	if s.gen != gen || !s.active || s.transport == nil {
		s.mu.Unlock()
		return
	}
	transport := s.transport
	s.mu.Unlock()

	if err := transport.Send(mediacodec.PCMChunk(samples)); err != nil {
		s.logger.Debug().Err(err).Msg("live: send frame")
	}
}

func (s *Session) handleMessage(gen uint64, m Message) {
	if m.Interrupted {
		s.interrupt(gen)
	}
	for _, pcm := range m.Audio {
		if len(pcm) == 0 {
			continue
		}
		s.schedule(gen, mediacodec.DecodePCM16(pcm))
	}
}

// schedule queues samples right after max(now, previous end). The active flag
// is checked under the same lock teardown takes.
func (s *Session) schedule(gen uint64, samples []float32) {
	s.mu.Lock()
	if s.gen != gen || !s.active || s.output == nil {
		s.mu.Unlock()
		return
	}
	out := s.output
	if now := out.CurrentTime(); now > s.nextStart {
		s.nextStart = now
	}
	at := s.nextStart
	voice, err := out.Play(samples, at)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("live: schedule playback")
		return
	}
	s.nextStart += samplesDuration(len(samples), out.SampleRate())
	s.voices[voice] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-voice.Done()
		s.mu.Lock()
		delete(s.voices, voice)
		s.mu.Unlock()
	}()
}

func (s *Session) interrupt(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	voices := s.drainVoices()
	s.nextStart = 0
	s.mu.Unlock()
	for _, v := range voices {
		v.Stop()
	}
}

// teardown releases everything held by connection gen. It is idempotent and
// always reports the session inactive.
func (s *Session) teardown(gen uint64) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.active = false
	s.opened = false
	s.state = Disconnected
	mic, input, output, node := s.mic, s.input, s.output, s.node
	s.mic, s.input, s.output, s.node, s.transport = nil, nil, nil, nil, nil
	voices := s.drainVoices()
	s.nextStart = 0
	s.mu.Unlock()

	s.notify(false)

	if node != nil {
		node.Disconnect()
	}
	if mic != nil {
		_ = mic.Close()
	}
	if input != nil {
		_ = input.Close()
	}
	if output != nil {
		_ = output.Close()
	}
	for _, v := range voices {
		v.Stop()
	}
}

// drainVoices must be called with s.mu held.
func (s *Session) drainVoices() []Voice {
	out := make([]Voice, 0, len(s.voices))
	for v := range s.voices {
		out = append(out, v)
	}
	s.voices = map[Voice]struct{}{}
	return out
}

func (s *Session) notify(active bool) {
	if s.onStatus != nil {
		s.onStatus(active)
	}
}

func samplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}
