package live

import (
	"errors"
	"io"
	"sync"
	"time"

	"studio/internal/mediacodec"
)

// StreamDevices backs a session with raw 16-bit mono PCM streams, e.g. piped
// from arecord and into aplay.
type StreamDevices struct {
	In  io.Reader
	Out io.Writer
	// Now defaults to time.Now.
	Now func() time.Time
}

type streamMic struct {
	r      io.Reader
	closed chan struct{}
	once   sync.Once
}

func (m *streamMic) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (d *StreamDevices) Microphone() (Microphone, error) {
	if d.In == nil {
		return nil, errors.New("live: no input stream")
	}
	return &streamMic{r: d.In, closed: make(chan struct{})}, nil
}

func (d *StreamDevices) NewInputPipeline(sampleRate int) (InputPipeline, error) {
	if sampleRate <= 0 {
		return nil, errors.New("live: invalid input sample rate")
	}
	return &streamInput{}, nil
}

func (d *StreamDevices) NewOutputPipeline(sampleRate int) (OutputPipeline, error) {
	if d.Out == nil {
		return nil, errors.New("live: no output stream")
	}
	if sampleRate <= 0 {
		return nil, errors.New("live: invalid output sample rate")
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	p := &streamOutput{
		w:      d.Out,
		rate:   sampleRate,
		now:    now,
		origin: now(),
		queue:  make(chan *streamVoice, 64),
		closed: make(chan struct{}),
	}
	go p.run()
	return p, nil
}

type streamInput struct{}

func (streamInput) Close() error { return nil }

func (streamInput) Capture(mic Microphone, frameSize int, onFrame func([]float32)) (CaptureNode, error) {
	m, ok := mic.(*streamMic)
	if !ok {
		return nil, errors.New("live: microphone is not a stream")
	}
	node := &streamNode{stop: make(chan struct{})}
	go func() {
		buf := make([]byte, frameSize*2)
		for {
			if _, err := io.ReadFull(m.r, buf); err != nil {
				return
			}
			select {
			case <-node.stop:
				return
			case <-m.closed:
				return
			default:
			}
			onFrame(mediacodec.DecodePCM16(buf))
		}
	}()
	return node, nil
}

// streamNode stops delivering frames on Disconnect. A read already blocked on
// the input returns at the next frame boundary.
type streamNode struct {
	stop chan struct{}
	once sync.Once
}

func (n *streamNode) Disconnect() {
	n.once.Do(func() { close(n.stop) })
}

var errOutputClosed = errors.New("live: output closed")

type streamOutput struct {
	w      io.Writer
	rate   int
	now    func() time.Time
	origin time.Time
	queue  chan *streamVoice
	closed chan struct{}
	once   sync.Once
}

func (p *streamOutput) SampleRate() int { return p.rate }

func (p *streamOutput) CurrentTime() time.Duration {
	return p.now().Sub(p.origin)
}

func (p *streamOutput) Play(samples []float32, at time.Duration) (Voice, error) {
	v := &streamVoice{
		pcm:  mediacodec.PCMChunk(samples).Data,
		at:   at,
		dur:  samplesDuration(len(samples), p.rate),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	select {
	case <-p.closed:
		return nil, errOutputClosed
	default:
	}
	select {
	case <-p.closed:
		return nil, errOutputClosed
	case p.queue <- v:
		return v, nil
	}
}

func (p *streamOutput) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// run plays voices in schedule order. Voices are queued with non-decreasing
// start times so a single writer suffices.
func (p *streamOutput) run() {
	for {
		select {
		case <-p.closed:
			p.drain()
			return
		case v := <-p.queue:
			p.play(v)
		}
	}
}

func (p *streamOutput) play(v *streamVoice) {
	defer v.finish()
	if wait := v.at - p.CurrentTime(); wait > 0 {
		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-v.stop:
			t.Stop()
			return
		case <-p.closed:
			t.Stop()
			return
		}
	}
	select {
	case <-v.stop:
		return
	case <-p.closed:
		return
	default:
	}
	if _, err := p.w.Write(v.pcm); err != nil {
		return
	}
	t := time.NewTimer(v.dur)
	defer t.Stop()
	select {
	case <-t.C:
	case <-v.stop:
	case <-p.closed:
	}
}

func (p *streamOutput) drain() {
	for {
		select {
		case v := <-p.queue:
			v.finish()
		default:
			return
		}
	}
}

type streamVoice struct {
	pcm      []byte
	at, dur  time.Duration
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
}

func (v *streamVoice) Stop() {
	v.stopOnce.Do(func() { close(v.stop) })
	v.finish()
}

func (v *streamVoice) Done() <-chan struct{} { return v.done }

func (v *streamVoice) finish() {
	v.doneOnce.Do(func() { close(v.done) })
}
