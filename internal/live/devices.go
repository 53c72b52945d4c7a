package live

import "time"

// Microphone is an acquired input stream.
type Microphone interface {
	Close() error
}

// CaptureNode is a running frame tap on a microphone.
type CaptureNode interface {
	Disconnect()
}

// InputPipeline captures fixed-size frames from a microphone.
type InputPipeline interface {
	Capture(mic Microphone, frameSize int, onFrame func(samples []float32)) (CaptureNode, error)
	Close() error
}

// Voice is one scheduled output chunk.
type Voice interface {
	Stop()
	Done() <-chan struct{}
}

// OutputPipeline plays sample buffers on its own clock.
type OutputPipeline interface {
	SampleRate() int
	CurrentTime() time.Duration
	Play(samples []float32, at time.Duration) (Voice, error)
	Close() error
}

// Devices opens the audio endpoints of one session.
type Devices interface {
	Microphone() (Microphone, error)
	NewInputPipeline(sampleRate int) (InputPipeline, error)
	NewOutputPipeline(sampleRate int) (OutputPipeline, error)
}
