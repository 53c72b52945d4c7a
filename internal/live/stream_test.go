package live

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func TestStreamCaptureDeliversFrames(t *testing.T) {
	devices := &StreamDevices{In: bytes.NewReader(make([]byte, 3*8*2+3)), Out: &syncBuffer{}}
	mic, err := devices.Microphone()
	require.NoError(t, err)
	input, err := devices.NewInputPipeline(16000)
	require.NoError(t, err)

	frames := make(chan int, 8)
	_, err = input.Capture(mic, 8, func(samples []float32) { frames <- len(samples) })
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		select {
		case n := <-frames:
			require.Equal(t, 8, n)
		case <-time.After(time.Second):
			t.Fatal("frame not delivered")
		}
	}
}

func TestStreamOutputPlaysAndStops(t *testing.T) {
	out := &syncBuffer{}
	devices := &StreamDevices{In: bytes.NewReader(nil), Out: out}
	pipeline, err := devices.NewOutputPipeline(24000)
	require.NoError(t, err)

	voice, err := pipeline.Play(make([]float32, 24), pipeline.CurrentTime())
	require.NoError(t, err)
	select {
	case <-voice.Done():
	case <-time.After(time.Second):
		t.Fatal("voice did not finish")
	}
	require.Equal(t, 48, out.Len())

	late, err := pipeline.Play(make([]float32, 24), pipeline.CurrentTime()+time.Hour)
	require.NoError(t, err)
	late.Stop()
	<-late.Done()

	require.NoError(t, pipeline.Close())
	_, err = pipeline.Play(make([]float32, 24), 0)
	require.Error(t, err)
	require.Equal(t, 48, out.Len())
}
