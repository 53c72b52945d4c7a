package live

import (
	"context"

	"studio/internal/mediacodec"
)

// SystemInstruction primes the assistant.
const SystemInstruction = "Eres un asistente creativo útil para una aplicación de generación de catálogos. Ayuda a los usuarios a refinar sus prompts e ideas en español."

// Config selects the remote model and persona.
type Config struct {
	Model             string
	Voice             string
	SystemInstruction string
}

// Message is one server event. Audio is 16-bit PCM at the output rate.
type Message struct {
	Audio        [][]byte
	Interrupted  bool
	TurnComplete bool
}

// Callbacks are invoked by a Transport from its own goroutine.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(Message)
	OnClose   func()
	OnError   func(error)
}

// Transport is an open streaming connection.
type Transport interface {
	Send(chunk mediacodec.Chunk) error
	Close() error
}

// Dialer opens transports. Implementations call OnOpen once the stream is
// ready and exactly one of OnClose or OnError when it ends.
type Dialer interface {
	Dial(ctx context.Context, cfg Config, cb Callbacks) (Transport, error)
}
