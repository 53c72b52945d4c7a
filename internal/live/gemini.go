package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"studio/internal/mediacodec"
)

// GeminiDialer opens Live API sessions.
type GeminiDialer struct {
	APIKey string
}

func (d *GeminiDialer) Dial(ctx context.Context, cfg Config, cb Callbacks) (Transport, error) {
	if d.APIKey == "" {
		return nil, errors.New("live: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  d.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	session, err := client.Live.Connect(ctx, cfg.Model, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}},
	})
	if err != nil {
		return nil, fmt.Errorf("connect live session: %w", err)
	}

	t := &geminiTransport{session: session}
	go t.receive(cb)
	return t, nil
}

type geminiTransport struct {
	session *genai.Session

	mu     sync.Mutex
	closed bool
}

func (t *geminiTransport) Send(chunk mediacodec.Chunk) error {
	return t.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{MIMEType: chunk.MIMEType, Data: chunk.Data},
	})
}

func (t *geminiTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.session.Close()
}

func (t *geminiTransport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *geminiTransport) receive(cb Callbacks) {
	if cb.OnOpen != nil {
		cb.OnOpen()
	}
	for {
		msg, err := t.session.Receive()
		if err != nil {
			if t.isClosed() {
				if cb.OnClose != nil {
					cb.OnClose()
				}
			} else if cb.OnError != nil {
				cb.OnError(err)
			}
			return
		}
		if m, ok := toMessage(msg); ok && cb.OnMessage != nil {
			cb.OnMessage(m)
		}
	}
}

func toMessage(msg *genai.LiveServerMessage) (Message, bool) {
	if msg == nil || msg.ServerContent == nil {
		return Message{}, false
	}
	content := msg.ServerContent
	m := Message{Interrupted: content.Interrupted, TurnComplete: content.TurnComplete}
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				m.Audio = append(m.Audio, part.InlineData.Data)
			}
		}
	}
	return m, len(m.Audio) > 0 || m.Interrupted || m.TurnComplete
}
