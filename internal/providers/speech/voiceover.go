// Package speech synthesizes promotional voice-overs.
package speech

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"studio/internal/infra"
	"studio/internal/mediacodec"
	"studio/internal/providers/genai"
)

// MaxScriptRunes bounds the text sent for synthesis.
const MaxScriptRunes = 200

const scriptPrefix = "Voz en off promocional: "

// ContentGenerator is the subset of the Gemini client used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, req genai.GenerateContentRequest) (*genai.GenerateContentResponse, error)
}

type Options struct {
	Client ContentGenerator
	Model  string
	Voice  string
	Logger *infra.Logger
}

// Synthesizer turns scripts into WAV audio at 24 kHz.
type Synthesizer struct {
	client ContentGenerator
	model  string
	voice  string
	logger *infra.Logger
}

func NewSynthesizer(opts Options) (*Synthesizer, error) {
	if opts.Client == nil {
		return nil, errors.New("speech: client is required")
	}
	s := &Synthesizer{client: opts.Client, model: opts.Model, voice: opts.Voice, logger: opts.Logger}
	if s.model == "" {
		s.model = "gemini-2.5-flash-preview-tts"
	}
	if s.voice == "" {
		s.voice = "Kore"
	}
	if s.logger == nil {
		discard := zerolog.New(io.Discard)
		s.logger = &discard
	}
	return s, nil
}

// Script truncates text to MaxScriptRunes.
func Script(text string) string {
	text = strings.TrimSpace(text)
	if r := []rune(text); len(r) > MaxScriptRunes {
		return string(r[:MaxScriptRunes])
	}
	return text
}

// VoiceOver returns a playable WAV file, or nil when synthesis fails. Failures
// are logged and never returned.
func (s *Synthesizer) VoiceOver(ctx context.Context, text string) []byte {
	script := Script(text)
	if script == "" {
		return nil
	}
	resp, err := s.client.GenerateContent(ctx, s.model, genai.GenerateContentRequest{
		Contents: []genai.Content{{Parts: []genai.Part{genai.TextPart(scriptPrefix + script)}}},
		GenerationConfig: &genai.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: genai.VoiceConfig{PrebuiltVoiceConfig: genai.PrebuiltVoiceConfig{VoiceName: s.voice}},
			},
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("model", s.model).Msg("speech: voice-over failed")
		return nil
	}
	blob, ok := resp.FirstBlob()
	if !ok {
		s.logger.Warn().Str("model", s.model).Msg("speech: no audio generated")
		return nil
	}
	return mediacodec.EncodeWAV(blob.Data, mediacodec.SpeechSampleRate)
}
