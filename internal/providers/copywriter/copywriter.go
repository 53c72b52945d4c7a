// Package copywriter produces the text side of a campaign: grounded product
// research and the Instagram caption.
package copywriter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"studio/internal/infra"
	"studio/internal/providers/genai"
)

const (
	NoResearchFound   = "No se encontró información."
	NoCaptionFound    = "No se pudo generar el texto."
	CaptionFailed     = "Error al generar el texto para redes."
	RequiredHashtags  = 30
	researchPromptFmt = "Investiga esta URL del producto y proporciona un resumen conciso de sus características clave, estética visual y público objetivo en español: %s"
)

// ContentGenerator is the subset of the Gemini client used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, req genai.GenerateContentRequest) (*genai.GenerateContentResponse, error)
}

type Options struct {
	Client ContentGenerator
	Model  string
	Logger *infra.Logger
}

// Writer calls the text model. Every method degrades to a fixed string
// instead of returning an error.
type Writer struct {
	client ContentGenerator
	model  string
	logger *infra.Logger
}

func NewWriter(opts Options) (*Writer, error) {
	if opts.Client == nil {
		return nil, errors.New("copywriter: client is required")
	}
	w := &Writer{client: opts.Client, model: opts.Model, logger: opts.Logger}
	if w.model == "" {
		w.model = "gemini-2.5-flash"
	}
	if w.logger == nil {
		discard := zerolog.New(io.Discard)
		w.logger = &discard
	}
	return w, nil
}

// Research summarizes a product page using grounded search. It returns "" on
// failure.
func (w *Writer) Research(ctx context.Context, productURL string) string {
	productURL = strings.TrimSpace(productURL)
	if productURL == "" {
		return ""
	}
	resp, err := w.client.GenerateContent(ctx, w.model, genai.GenerateContentRequest{
		Contents: genai.UserContent(genai.TextPart(fmt.Sprintf(researchPromptFmt, productURL))),
		Tools:    []genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		w.logger.Warn().Err(err).Str("model", w.model).Msg("copywriter: research failed")
		return ""
	}
	text := resp.Text()
	if text == "" {
		return NoResearchFound
	}
	w.logger.Debug().Int("sources", resp.SourceCount()).Msg("copywriter: research grounded")
	return text
}

// SocialPrompt builds the caption request.
func SocialPrompt(description, style, projectName string) string {
	var b strings.Builder
	b.WriteString("Escribe un caption atractivo EXCLUSIVAMENTE para Instagram sobre este producto.\n")
	fmt.Fprintf(&b, "Nombre Campaña: %s.\n", strings.TrimSpace(projectName))
	fmt.Fprintf(&b, "Descripción: %s.\n", strings.TrimSpace(description))
	fmt.Fprintf(&b, "Estilo: %s.\n", strings.TrimSpace(style))
	b.WriteString("Instrucciones:\n")
	b.WriteString("- Usa un tono persuasivo y moderno.\n")
	b.WriteString("- Usa saltos de línea para que sea legible.\n")
	b.WriteString("- Incluye emojis estratégicos.\n")
	fmt.Fprintf(&b, "- Incluye exactamente %d hashtags relevantes al final.\n", RequiredHashtags)
	b.WriteString("- NO incluyas texto para LinkedIn ni otras redes. Solo Instagram.")
	return b.String()
}

// SocialPost writes the caption. Failures return a user-visible message.
func (w *Writer) SocialPost(ctx context.Context, description, style, projectName string) string {
	resp, err := w.client.GenerateContent(ctx, w.model, genai.GenerateContentRequest{
		Contents: genai.UserContent(genai.TextPart(SocialPrompt(description, style, projectName))),
	})
	if err != nil {
		w.logger.Warn().Err(err).Str("model", w.model).Msg("copywriter: social post failed")
		return CaptionFailed
	}
	text := resp.Text()
	if text == "" {
		return NoCaptionFound
	}
	if n := CountHashtags(text); n != RequiredHashtags {
		w.logger.Debug().Int("hashtags", n).Msg("copywriter: caption hashtag count differs")
	}
	return text
}

// CountHashtags counts whitespace-separated tokens starting with '#'.
func CountHashtags(text string) int {
	n := 0
	for _, field := range strings.Fields(text) {
		if len(field) > 1 && field[0] == '#' {
			n++
		}
	}
	return n
}
