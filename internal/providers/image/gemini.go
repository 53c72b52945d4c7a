// Package image turns product photos into catalogue images and applies
// free-form edits to generated images.
package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers/genai"
)

// Source is the conditioning image sent with a request.
type Source struct {
	Data []byte
	MIME string
}

// Asset is a generated image.
type Asset struct {
	Data []byte
	MIME string
}

// ContentGenerator is the subset of the Gemini client used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, req genai.GenerateContentRequest) (*genai.GenerateContentResponse, error)
}

// Options configures a Generator.
type Options struct {
	Client ContentGenerator
	Model  string
	Logger *infra.Logger
}

// Generator produces images through the Gemini image model.
type Generator struct {
	client ContentGenerator
	model  string
	logger *infra.Logger
}

func NewGenerator(opts Options) (*Generator, error) {
	if opts.Client == nil {
		return nil, errors.New("image: client is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.5-flash-image"
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Generator{client: opts.Client, model: model, logger: logger}, nil
}

// Catalogue restyles an uploaded product photo.
func (g *Generator) Catalogue(ctx context.Context, src Source, description, style string) (*Asset, error) {
	return g.generate(ctx, src, CataloguePrompt(description, style), "image/jpeg")
}

// Edit applies an instruction to a previously generated image.
func (g *Generator) Edit(ctx context.Context, src Source, instruction string) (*Asset, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, fmt.Errorf("%w: edit instruction is required", domain.ErrInvalidInput)
	}
	return g.generate(ctx, src, instruction, "image/png")
}

func (g *Generator) generate(ctx context.Context, src Source, prompt, fallbackMIME string) (*Asset, error) {
	if len(src.Data) == 0 {
		return nil, fmt.Errorf("%w: source image is empty", domain.ErrInvalidInput)
	}
	mime := sourceMIME(src, fallbackMIME)

	resp, err := g.client.GenerateContent(ctx, g.model, genai.GenerateContentRequest{
		Contents: genai.UserContent(
			genai.BlobPart(mime, src.Data),
			genai.TextPart(prompt),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	blob, ok := resp.FirstBlob()
	if !ok {
		if reason := resp.BlockReason(); reason != "" {
			g.logger.Warn().Str("model", g.model).Str("reason", reason).Msg("image: blocked by safety filters")
			return nil, &domain.SafetyFilterError{Reason: reason}
		}
		return nil, fmt.Errorf("%w: no image generated", domain.ErrGeneration)
	}

	out := blob.MimeType
	if out == "" {
		out = http.DetectContentType(blob.Data)
	}
	g.logger.Debug().Str("model", g.model).Int("bytes", len(blob.Data)).Msg("image: generated")
	return &Asset{Data: blob.Data, MIME: out}, nil
}

func sourceMIME(src Source, fallback string) string {
	if m := strings.TrimSpace(src.MIME); strings.HasPrefix(m, "image/") {
		return m
	}
	if sniffed := http.DetectContentType(src.Data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	return fallback
}
