package genai

import (
	"context"
	"strings"

	"studio/internal/mediacodec"
)

// Content is one turn of a generateContent conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a text or inline-binary fragment.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

// InlineData carries base64 encoded bytes.
type InlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// Tool enables a server-side tool for the request.
type Tool struct {
	GoogleSearch *GoogleSearch `json:"googleSearch,omitempty"`
}

// GoogleSearch enables grounded search.
type GoogleSearch struct{}

// GenerationConfig tunes the response.
type GenerationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *SpeechConfig `json:"speechConfig,omitempty"`
}

// SpeechConfig selects a prebuilt TTS voice.
type SpeechConfig struct {
	VoiceConfig VoiceConfig `json:"voiceConfig"`
}

type VoiceConfig struct {
	PrebuiltVoiceConfig PrebuiltVoiceConfig `json:"prebuiltVoiceConfig"`
}

type PrebuiltVoiceConfig struct {
	VoiceName string `json:"voiceName"`
}

// GenerateContentRequest is the generateContent request body.
type GenerateContentRequest struct {
	Contents         []Content         `json:"contents"`
	Tools            []Tool            `json:"tools,omitempty"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// Candidate is one generated answer.
type Candidate struct {
	Content           Content            `json:"content"`
	FinishReason      string             `json:"finishReason,omitempty"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

// GroundingMetadata lists the web sources behind a grounded answer.
type GroundingMetadata struct {
	WebSearchQueries []string         `json:"webSearchQueries,omitempty"`
	GroundingChunks  []GroundingChunk `json:"groundingChunks,omitempty"`
}

type GroundingChunk struct {
	Web *struct {
		URI   string `json:"uri,omitempty"`
		Title string `json:"title,omitempty"`
	} `json:"web,omitempty"`
}

// PromptFeedback reports prompt-level blocking.
type PromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

// GenerateContentResponse is the generateContent response body.
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
}

// Blob is decoded inline content.
type Blob struct {
	MimeType string
	Data     []byte
}

// Text concatenates the text parts of the first candidate.
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range r.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}

// FirstBlob returns the first decodable inline payload across candidates.
func (r *GenerateContentResponse) FirstBlob() (Blob, bool) {
	if r == nil {
		return Blob{}, false
	}
	for _, candidate := range r.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, _, err := mediacodec.DecodeBase64(part.InlineData.Data)
			if err != nil || len(data) == 0 {
				continue
			}
			return Blob{MimeType: part.InlineData.MimeType, Data: data}, true
		}
	}
	return Blob{}, false
}

// BlockReason reports a safety block on the prompt or the first candidate.
func (r *GenerateContentResponse) BlockReason() string {
	if r == nil {
		return ""
	}
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return r.PromptFeedback.BlockReason
	}
	for _, candidate := range r.Candidates {
		switch candidate.FinishReason {
		case "SAFETY", "IMAGE_SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
			return candidate.FinishReason
		}
	}
	return ""
}

// SourceCount reports how many grounding sources backed the answer.
func (r *GenerateContentResponse) SourceCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, candidate := range r.Candidates {
		if candidate.GroundingMetadata != nil {
			n += len(candidate.GroundingMetadata.GroundingChunks)
		}
	}
	return n
}

// GenerateContent calls models/{model}:generateContent.
func (c *Client) GenerateContent(ctx context.Context, model string, req GenerateContentRequest) (*GenerateContentResponse, error) {
	var resp GenerateContentResponse
	if err := c.post(ctx, modelPath(model, "generateContent"), req, &resp); err != nil {
		c.logger.Debug().Err(err).Str("model", model).Msg("genai: generateContent failed")
		return nil, err
	}
	return &resp, nil
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// BlobPart builds an inline-data part from raw bytes.
func BlobPart(mime string, data []byte) Part {
	return Part{InlineData: &InlineData{MimeType: mime, Data: mediacodec.EncodeBase64(data)}}
}

// UserContent wraps parts in a single user turn.
func UserContent(parts ...Part) []Content {
	return []Content{{Role: "user", Parts: parts}}
}
