package genai

import (
	"context"
	"errors"
	"strings"

	"studio/internal/mediacodec"
)

// VideoRequest submits a Veo job.
type VideoRequest struct {
	Prompt      string
	Image       []byte
	ImageMIME   string
	AspectRatio string
	Resolution  string
}

type predictRequest struct {
	Instances  []videoInstance `json:"instances"`
	Parameters videoParameters `json:"parameters"`
}

type videoInstance struct {
	Prompt string      `json:"prompt"`
	Image  *videoImage `json:"image,omitempty"`
}

type videoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type videoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	SampleCount int    `json:"sampleCount"`
}

// Operation is a long-running job as reported by the platform. Fields are
// left optional; classification happens in the video package.
type Operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *OperationError    `json:"error,omitempty"`
	Response *OperationResponse `json:"response,omitempty"`
}

type OperationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type OperationResponse struct {
	GenerateVideoResponse *GenerateVideoResponse `json:"generateVideoResponse,omitempty"`
}

type GenerateVideoResponse struct {
	GeneratedSamples        []GeneratedSample `json:"generatedSamples"`
	RAIMediaFilteredCount   int               `json:"raiMediaFilteredCount,omitempty"`
	RAIMediaFilteredReasons []string          `json:"raiMediaFilteredReasons,omitempty"`
}

type GeneratedSample struct {
	Video *VideoRef `json:"video,omitempty"`
}

type VideoRef struct {
	URI string `json:"uri,omitempty"`
}

// SubmitVideo starts a predictLongRunning job and returns its operation.
func (c *Client) SubmitVideo(ctx context.Context, model string, req VideoRequest) (*Operation, error) {
	instance := videoInstance{Prompt: req.Prompt}
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		instance.Image = &videoImage{BytesBase64Encoded: mediacodec.EncodeBase64(req.Image), MimeType: mime}
	}
	payload := predictRequest{
		Instances: []videoInstance{instance},
		Parameters: videoParameters{
			AspectRatio: req.AspectRatio,
			Resolution:  req.Resolution,
			SampleCount: 1,
		},
	}

	var op Operation
	if err := c.post(ctx, modelPath(model, "predictLongRunning"), payload, &op); err != nil {
		return nil, err
	}
	if strings.TrimSpace(op.Name) == "" {
		return nil, errors.New("genai: operation name missing")
	}
	c.logger.Debug().Str("model", model).Str("operation", op.Name).Msg("genai: video submitted")
	return &op, nil
}

// GetOperation polls a long-running operation by name.
func (c *Client) GetOperation(ctx context.Context, name string) (*Operation, error) {
	var op Operation
	if err := c.get(ctx, "/"+strings.TrimLeft(name, "/"), &op); err != nil {
		return nil, err
	}
	return &op, nil
}
