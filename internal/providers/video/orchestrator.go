// Package video drives Veo jobs from submission to downloaded bytes.
package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers/genai"
)

const (
	DefaultInterval    = 10 * time.Second
	DefaultMaxAttempts = 60
	Resolution         = "720p"
)

// Platform is the subset of the Gemini client the orchestrator needs.
type Platform interface {
	SubmitVideo(ctx context.Context, model string, req genai.VideoRequest) (*genai.Operation, error)
	GetOperation(ctx context.Context, name string) (*genai.Operation, error)
	Download(ctx context.Context, uri string) ([]byte, string, error)
}

// Options configures an Orchestrator.
type Options struct {
	Client      Platform
	Model       string
	Interval    time.Duration
	MaxAttempts int
	Logger      *infra.Logger
	// Sleep waits between polls. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Request describes one video job.
type Request struct {
	Image       []byte
	ImageMIME   string
	Instruction string
	AspectRatio domain.AspectRatio
}

// Asset is a downloaded video.
type Asset struct {
	Data []byte
	MIME string
	URI  string
}

// Orchestrator submits, polls, classifies and downloads.
type Orchestrator struct {
	client      Platform
	model       string
	interval    time.Duration
	maxAttempts int
	logger      *infra.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Client == nil {
		return nil, errors.New("video: client is required")
	}
	o := &Orchestrator{
		client:      opts.Client,
		model:       strings.TrimSpace(opts.Model),
		interval:    opts.Interval,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
		sleep:       opts.Sleep,
	}
	if o.model == "" {
		o.model = "veo-3.1-fast-generate-preview"
	}
	if o.interval <= 0 {
		o.interval = DefaultInterval
	}
	if o.maxAttempts <= 0 {
		o.maxAttempts = DefaultMaxAttempts
	}
	if o.logger == nil {
		discard := zerolog.New(io.Discard)
		o.logger = &discard
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	return o, nil
}

// Generate runs a job to completion. The poll loop only ends on completion,
// the attempt ceiling, a vanished operation or ctx cancellation.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Asset, error) {
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: source image is empty", domain.ErrInvalidInput)
	}
	aspect := BackendAspect(req.AspectRatio)
	op, err := o.client.SubmitVideo(ctx, o.model, genai.VideoRequest{
		Prompt:      ComposePrompt(req.Instruction),
		Image:       req.Image,
		ImageMIME:   req.ImageMIME,
		AspectRatio: aspect,
		Resolution:  Resolution,
	})
	if err != nil {
		return nil, fmt.Errorf("submit video: %w", err)
	}

	log := o.logger.With().Str("model", o.model).Str("operation", op.Name).Logger()
	log.Info().Str("aspect_ratio", aspect).Msg("video: job submitted")

	op, err = o.await(ctx, op, &log)
	if err != nil {
		return nil, err
	}

	uri, err := resolve(Classify(op))
	if err != nil {
		log.Warn().Err(err).Msg("video: job finished without a video")
		return nil, err
	}

	data, mime, err := o.client.Download(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("fetch video: %w", err)
	}
	if mime == "" || !strings.HasPrefix(mime, "video/") {
		mime = "video/mp4"
	}
	log.Info().Int("bytes", len(data)).Msg("video: downloaded")
	return &Asset{Data: data, MIME: mime, URI: uri}, nil
}

func (o *Orchestrator) await(ctx context.Context, op *genai.Operation, log *zerolog.Logger) (*genai.Operation, error) {
	name := op.Name
	attempts := 0
	for !op.Done {
		attempts++
		if attempts > o.maxAttempts {
			return nil, fmt.Errorf("%w: video not ready after %s", domain.ErrTimeout, time.Duration(o.maxAttempts)*o.interval)
		}
		if err := o.sleep(ctx, o.interval); err != nil {
			return nil, err
		}
		next, err := o.client.GetOperation(ctx, name)
		if err != nil {
			if genai.IsNotFound(err) {
				return nil, fmt.Errorf("%w: %s: %v", domain.ErrOperationNotFound, name, err)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn().Err(err).Int("attempt", attempts).Msg("video: poll failed, retrying")
			continue
		}
		if next == nil {
			continue
		}
		op = next
		log.Debug().Int("attempt", attempts).Bool("done", op.Done).Msg("video: polled")
	}
	return op, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
