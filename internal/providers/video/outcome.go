package video

import (
	"fmt"

	"studio/internal/domain"
	"studio/internal/providers/genai"
)

// DefaultFilterReason is reported when the platform flags content without
// naming a reason.
const DefaultFilterReason = "Contenido marcado como inseguro por políticas de IA."

// Outcome is the classified terminal state of a finished operation. It is one
// of Ready, Failed, Filtered, Malformed or Empty.
type Outcome interface {
	outcome()
}

// Ready holds the location of the first generated video.
type Ready struct{ URI string }

// Failed carries an explicit platform error.
type Failed struct{ Message string }

// Filtered is a content-safety rejection.
type Filtered struct{ Reason string }

// Malformed means the result container or video location is missing.
type Malformed struct{ Detail string }

// Empty means the platform returned no videos and no filter reasons, which in
// practice is a silent safety rejection.
type Empty struct{}

func (Ready) outcome()     {}
func (Failed) outcome()    {}
func (Filtered) outcome()  {}
func (Malformed) outcome() {}
func (Empty) outcome()     {}

// Classify inspects a done operation. The checks run in a fixed order: explicit
// error, safety filter, missing container, empty result, then the first video.
func Classify(op *genai.Operation) Outcome {
	if op == nil {
		return Malformed{Detail: "operation missing"}
	}
	if op.Error != nil {
		msg := op.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("code %d", op.Error.Code)
		}
		return Failed{Message: msg}
	}
	var result *genai.GenerateVideoResponse
	if op.Response != nil {
		result = op.Response.GenerateVideoResponse
	}
	if result != nil && (result.RAIMediaFilteredCount > 0 || len(result.RAIMediaFilteredReasons) > 0) {
		reason := DefaultFilterReason
		if len(result.RAIMediaFilteredReasons) > 0 && result.RAIMediaFilteredReasons[0] != "" {
			reason = result.RAIMediaFilteredReasons[0]
		}
		return Filtered{Reason: reason}
	}
	if result == nil {
		return Malformed{Detail: "response missing"}
	}
	if len(result.GeneratedSamples) == 0 {
		return Empty{}
	}
	first := result.GeneratedSamples[0]
	if first.Video == nil || first.Video.URI == "" {
		return Malformed{Detail: "video uri missing"}
	}
	return Ready{URI: first.Video.URI}
}

// resolve converts an outcome into the video location or a typed error.
func resolve(o Outcome) (string, error) {
	switch v := o.(type) {
	case Ready:
		return v.URI, nil
	case Failed:
		return "", &domain.PlatformError{Message: v.Message}
	case Filtered:
		return "", &domain.SafetyFilterError{Reason: v.Reason}
	case Malformed:
		return "", fmt.Errorf("%w: %s", domain.ErrProtocol, v.Detail)
	case Empty:
		return "", fmt.Errorf("%w: no videos returned, likely filtered", domain.ErrEmptyResult)
	default:
		return "", fmt.Errorf("%w: unknown outcome %T", domain.ErrProtocol, o)
	}
}
