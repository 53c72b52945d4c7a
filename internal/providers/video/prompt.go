package video

import (
	"strings"

	"studio/internal/domain"
)

// SafetyPreamble opens every video prompt. Long free-form prompts trip the
// backend safety filter far more often, so the user part is capped.
const SafetyPreamble = "Cinematic product video, professional studio lighting, 4k resolution, slow motion, commercial advertisement style. "

// MaxInstructionRunes caps the user-supplied part of the prompt.
const MaxInstructionRunes = 80

// BackendAspect maps a studio aspect ratio onto the two the video backend
// accepts. Square becomes landscape and 4:5 becomes portrait.
func BackendAspect(ar domain.AspectRatio) string {
	switch ar {
	case domain.AspectPortrait, domain.AspectFourFive:
		return string(domain.AspectPortrait)
	default:
		return string(domain.AspectLandscape)
	}
}

// ComposePrompt prefixes the preamble to at most MaxInstructionRunes of the
// instruction.
func ComposePrompt(instruction string) string {
	instruction = strings.TrimSpace(instruction)
	if r := []rune(instruction); len(r) > MaxInstructionRunes {
		instruction = string(r[:MaxInstructionRunes])
	}
	return SafetyPreamble + instruction
}
