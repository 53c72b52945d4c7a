package domain

import (
	"strings"
	"time"
)

// AspectRatio enumerates the framing options offered to the user.
type AspectRatio string

const (
	AspectSquare    AspectRatio = "1:1"
	AspectPortrait  AspectRatio = "9:16"
	AspectLandscape AspectRatio = "16:9"
	AspectFourFive  AspectRatio = "4:5"
)

// ParseAspectRatio normalizes free-form input, defaulting to square.
func ParseAspectRatio(v string) AspectRatio {
	switch AspectRatio(strings.TrimSpace(v)) {
	case AspectPortrait:
		return AspectPortrait
	case AspectLandscape:
		return AspectLandscape
	case AspectFourFive:
		return AspectFourFive
	default:
		return AspectSquare
	}
}

// ProjectInput records the parameters a campaign was generated from. Photo and
// logo entries are media references.
type ProjectInput struct {
	Photos       []string    `json:"photos"`
	Logo         string      `json:"logo,omitempty"`
	URL          string      `json:"url,omitempty"`
	Description  string      `json:"description"`
	Style        string      `json:"style"`
	AspectRatio  AspectRatio `json:"aspect_ratio"`
	MusicTrackID string      `json:"music_track_id,omitempty"`
	MusicVolume  float64     `json:"music_volume"`
	VoiceVolume  float64     `json:"voice_volume"`
}

// Project is a completed campaign. Assets are ordered most-recent-first.
type Project struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	CreatedAt  time.Time        `json:"date"`
	Input      ProjectInput     `json:"input"`
	Assets     []GeneratedAsset `json:"assets"`
	SocialPost string           `json:"social_post,omitempty"`
}

// FindAsset returns the asset with the given id.
func (p *Project) FindAsset(id string) (GeneratedAsset, bool) {
	for _, a := range p.Assets {
		if a.ID == id {
			return a, true
		}
	}
	return GeneratedAsset{}, false
}

// FirstOfKind returns the most recent asset of the given kind.
func (p *Project) FirstOfKind(kind AssetKind) (GeneratedAsset, bool) {
	for _, a := range p.Assets {
		if a.Kind == kind {
			return a, true
		}
	}
	return GeneratedAsset{}, false
}

// CountKind reports how many assets of a kind the project holds.
func (p *Project) CountKind(kind AssetKind) int {
	n := 0
	for _, a := range p.Assets {
		if a.Kind == kind {
			n++
		}
	}
	return n
}
