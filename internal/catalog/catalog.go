// Package catalog holds the static presets offered when composing a campaign:
// visual styles, framing options and the background music library.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"studio/internal/domain"
)

const DefaultStyle = "Estudio Minimalista"

type AspectOption struct {
	Value domain.AspectRatio `yaml:"value" json:"value"`
	Label string             `yaml:"label" json:"label"`
}

type MusicTrack struct {
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	URL   string `yaml:"url" json:"url"`
	Genre string `yaml:"genre" json:"genre"`
}

type Catalog struct {
	Styles       []string       `yaml:"styles" json:"styles"`
	AspectRatios []AspectOption `yaml:"aspect_ratios" json:"aspect_ratios"`
	Music        []MusicTrack   `yaml:"music" json:"music"`
}

// Default returns the built-in presets.
func Default() Catalog {
	return Catalog{
		Styles: []string{
			DefaultStyle,
			"Lujo y Elegancia",
			"Urbano / Street",
			"Naturaleza / Orgánico",
			"Neon / Cyberpunk",
		},
		AspectRatios: []AspectOption{
			{Value: domain.AspectSquare, Label: "1:1 Cuadrado"},
			{Value: domain.AspectPortrait, Label: "9:16 Vertical (Stories)"},
			{Value: domain.AspectLandscape, Label: "16:9 Horizontal"},
		},
		Music: []MusicTrack{
			{ID: "m1", Name: "Corporativo Animado", URL: "https://cdn.pixabay.com/audio/2024/09/20/audio_51a37c1660.mp3", Genre: "Negocios"},
			{ID: "m2", Name: "Ambiente Chill", URL: "https://cdn.pixabay.com/audio/2022/05/27/audio_1808fbf07a.mp3", Genre: "Relax"},
			{ID: "m3", Name: "Deporte Dinámico", URL: "https://cdn.pixabay.com/audio/2024/08/12/audio_494539665f.mp3", Genre: "Acción"},
			{ID: "m4", Name: "Lounge Lujoso", URL: "https://cdn.pixabay.com/audio/2022/03/15/audio_735c02931a.mp3", Genre: "Moda"},
			{ID: "m5", Name: "Pop Upbeat", URL: "https://cdn.pixabay.com/audio/2023/10/24/audio_3d3e818817.mp3", Genre: "Comercial"},
		},
	}
}

// Load reads presets from a YAML file. An empty path yields the defaults, and
// sections missing from the file keep their default values.
func Load(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes YAML presets over the defaults.
func Parse(raw []byte) (Catalog, error) {
	var file Catalog
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Catalog{}, fmt.Errorf("catalog: decode: %w", err)
	}
	out := Default()
	if len(file.Styles) > 0 {
		out.Styles = normalizeStyles(file.Styles)
	}
	if len(file.AspectRatios) > 0 {
		opts, err := normalizeAspects(file.AspectRatios)
		if err != nil {
			return Catalog{}, err
		}
		out.AspectRatios = opts
	}
	if len(file.Music) > 0 {
		tracks, err := normalizeMusic(file.Music)
		if err != nil {
			return Catalog{}, err
		}
		out.Music = tracks
	}
	return out, nil
}

// Track looks up a music track by id.
func (c Catalog) Track(id string) (MusicTrack, bool) {
	for _, t := range c.Music {
		if t.ID == id {
			return t, true
		}
	}
	return MusicTrack{}, false
}

// HasStyle reports whether style is one of the presets, ignoring case.
func (c Catalog) HasStyle(style string) bool {
	for _, s := range c.Styles {
		if strings.EqualFold(s, strings.TrimSpace(style)) {
			return true
		}
	}
	return false
}

func normalizeStyles(in []string) []string {
	title := cases.Title(language.Spanish)
	out := make([]string, 0, len(in))
	seen := map[string]bool{}
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		// Lowercase-only entries are treated as shorthand and title cased.
		if s == strings.ToLower(s) {
			s = title.String(s)
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func normalizeAspects(in []AspectOption) ([]AspectOption, error) {
	out := make([]AspectOption, 0, len(in))
	for _, o := range in {
		v := domain.AspectRatio(strings.TrimSpace(string(o.Value)))
		if domain.ParseAspectRatio(string(v)) != v {
			return nil, fmt.Errorf("catalog: unknown aspect ratio %q: %w", o.Value, domain.ErrInvalidInput)
		}
		label := strings.TrimSpace(o.Label)
		if label == "" {
			label = string(v)
		}
		out = append(out, AspectOption{Value: v, Label: label})
	}
	return out, nil
}

func normalizeMusic(in []MusicTrack) ([]MusicTrack, error) {
	out := make([]MusicTrack, 0, len(in))
	seen := map[string]bool{}
	for _, t := range in {
		t.ID = strings.TrimSpace(t.ID)
		t.URL = strings.TrimSpace(t.URL)
		if t.ID == "" || t.URL == "" {
			return nil, fmt.Errorf("catalog: music track needs id and url: %w", domain.ErrInvalidInput)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("catalog: duplicate music track %q: %w", t.ID, domain.ErrInvalidInput)
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out, nil
}
