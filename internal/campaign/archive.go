package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studio/internal/domain"
	"studio/internal/storage"
	"studio/pkg/zip"
)

// CaptionFile is the name the social caption is bundled under.
const CaptionFile = "instagram_caption.txt"

// Archive bundles a project's assets, and its caption when present, into a
// zip file.
func (c *Controller) Archive(userID, projectID string) ([]byte, error) {
	files, p, err := c.files(userID, projectID)
	if err != nil {
		return nil, err
	}
	entries := make([]zip.Entry, 0, len(files))
	for _, f := range files {
		entries = append(entries, zip.Entry{Name: f.Name, Data: f.Data, Modified: p.CreatedAt})
	}
	return zip.Archive(entries)
}

// Export writes a project's files below a directory named after it and
// returns the stored keys.
func (c *Controller) Export(ctx context.Context, userID, projectID string) ([]string, error) {
	if c.exporter == nil {
		return nil, errors.New("campaign: exporter is not configured")
	}
	files, _, err := c.files(userID, projectID)
	if err != nil {
		return nil, err
	}
	keys, err := c.exporter.WriteAll(ctx, projectID, files)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", projectID, err)
	}
	c.logger.Info().Str("project_id", projectID).Int("files", len(keys)).Msg("campaign: project exported")
	return keys, nil
}

func (c *Controller) files(userID, projectID string) ([]storage.File, domain.Project, error) {
	p, err := c.Project(userID, projectID)
	if err != nil {
		return nil, domain.Project{}, err
	}
	files := make([]storage.File, 0, len(p.Assets)+1)
	for _, a := range p.Assets {
		data, mime, err := c.media.Open(a.URL)
		if err != nil {
			return nil, domain.Project{}, fmt.Errorf("open asset %s: %w", a.ID, err)
		}
		files = append(files, storage.File{Name: a.ID + Extension(mime), Data: data})
	}
	if strings.TrimSpace(p.SocialPost) != "" {
		files = append(files, storage.File{Name: CaptionFile, Data: []byte(p.SocialPost)})
	}
	return files, p, nil
}

// Extension maps the media types the pipeline produces to file extensions.
func Extension(mime string) string {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
