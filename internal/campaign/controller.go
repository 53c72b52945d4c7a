// Package campaign sequences research, image, voice-over and video generation
// into Projects and keeps the five most recent ones of each user in memory.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/media"
	"studio/internal/providers/copywriter"
	"studio/internal/providers/image"
	"studio/internal/providers/video"
	"studio/internal/storage"
)

const (
	MaxProjects = 5
	Variants    = 3
)

// Credits charges one generation to a user.
type Credits interface {
	DeductCredit(ctx context.Context, id string) (domain.User, error)
}

type ImageGenerator interface {
	Catalogue(ctx context.Context, src image.Source, description, style string) (*image.Asset, error)
	Edit(ctx context.Context, src image.Source, instruction string) (*image.Asset, error)
}

type VideoGenerator interface {
	Generate(ctx context.Context, req video.Request) (*video.Asset, error)
}

// Narrator returns WAV bytes or nil.
type Narrator interface {
	VoiceOver(ctx context.Context, text string) []byte
}

type Copywriter interface {
	Research(ctx context.Context, productURL string) string
	SocialPost(ctx context.Context, description, style, projectName string) string
}

// Exporter writes files below a directory.
type Exporter interface {
	WriteAll(ctx context.Context, dir string, files []storage.File) ([]string, error)
}

type Options struct {
	Credits    Credits
	Media      *media.Registry
	Images     ImageGenerator
	Videos     VideoGenerator
	Narrator   Narrator
	Copywriter Copywriter
	Exporter   Exporter
	Logger     *infra.Logger
	Now        func() time.Time
}

// Upload is a user-supplied file.
type Upload struct {
	Data []byte
	MIME string
}

// Request is everything a campaign run starts from.
type Request struct {
	UserID       string
	Name         string
	Photos       []Upload
	Logo         *Upload
	URL          string
	Description  string
	Style        string
	AspectRatio  domain.AspectRatio
	MusicTrackID string
	MusicVolume  float64
	VoiceVolume  float64
	// Locale selects the default-name date layout ("es" or "en").
	Locale string
}

type project struct {
	domain.Project
	handles []*media.Handle
}

type Controller struct {
	credits    Credits
	media      *media.Registry
	images     ImageGenerator
	videos     VideoGenerator
	narrator   Narrator
	copywriter Copywriter
	exporter   Exporter
	logger     *infra.Logger
	now        func() time.Time
	ids        *domain.IDGenerator

	// pipeline admits one generation or edit at a time.
	pipeline sync.Mutex

	mu       sync.Mutex
	projects map[string][]*project
	status   map[string]Status
}

func NewController(opts Options) (*Controller, error) {
	switch {
	case opts.Credits == nil:
		return nil, errors.New("campaign: credits are required")
	case opts.Media == nil:
		return nil, errors.New("campaign: media registry is required")
	case opts.Images == nil:
		return nil, errors.New("campaign: image generator is required")
	case opts.Videos == nil:
		return nil, errors.New("campaign: video generator is required")
	}
	c := &Controller{
		credits:    opts.Credits,
		media:      opts.Media,
		images:     opts.Images,
		videos:     opts.Videos,
		narrator:   opts.Narrator,
		copywriter: opts.Copywriter,
		exporter:   opts.Exporter,
		logger:     opts.Logger,
		now:        opts.Now,
		projects:   make(map[string][]*project),
		status:     make(map[string]Status),
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		discard := zerolog.New(io.Discard)
		c.logger = &discard
	}
	c.ids = domain.NewIDGenerator(c.now)
	return c, nil
}

// Generate runs the full pipeline. The credit is charged before any platform
// call and is not refunded when a later stage fails. On failure no project is
// created and every reference made by the run is released.
func (c *Controller) Generate(ctx context.Context, req Request) (domain.Project, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return domain.Project{}, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}
	if len(req.Photos) == 0 || len(req.Photos[0].Data) == 0 {
		return domain.Project{}, fmt.Errorf("%w: at least one product photo is required", domain.ErrInvalidInput)
	}
	if !c.pipeline.TryLock() {
		return domain.Project{}, domain.ErrPipelineBusy
	}
	defer c.pipeline.Unlock()

	if _, err := c.credits.DeductCredit(ctx, req.UserID); err != nil {
		return domain.Project{}, err
	}

	var run []*media.Handle
	p, err := c.run(ctx, req, &run)
	if err != nil {
		media.ReleaseAll(run)
		c.setStatus(req.UserID, StateError, "", err)
		c.logger.Error().Err(err).Str("user_id", req.UserID).Msg("campaign: generation failed")
		return domain.Project{}, err
	}
	c.insert(req.UserID, &project{Project: p, handles: run})
	c.setStatus(req.UserID, StateComplete, "", nil)
	c.logger.Info().Str("project_id", p.ID).Int("assets", len(p.Assets)).Msg("campaign: project created")
	return cloneProject(p), nil
}

func (c *Controller) run(ctx context.Context, req Request, run *[]*media.Handle) (domain.Project, error) {
	hold := func(h *media.Handle) string {
		*run = append(*run, h)
		return h.Ref()
	}

	input := domain.ProjectInput{
		URL:          strings.TrimSpace(req.URL),
		Description:  strings.TrimSpace(req.Description),
		Style:        strings.TrimSpace(req.Style),
		AspectRatio:  domain.ParseAspectRatio(string(req.AspectRatio)),
		MusicTrackID: req.MusicTrackID,
		MusicVolume:  req.MusicVolume,
		VoiceVolume:  req.VoiceVolume,
	}
	for _, ph := range req.Photos {
		input.Photos = append(input.Photos, hold(c.media.Create(ph.Data, uploadMIME(ph.MIME))))
	}
	if req.Logo != nil && len(req.Logo.Data) > 0 {
		input.Logo = hold(c.media.Create(req.Logo.Data, uploadMIME(req.Logo.MIME)))
	}

	if input.URL != "" && c.copywriter != nil {
		c.setStatus(req.UserID, StateResearching, "Analizando URL del producto...", nil)
		input.Description = AppendResearch(input.Description, c.copywriter.Research(ctx, input.URL))
	}

	c.setStatus(req.UserID, StateGeneratingImages, "Creando imágenes de catálogo premium (1/3)...", nil)
	src := image.Source{Data: req.Photos[0].Data, MIME: uploadMIME(req.Photos[0].MIME)}
	var assets []domain.GeneratedAsset
	var firstImage *media.Handle
	var firstData []byte
	var firstMIME string
	for i := 0; i < Variants; i++ {
		if err := ctx.Err(); err != nil {
			return domain.Project{}, err
		}
		c.setStatus(req.UserID, StateGeneratingImages, fmt.Sprintf("Creando imagen premium (%d/%d)...", i+1, Variants), nil)
		img, err := c.images.Catalogue(ctx, src, input.Description, input.Style)
		if err != nil {
			return domain.Project{}, err
		}
		h := c.media.Create(img.Data, img.MIME)
		if i == 0 {
			firstImage, firstData, firstMIME = h, img.Data, img.MIME
		}
		assets = append(assets, domain.GeneratedAsset{
			ID:   fmt.Sprintf("%s-%d", c.ids.Next("img"), i),
			Kind: domain.AssetKindImage,
			URL:  hold(h),
		})
	}

	c.setStatus(req.UserID, StateGeneratingVideo, "Generando guion y voz en off...", nil)
	if c.narrator != nil {
		if wav := c.narrator.VoiceOver(ctx, input.Description); len(wav) > 0 {
			assets = append(assets, domain.GeneratedAsset{
				ID:      c.ids.Next("aud"),
				Kind:    domain.AssetKindAudio,
				URL:     hold(c.media.Create(wav, "audio/wav")),
				SubType: domain.AssetSubTypeVoiceOver,
			})
		}
	}

	c.setStatus(req.UserID, StateGeneratingVideo, "Renderizando video comercial con Veo (esto puede tardar unos minutos)...", nil)
	vid, err := c.videos.Generate(ctx, video.Request{
		Image:       firstData,
		ImageMIME:   firstMIME,
		Instruction: input.Description,
		AspectRatio: input.AspectRatio,
	})
	if err != nil {
		return domain.Project{}, err
	}
	thumb := firstImage.Retain()
	assets = append(assets, domain.GeneratedAsset{
		ID:        c.ids.Next("vid"),
		Kind:      domain.AssetKindVideo,
		URL:       hold(c.media.Create(vid.Data, vid.MIME)),
		Thumbnail: hold(thumb),
	})

	name := strings.TrimSpace(req.Name)
	created := c.now()
	if name == "" {
		name = DefaultName(created, req.Locale)
	}
	return domain.Project{
		ID:        c.ids.Next("proj"),
		Name:      name,
		CreatedAt: created,
		Input:     input,
		Assets:    assets,
	}, nil
}

// EditAsset derives a new version of one asset and prepends it to the
// project. Images are edited in place of the chosen one; videos are
// regenerated from the project's first image. On failure the project is left
// untouched.
func (c *Controller) EditAsset(ctx context.Context, userID, projectID, assetID, instruction string) (domain.Project, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return domain.Project{}, fmt.Errorf("%w: edit instruction is required", domain.ErrInvalidInput)
	}
	if !c.pipeline.TryLock() {
		return domain.Project{}, domain.ErrPipelineBusy
	}
	defer c.pipeline.Unlock()

	snap, err := c.Project(userID, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	target, ok := snap.FindAsset(assetID)
	if !ok {
		return domain.Project{}, fmt.Errorf("asset %s: %w", assetID, domain.ErrNotFound)
	}

	var asset domain.GeneratedAsset
	var owned []*media.Handle
	switch target.Kind {
	case domain.AssetKindImage:
		c.setStatus(userID, StateGeneratingImages, "Editando imagen con IA...", nil)
		data, mime, err := c.media.Open(target.URL)
		if err != nil {
			return domain.Project{}, c.fail(userID, fmt.Errorf("open image %s: %w", target.ID, err))
		}
		img, err := c.images.Edit(ctx, image.Source{Data: data, MIME: mime}, instruction)
		if err != nil {
			return domain.Project{}, c.fail(userID, err)
		}
		h := c.media.Create(img.Data, img.MIME)
		owned = append(owned, h)
		asset = domain.GeneratedAsset{ID: c.ids.Next("img-edit"), Kind: domain.AssetKindImage, URL: h.Ref()}
	case domain.AssetKindVideo:
		c.setStatus(userID, StateGeneratingVideo, "Regenerando video con nueva instrucción (esto tarda unos minutos)...", nil)
		base, ok := snap.FirstOfKind(domain.AssetKindImage)
		if !ok {
			return domain.Project{}, c.fail(userID, fmt.Errorf("%w: project has no base image to regenerate from", domain.ErrInvalidInput))
		}
		data, mime, err := c.media.Open(base.URL)
		if err != nil {
			return domain.Project{}, c.fail(userID, fmt.Errorf("open image %s: %w", base.ID, err))
		}
		vid, err := c.videos.Generate(ctx, video.Request{
			Image:       data,
			ImageMIME:   mime,
			Instruction: instruction,
			AspectRatio: snap.Input.AspectRatio,
		})
		if err != nil {
			return domain.Project{}, c.fail(userID, err)
		}
		h := c.media.Create(vid.Data, vid.MIME)
		owned = append(owned, h)
		asset = domain.GeneratedAsset{ID: c.ids.Next("vid-edit"), Kind: domain.AssetKindVideo, URL: h.Ref()}
		if thumb := c.retain(userID, projectID, base.URL); thumb != nil {
			owned = append(owned, thumb)
			asset.Thumbnail = thumb.Ref()
		}
	default:
		return domain.Project{}, fmt.Errorf("%w: %s assets cannot be edited", domain.ErrUnsupportedEdit, target.Kind)
	}

	updated, err := c.update(userID, projectID, func(p *project) {
		p.Assets = append([]domain.GeneratedAsset{asset}, p.Assets...)
		p.handles = append(p.handles, owned...)
	})
	if err != nil {
		media.ReleaseAll(owned)
		return domain.Project{}, c.fail(userID, err)
	}
	c.setStatus(userID, StateComplete, "", nil)
	c.logger.Info().Str("project_id", projectID).Str("asset_id", asset.ID).Msg("campaign: asset edited")
	return updated, nil
}

// GenerateSocialCopy stores an Instagram caption on the project. Caption
// failures come back as user-visible text, not errors.
func (c *Controller) GenerateSocialCopy(ctx context.Context, userID, projectID string) (domain.Project, error) {
	if c.copywriter == nil {
		return domain.Project{}, fmt.Errorf("%w: copywriter is not configured", domain.ErrGeneration)
	}
	snap, err := c.Project(userID, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	text := c.copywriter.SocialPost(ctx, snap.Input.Description, snap.Input.Style, snap.Name)
	return c.update(userID, projectID, func(p *project) { p.SocialPost = text })
}

// Research summarizes a product page. The result is empty when research is
// unavailable.
func (c *Controller) Research(ctx context.Context, productURL string) string {
	productURL = strings.TrimSpace(productURL)
	if productURL == "" || c.copywriter == nil {
		return ""
	}
	return c.copywriter.Research(ctx, productURL)
}

// AppendResearch appends a research summary to a description, separated by a
// blank line. Empty and not-found summaries are ignored.
func AppendResearch(description, info string) string {
	info = strings.TrimSpace(info)
	if info == "" || info == copywriter.NoResearchFound {
		return description
	}
	if description == "" {
		return info
	}
	return description + "\n\n" + info
}

// DefaultName labels an unnamed campaign with its creation date.
func DefaultName(t time.Time, locale string) string {
	if strings.HasPrefix(strings.ToLower(locale), "en") {
		return fmt.Sprintf("Campaña %d/%d/%d", int(t.Month()), t.Day(), t.Year())
	}
	return fmt.Sprintf("Campaña %d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

// Projects lists a user's projects most recent first.
func (c *Controller) Projects(userID string) []domain.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.projects[userID]
	out := make([]domain.Project, 0, len(list))
	for _, p := range list {
		out = append(out, cloneProject(p.Project))
	}
	return out
}

// Project returns one of the user's projects. Projects of other users are
// reported as not found.
func (c *Controller) Project(userID, id string) (domain.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.find(userID, id)
	if p == nil {
		return domain.Project{}, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	return cloneProject(p.Project), nil
}

// OwnsMedia reports whether ref belongs to one of the user's projects.
func (c *Controller) OwnsMedia(userID, ref string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.projects[userID] {
		for _, h := range p.handles {
			if h.Ref() == ref {
				return true
			}
		}
	}
	return false
}

// insert adds p at the head of the user's list and evicts beyond MaxProjects,
// oldest insertion first.
func (c *Controller) insert(userID string, p *project) {
	c.mu.Lock()
	list := append([]*project{p}, c.projects[userID]...)
	var evicted []*project
	if len(list) > MaxProjects {
		evicted = append(evicted, list[MaxProjects:]...)
		list = list[:MaxProjects]
	}
	c.projects[userID] = list
	c.mu.Unlock()
	for _, e := range evicted {
		media.ReleaseAll(e.handles)
		c.logger.Debug().Str("user_id", userID).Str("project_id", e.ID).Msg("campaign: project evicted")
	}
}

func (c *Controller) update(userID, id string, fn func(*project)) (domain.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.find(userID, id)
	if p == nil {
		return domain.Project{}, fmt.Errorf("project %s: %w", id, domain.ErrNotFound)
	}
	fn(p)
	return cloneProject(p.Project), nil
}

func (c *Controller) retain(userID, projectID, ref string) *media.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.find(userID, projectID)
	if p == nil {
		return nil
	}
	for _, h := range p.handles {
		if h.Ref() == ref {
			return h.Retain()
		}
	}
	return nil
}

// find must be called with mu held.
func (c *Controller) find(userID, id string) *project {
	for _, p := range c.projects[userID] {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (c *Controller) fail(userID string, err error) error {
	c.setStatus(userID, StateError, "", err)
	return err
}

func cloneProject(p domain.Project) domain.Project {
	p.Assets = append([]domain.GeneratedAsset(nil), p.Assets...)
	p.Input.Photos = append([]string(nil), p.Input.Photos...)
	return p
}

func uploadMIME(mime string) string {
	if mime = strings.TrimSpace(mime); mime == "" {
		return "image/jpeg"
	}
	return mime
}
