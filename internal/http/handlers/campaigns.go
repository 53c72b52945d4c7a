package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"studio/internal/campaign"
	"studio/internal/catalog"
	"studio/internal/domain"
	"studio/internal/middleware"
)

const (
	maxUploadBytes  = 64 << 20
	maxMultipartMem = 32 << 20
	maxPhotos       = 10
	defaultMusicVol = 0.5
	defaultVoiceVol = 0.8
)

type researchRequest struct {
	URL string `json:"url"`
}

func (a *App) Research(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if !a.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		a.error(w, r, http.StatusBadRequest, "bad_request", "url required")
		return
	}
	a.json(w, http.StatusOK, map[string]string{"summary": a.Campaigns.Research(r.Context(), req.URL)})
}

// CreateCampaign runs the pipeline from a multipart form: "photos" (one or
// more files), optional "logo", and text fields for the remaining input.
func (a *App) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMultipartMem); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, err := a.campaignRequest(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	req.UserID = user.ID
	req.Locale = middleware.LocaleFromContext(r.Context())

	project, err := a.Campaigns.Generate(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, project)
}

func (a *App) campaignRequest(r *http.Request) (campaign.Request, error) {
	form := r.MultipartForm
	photos := form.File["photos"]
	if len(photos) == 0 {
		return campaign.Request{}, fmt.Errorf("%w: at least one product photo is required", domain.ErrInvalidInput)
	}
	if len(photos) > maxPhotos {
		return campaign.Request{}, fmt.Errorf("%w: at most %d photos", domain.ErrInvalidInput, maxPhotos)
	}
	req := campaign.Request{
		Name:         r.FormValue("name"),
		URL:          r.FormValue("url"),
		Description:  r.FormValue("description"),
		Style:        strings.TrimSpace(r.FormValue("style")),
		AspectRatio:  domain.ParseAspectRatio(r.FormValue("aspect_ratio")),
		MusicTrackID: strings.TrimSpace(r.FormValue("music_track_id")),
	}
	if req.Style == "" {
		req.Style = catalog.DefaultStyle
	}
	if req.MusicTrackID != "" {
		if _, ok := a.Catalog.Track(req.MusicTrackID); !ok {
			return campaign.Request{}, fmt.Errorf("%w: unknown music track %q", domain.ErrInvalidInput, req.MusicTrackID)
		}
	}
	var err error
	if req.MusicVolume, err = volume(r.FormValue("music_volume"), defaultMusicVol); err != nil {
		return campaign.Request{}, err
	}
	if req.VoiceVolume, err = volume(r.FormValue("voice_volume"), defaultVoiceVol); err != nil {
		return campaign.Request{}, err
	}
	for _, fh := range photos {
		up, err := readUpload(fh)
		if err != nil {
			return campaign.Request{}, err
		}
		req.Photos = append(req.Photos, up)
	}
	if logos := form.File["logo"]; len(logos) > 0 {
		up, err := readUpload(logos[0])
		if err != nil {
			return campaign.Request{}, err
		}
		req.Logo = &up
	}
	return req, nil
}

func readUpload(fh *multipart.FileHeader) (campaign.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return campaign.Upload{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return campaign.Upload{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	mime := fh.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return campaign.Upload{}, fmt.Errorf("%w: %s is not an image", domain.ErrInvalidInput, fh.Filename)
	}
	return campaign.Upload{Data: data, MIME: mime}, nil
}

func volume(raw string, fallback float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, fmt.Errorf("%w: volume must be between 0 and 1", domain.ErrInvalidInput)
	}
	return v, nil
}

func (a *App) Status(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Campaigns.Status(userID(r)))
}

func (a *App) Projects(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"projects": a.Campaigns.Projects(userID(r))})
}

func (a *App) Project(w http.ResponseWriter, r *http.Request) {
	p, err := a.Campaigns.Project(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, p)
}

type editRequest struct {
	Instruction string `json:"instruction"`
}

func (a *App) EditAsset(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if !a.decode(w, r, &req) {
		return
	}
	p, err := a.Campaigns.EditAsset(r.Context(), userID(r), chi.URLParam(r, "id"), chi.URLParam(r, "asset_id"), req.Instruction)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, p)
}

func (a *App) SocialCopy(w http.ResponseWriter, r *http.Request) {
	p, err := a.Campaigns.GenerateSocialCopy(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"project_id": p.ID, "social_post": p.SocialPost})
}

func (a *App) SocialText(w http.ResponseWriter, r *http.Request) {
	p, err := a.Campaigns.Project(userID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(p.SocialPost) == "" {
		a.error(w, r, http.StatusNotFound, "not_found", "no social copy generated yet")
		return
	}
	attachment(w, campaign.CaptionFile, "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, p.SocialPost)
}

func (a *App) Archive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := a.Campaigns.Archive(userID(r), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	attachment(w, id+".zip", "application/zip")
	_, _ = w.Write(body)
}

func (a *App) Export(w http.ResponseWriter, r *http.Request) {
	keys, err := a.Campaigns.Export(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"files": keys})
}
