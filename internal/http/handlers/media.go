package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
)

// ServeMedia serves registry content owned by the caller. Range requests are
// honored so video can be scrubbed.
func (a *App) ServeMedia(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	if !a.Campaigns.OwnsMedia(userID(r), ref) {
		a.fail(w, r, fmt.Errorf("media %s: %w", ref, domain.ErrNotFound))
		return
	}
	data, mime, err := a.Media.Open(ref)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if mime != "" {
		w.Header().Set("Content-Type", mime)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
}

func (a *App) CatalogPresets(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.Catalog)
}
