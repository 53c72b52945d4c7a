package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"studio/internal/domain"
)

// RequireUser admits requests only while a user is signed in.
func (a *App) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := a.currentUser(w, r); !ok {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin admits only an admin current user.
func (a *App) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.currentUser(w, r)
		if !ok {
			return
		}
		if !user.IsAdmin() {
			a.error(w, r, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *App) AdminUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.Accounts.Users(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, toUserDTO(u))
	}
	a.json(w, http.StatusOK, map[string]any{"users": out})
}

type addCreditsRequest struct {
	Amount int `json:"amount"`
}

func (a *App) AdminAddCredits(w http.ResponseWriter, r *http.Request) {
	var req addCreditsRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.Accounts.AddCredits(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toUserDTO(user))
}

func (a *App) AdminGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.Accounts.AdminConfig(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, cfg)
}

func (a *App) AdminPutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.AdminConfig
	if !a.decode(w, r, &cfg) {
		return
	}
	if err := a.Accounts.SaveAdminConfig(r.Context(), cfg); err != nil {
		a.fail(w, r, err)
		return
	}
	saved, err := a.Accounts.AdminConfig(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, saved)
}
