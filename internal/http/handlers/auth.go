package handlers

import (
	"net/http"
	"time"

	"studio/internal/account"
	"studio/internal/domain"
)

type credentialsRequest struct {
	Email string `json:"email"`
}

type userDTO struct {
	ID      string          `json:"id"`
	Email   string          `json:"email"`
	Role    domain.UserRole `json:"role"`
	Credits int             `json:"credits"`
}

type sessionDTO struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      userDTO   `json:"user"`
}

func toUserDTO(u domain.User) userDTO {
	return userDTO{ID: u.ID, Email: u.Email, Role: u.Role, Credits: u.Credits}
}

func toSessionDTO(s account.Session) sessionDTO {
	return sessionDTO{Token: s.Token, ExpiresAt: s.ExpiresAt, User: toUserDTO(s.User)}
}

// signIn answers with a fresh bearer token for user.
func (a *App) signIn(w http.ResponseWriter, r *http.Request, code int, user domain.User) {
	sess, err := a.Accounts.StartSession(r.Context(), user)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, code, toSessionDTO(sess))
}

func (a *App) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.Accounts.Register(r.Context(), req.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.signIn(w, r, http.StatusCreated, user)
}

func (a *App) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, err := a.Accounts.Login(r.Context(), req.Email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.signIn(w, r, http.StatusOK, user)
}

func (a *App) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.Accounts.Logout(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, toUserDTO(user))
}

// PaymentLink returns the deep link for buying more credits.
func (a *App) PaymentLink(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	cfg, err := a.Accounts.AdminConfig(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"url":              a.Accounts.PaymentLink(cfg, user),
		"price_per_credit": cfg.PricePerCredit,
	})
}
