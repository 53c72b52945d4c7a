package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"studio/internal/account"
	"studio/internal/campaign"
	"studio/internal/catalog"
	"studio/internal/domain"
	"studio/internal/media"
	"studio/internal/middleware"
)

// App carries the services behind the HTTP API.
type App struct {
	Logger    zerolog.Logger
	Accounts  *account.Service
	Campaigns *campaign.Controller
	Media     *media.Registry
	Catalog   catalog.Catalog
}

type errorBody struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	Hint        string `json:"hint,omitempty"`
	PaymentLink string `json:"payment_link,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, r *http.Request, code int, kind, message string) {
	a.json(w, code, errorBody{
		Error:     kind,
		Message:   message,
		RequestID: middleware.RequestIDFromContext(r.Context()),
	})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// fail maps a service error onto a status and a user-facing remedy.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	locale := middleware.LocaleFromContext(r.Context())
	body := errorBody{Message: err.Error(), RequestID: middleware.RequestIDFromContext(r.Context())}
	code := http.StatusInternalServerError

	switch {
	case errors.Is(err, domain.ErrInsufficientCredits):
		code, body.Error = http.StatusPaymentRequired, "insufficient_credits"
		body.PaymentLink = a.paymentLink(r.Context())
	case errors.Is(err, domain.ErrSafetyFilter):
		code, body.Error = http.StatusUnprocessableEntity, "safety_filter"
		body.Hint = safetyHint(locale)
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		code, body.Error = http.StatusGatewayTimeout, "timeout"
		body.Hint = timeoutHint(locale)
	case errors.Is(err, domain.ErrPipelineBusy):
		code, body.Error = http.StatusConflict, "busy"
	case errors.Is(err, domain.ErrUserExists):
		code, body.Error = http.StatusConflict, "user_exists"
	case errors.Is(err, domain.ErrUnauthorized):
		code, body.Error = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrOperationNotFound):
		code, body.Error = http.StatusBadGateway, "operation_lost"
	case errors.Is(err, domain.ErrNotFound):
		code, body.Error = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrUnsupportedEdit):
		code, body.Error = http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrPlatform), errors.Is(err, domain.ErrProtocol),
		errors.Is(err, domain.ErrEmptyResult), errors.Is(err, domain.ErrDownload),
		errors.Is(err, domain.ErrGeneration):
		code, body.Error = http.StatusBadGateway, "generation_failed"
	default:
		body.Error = "internal"
	}
	if code >= http.StatusInternalServerError {
		a.Logger.Error().Err(err).Str("request_id", body.RequestID).Int("status", code).Msg("http: request failed")
	}
	a.json(w, code, body)
}

func (a *App) paymentLink(ctx context.Context) string {
	user, err := a.Accounts.CurrentUser(ctx)
	if err != nil {
		return ""
	}
	cfg, err := a.Accounts.AdminConfig(ctx)
	if err != nil {
		return ""
	}
	return a.Accounts.PaymentLink(cfg, user)
}

func (a *App) currentUser(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	user, err := a.Accounts.CurrentUser(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return domain.User{}, false
	}
	return user, true
}

// userID is the signed-in caller; RequireUser has already checked the session.
func userID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func safetyHint(locale string) string {
	if locale == "en" {
		return "The content filter rejected this request. Try a product photo without people, faces or registered trademarks."
	}
	return "El filtro de contenido rechazó la solicitud. Prueba con una foto del producto sin personas, rostros ni marcas registradas."
}

func timeoutHint(locale string) string {
	if locale == "en" {
		return "Video generation is taking longer than usual. Try again later."
	}
	return "La generación de video está tardando más de lo normal. Inténtalo de nuevo más tarde."
}

func attachment(w http.ResponseWriter, name, mime string) {
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}
