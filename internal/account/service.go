// Package account keeps studio users, their credit balances and the payment
// hand-off settings in an injected key-value store.
package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/infra/kvstore"
	"studio/internal/middleware"
)

const (
	usersKey         = "users"
	sessionKeyPrefix = "session:"
	adminConfigKey   = "admin_config"
	tokenIssuer      = "studio"

	AdminCredits          = 99999
	DefaultFreeCredits    = 3
	DefaultWhatsAppNumber = "15558883245"
	DefaultPricePerCredit = 1
	DefaultSessionTTL     = 7 * 24 * time.Hour
)

type Options struct {
	Store       kvstore.Store
	AdminEmail  string
	FreeCredits int
	// TokenSecret signs session tokens; sessions cannot start without it.
	TokenSecret string
	SessionTTL  time.Duration
	Now         func() time.Time
	Logger      *infra.Logger
}

// Session is a signed-in identity handed to one client.
type Session struct {
	Token     string
	User      domain.User
	ExpiresAt time.Time
}

type sessionRecord struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service serializes every read-modify-write of the user list.
type Service struct {
	store       kvstore.Store
	adminEmail  string
	freeCredits int
	tokenSecret string
	sessionTTL  time.Duration
	now         func() time.Time
	ids         *domain.IDGenerator
	logger      *infra.Logger

	mu sync.Mutex
}

func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("account: store is required")
	}
	s := &Service{
		store:       opts.Store,
		adminEmail:  normalizeEmail(opts.AdminEmail),
		freeCredits: opts.FreeCredits,
		tokenSecret: opts.TokenSecret,
		sessionTTL:  opts.SessionTTL,
		now:         opts.Now,
		logger:      opts.Logger,
	}
	if s.freeCredits <= 0 {
		s.freeCredits = DefaultFreeCredits
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		discard := zerolog.New(io.Discard)
		s.logger = &discard
	}
	s.ids = domain.NewIDGenerator(s.now)
	return s, nil
}

// Init prepares the backing store.
func (s *Service) Init(ctx context.Context) error {
	return s.store.Init(ctx)
}

// FreeCredits reports the trial balance granted at registration.
func (s *Service) FreeCredits() int {
	return s.freeCredits
}

func (s *Service) Register(ctx context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerLocked(ctx, email)
}

func (s *Service) registerLocked(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	if !validEmail(email) {
		return domain.User{}, fmt.Errorf("%w: email", domain.ErrInvalidInput)
	}
	users, err := s.loadUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.Email == email {
			return domain.User{}, domain.ErrUserExists
		}
	}

	user := domain.User{
		ID:        s.ids.Next("user"),
		Email:     email,
		Role:      domain.UserRoleUser,
		Credits:   s.freeCredits,
		CreatedAt: s.now().UTC(),
	}
	if s.isAdminEmail(email) {
		user.Role = domain.UserRoleAdmin
		user.Credits = AdminCredits
	}

	users = append(users, user)
	if err := kvstore.PutJSON(ctx, s.store, usersKey, users); err != nil {
		return domain.User{}, err
	}
	s.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("account: registered")
	return user, nil
}

// Login selects an existing user. The admin email is registered on first use.
func (s *Service) Login(ctx context.Context, email string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	users, err := s.loadUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	if s.isAdminEmail(email) {
		return s.registerLocked(ctx, email)
	}
	return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, email)
}

// StartSession signs a token for user. Each client holds its own session, so
// concurrent sign-ins never displace one another.
func (s *Service) StartSession(ctx context.Context, user domain.User) (Session, error) {
	if s.tokenSecret == "" {
		return Session{}, fmt.Errorf("account: token secret is not configured")
	}
	sid := uuid.NewString()
	expires := s.now().UTC().Add(s.sessionTTL)
	token, err := middleware.SignJWT(s.tokenSecret, middleware.TokenClaims{
		Sub:     user.ID,
		Session: sid,
		Role:    string(user.Role),
		Exp:     expires.Unix(),
		Issuer:  tokenIssuer,
	})
	if err != nil {
		return Session{}, err
	}
	if err := kvstore.PutJSON(ctx, s.store, sessionKeyPrefix+sid, sessionRecord{UserID: user.ID, ExpiresAt: expires}); err != nil {
		return Session{}, err
	}
	s.logger.Debug().Str("user_id", user.ID).Msg("account: session started")
	return Session{Token: token, User: user, ExpiresAt: expires}, nil
}

// Logout ends the session carried by ctx. Anonymous requests are a no-op.
func (s *Service) Logout(ctx context.Context) error {
	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		return nil
	}
	return s.store.Delete(ctx, sessionKeyPrefix+claims.Session)
}

// CurrentUser resolves the user of the session carried by ctx, always
// re-reading the user list.
func (s *Service) CurrentUser(ctx context.Context) (domain.User, error) {
	claims, ok := middleware.ClaimsFromContext(ctx)
	if !ok {
		return domain.User{}, domain.ErrUnauthorized
	}
	var rec sessionRecord
	found, err := kvstore.GetJSON(ctx, s.store, sessionKeyPrefix+claims.Session, &rec)
	if err != nil {
		return domain.User{}, err
	}
	if !found || rec.UserID != claims.Sub || !s.now().Before(rec.ExpiresAt) {
		return domain.User{}, domain.ErrUnauthorized
	}
	u, err := s.User(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	return u, nil
}

func (s *Service) User(ctx context.Context, id string) (domain.User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
}

func (s *Service) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	users, err := s.loadUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, email)
}

func (s *Service) Users(ctx context.Context) ([]domain.User, error) {
	return s.loadUsers(ctx)
}

// DeductCredit charges one credit. Admins are returned unchanged; an empty
// balance fails with ErrInsufficientCredits and is not modified.
func (s *Service) DeductCredit(ctx context.Context, id string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	i := indexOf(users, id)
	if i < 0 {
		return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	if users[i].IsAdmin() {
		return users[i], nil
	}
	if users[i].Credits <= 0 {
		return users[i], domain.ErrInsufficientCredits
	}
	users[i].Credits--
	if err := kvstore.PutJSON(ctx, s.store, usersKey, users); err != nil {
		return domain.User{}, err
	}
	s.logger.Debug().Str("user_id", id).Int("credits", users[i].Credits).Msg("account: credit deducted")
	return users[i], nil
}

func (s *Service) AddCredits(ctx context.Context, id string, amount int) (domain.User, error) {
	if amount <= 0 {
		return domain.User{}, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.loadUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	i := indexOf(users, id)
	if i < 0 {
		return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	users[i].Credits += amount
	if err := kvstore.PutJSON(ctx, s.store, usersKey, users); err != nil {
		return domain.User{}, err
	}
	s.logger.Info().Str("user_id", id).Int("amount", amount).Msg("account: credits added")
	return users[i], nil
}

func (s *Service) AdminConfig(ctx context.Context) (domain.AdminConfig, error) {
	cfg := domain.AdminConfig{WhatsAppNumber: DefaultWhatsAppNumber, PricePerCredit: DefaultPricePerCredit}
	if _, err := kvstore.GetJSON(ctx, s.store, adminConfigKey, &cfg); err != nil {
		return domain.AdminConfig{}, err
	}
	return cfg, nil
}

func (s *Service) SaveAdminConfig(ctx context.Context, cfg domain.AdminConfig) error {
	cfg.WhatsAppNumber = digitsOnly(cfg.WhatsAppNumber)
	if cfg.WhatsAppNumber == "" {
		return fmt.Errorf("%w: whatsapp number", domain.ErrInvalidInput)
	}
	if cfg.PricePerCredit <= 0 {
		return fmt.Errorf("%w: price per credit", domain.ErrInvalidInput)
	}
	return kvstore.PutJSON(ctx, s.store, adminConfigKey, cfg)
}

// PaymentLink builds the WhatsApp deep link a user follows to buy credits.
func (s *Service) PaymentLink(cfg domain.AdminConfig, user domain.User) string {
	text := fmt.Sprintf(
		"Hola Trends172, soy el usuario %s. Ya consumí mis %d pruebas gratuitas y me gustaría comprar monedas/créditos para seguir generando contenido. ID: %s",
		user.Email, s.freeCredits, user.ID,
	)
	escaped := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return fmt.Sprintf("https://wa.me/%s?text=%s", digitsOnly(cfg.WhatsAppNumber), escaped)
}

func (s *Service) isAdminEmail(email string) bool {
	return s.adminEmail != "" && email == s.adminEmail
}

func (s *Service) loadUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if _, err := kvstore.GetJSON(ctx, s.store, usersKey, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func indexOf(users []domain.User, id string) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

func digitsOnly(v string) string {
	var b strings.Builder
	for _, r := range v {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
