package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// TokenClaims identifies one signed-in session.
type TokenClaims struct {
	Sub     string `json:"sub"`
	Session string `json:"sid"`
	Role    string `json:"role,omitempty"`
	Exp     int64  `json:"exp"`
	Issuer  string `json:"iss,omitempty"`
}

const claimsKey contextKey = "token_claims"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

func SignJWT(secret string, claims TokenClaims) (string, error) {
	if secret == "" {
		return "", errors.New("jwt: secret is required")
	}
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	data := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	return data + "." + hmacSign(secret, data), nil
}

func hmacSign(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyJWT checks the signature and expiry of token at now.
func VerifyJWT(secret, token string, now time.Time) (*TokenClaims, error) {
	if secret == "" {
		return nil, ErrInvalidToken
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	expected := hmacSign(secret, parts[0]+"."+parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, ErrInvalidToken
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, ErrInvalidToken
	}
	var claims TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Sub == "" || claims.Session == "" {
		return nil, ErrInvalidToken
	}
	if claims.Exp != 0 && now.Unix() > claims.Exp {
		return nil, ErrTokenExpired
	}
	return &claims, nil
}

// AuthJWT attaches the claims of a valid bearer token to the request context.
// Requests without one, or with a bad one, continue anonymously; handlers
// decide whether a user is required.
func AuthJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := VerifyJWT(secret, token, time.Now())
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := ContextWithClaims(r.Context(), *claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func ContextWithClaims(ctx context.Context, claims TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFromContext(ctx context.Context) (TokenClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(TokenClaims)
	return claims, ok
}

func UserIDFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Sub
	}
	return ""
}
