package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// Supported UI locales. The first entry is the matcher default.
var supportedLocales = []language.Tag{language.Spanish, language.English}

var localeMatcher = language.NewMatcher(supportedLocales)

// spanishCountries lists the markets served in Spanish when no language hint
// is present.
var spanishCountries = map[string]struct{}{
	"AR": {}, "BO": {}, "CL": {}, "CO": {}, "CR": {}, "CU": {}, "DO": {}, "EC": {},
	"ES": {}, "GQ": {}, "GT": {}, "HN": {}, "MX": {}, "NI": {}, "PA": {}, "PE": {},
	"PR": {}, "PY": {}, "SV": {}, "UY": {}, "VE": {},
}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, defaultLocale, country)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, fallback string, country string) string {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return normalizeLocale(v)
	}
	if v := strings.TrimSpace(r.Header.Get("Accept-Language")); v != "" {
		return normalizeLocale(v)
	}
	if country != "" {
		if _, ok := spanishCountries[strings.ToUpper(country)]; ok {
			return "es"
		}
		return "en"
	}
	if fallback != "" {
		return normalizeLocale(fallback)
	}
	return "es"
}

// normalizeLocale maps any language hint, including full Accept-Language
// lists, onto a supported base language.
func normalizeLocale(locale string) string {
	tag, _ := language.MatchStrings(localeMatcher, locale)
	base, _ := tag.Base()
	return base.String()
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return "es"
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

func localeRegion(accept string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil {
		return ""
	}
	for _, tag := range tags {
		if region, conf := tag.Region(); conf == language.Exact {
			return region.String()
		}
	}
	return ""
}
