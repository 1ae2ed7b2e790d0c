package web

import (
	"context"
	"net/http"

	"github.com/leonelquinteros/gotext"
	"golang.org/x/text/language"
)

type ctxKey int

const (
	ctxKeyLocale ctxKey = iota
	ctxKeyAuthPlayer
)

// supportedLanguages starts with the fallback language.
var supportedLanguages = []language.Tag{ // nolint:gochecknoglobals
	language.English,
	language.French,
}

type locales struct {
	matcher language.Matcher
	byTag   map[language.Tag]*gotext.Locale
}

// loadLocales reads <dir>/<lang>/LC_MESSAGES/default.po for every supported
// language, missing files leave messages untranslated.
func loadLocales(dir string) *locales {
	ret := &locales{
		matcher: language.NewMatcher(supportedLanguages),
		byTag:   make(map[language.Tag]*gotext.Locale, len(supportedLanguages)),
	}

	for _, tag := range supportedLanguages {
		base, _ := tag.Base()
		l := gotext.NewLocale(dir, base.String())
		if dir != "" {
			l.AddDomain("default")
		}
		ret.byTag[tag] = l
	}

	return ret
}

// match returns the best locale for an Accept-Language header value.
func (l *locales) match(acceptLanguage string) *gotext.Locale {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil {
		tags = nil
	}

	_, idx, _ := l.matcher.Match(tags...)
	return l.byTag[supportedLanguages[idx]]
}

func (s *Server) localizer(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		locale := s.locales.match(r.Header.Get("Accept-Language"))
		ctx := context.WithValue(r.Context(), ctxKeyLocale, locale)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

func localeFromRequest(r *http.Request) *gotext.Locale {
	if l, ok := r.Context().Value(ctxKeyLocale).(*gotext.Locale); ok {
		return l
	}

	return gotext.NewLocale("", "en")
}
