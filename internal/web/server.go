// Package web exposes the ladder as a JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"ladder/internal/back"
	"ladder/internal/standings"
	"ladder/internal/util"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"go.uber.org/zap"
)

// TokenChecker authenticates players from their bearer tokens.
type TokenChecker interface {
	CheckPlayerToken(str string) (util.UUIDAsBlob, error)
}

// StandingsReader is the read side of the standings mirror.
type StandingsReader interface {
	Top(ctx context.Context, n int) ([]standings.Entry, error)
	Rank(ctx context.Context, playerID string) (standings.Entry, bool, error)
}

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Submissions allowed per player and minute, and burst size.
	SubmissionsPerMinute float64
	SubmissionsBurst     int

	// LocalesDir holds <lang>/LC_MESSAGES/default.po files.
	LocalesDir string
}

type Server struct {
	http      *http.Server
	back      *back.Back
	tokens    TokenChecker
	standings StandingsReader
	log       *zap.SugaredLogger
	locales   *locales
	limiter   *submissionLimiter
}

// NewServer creates the HTTP server, standings may be nil when the mirror is
// disabled.
func NewServer(
	b *back.Back,
	tokens TokenChecker,
	standings StandingsReader,
	conf Config,
	log *zap.SugaredLogger,
) *Server {
	s := &Server{
		back:      b,
		tokens:    tokens,
		standings: standings,
		log:       log,
		locales:   loadLocales(conf.LocalesDir),
		limiter:   newSubmissionLimiter(conf.SubmissionsPerMinute, conf.SubmissionsBurst),
	}

	s.http = &http.Server{
		Addr:         conf.Addr,
		ReadTimeout:  conf.ReadTimeout,
		WriteTimeout: conf.WriteTimeout,
		IdleTimeout:  conf.IdleTimeout,
		Handler:      s.setupRouter(),
	}

	return s
}

func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.localizer)

	r.Get("/", noContent)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/rankings", s.getRankings)
		r.Get("/standings", s.getStandings)
		r.Get("/players/{id}/rating", s.getPlayerRating)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticator)

			r.With(s.rateLimited).Post("/matches", s.postMatch)
			r.With(s.rateLimited).Post("/matches/series", s.postSeries)
			r.Post("/matches/{id}/confirm", s.postConfirm)
			r.Post("/matches/{id}/reject", s.postReject)
			r.Get("/matches/pending", s.getPending)
			r.Get("/matches/awaiting", s.getAwaiting)
		})
	})

	return r
}

// Handler is the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) Serve(wg *sync.WaitGroup, done <-chan struct{}) {
	defer wg.Done()
	s.log.Infow("starting HTTP server", "addr", s.http.Addr)

	go func() {
		err := s.http.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			s.log.Info("HTTP server closed")
			return
		}

		s.log.Fatalw("webserver crashed", "error", err)
	}()

	<-done
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Warnw("unable to close webserver", "error", err)
	}
}

func (s *Server) requestLogger(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		h.ServeHTTP(ww, r)

		s.log.Debugw(
			"http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) response(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	response, err := json.Marshal(data)
	if err != nil {
		s.log.Errorw("unable to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(code)

	if _, err := w.Write(response); err != nil {
		s.log.Errorw("unable to send response", "error", err)
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) message(w http.ResponseWriter, r *http.Request, code int, format string, args ...interface{}) {
	s.response(w, code, messageResponse{Message: localeFromRequest(r).Get(format, args...)})
}

type errorResponse struct {
	Error string `json:"error"`
}

// error replies with the localized public reason of err, internal details are
// only logged.
func (s *Server) error(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFromError(err)
	msg := s.publicMessage(r, err, code)

	if code >= http.StatusInternalServerError {
		s.log.Errorw("request failed", "path", r.URL.Path, "status", code, "error", err)
	} else {
		s.log.Infow("request refused", "path", r.URL.Path, "status", code, "error", err)
	}

	s.response(w, code, errorResponse{Error: msg})
}

func (s *Server) publicMessage(r *http.Request, err error, code int) string {
	locale := localeFromRequest(r)

	var werr *back.Error
	if errors.As(err, &werr) && werr.Reason != "" {
		return werr.Translate(locale.Get)
	}

	if reason, ok := util.PublicReason(err); ok {
		return locale.Get(string(reason))
	}

	return locale.Get(http.StatusText(code))
}

func statusFromError(err error) int {
	var status statusError
	if errors.As(err, &status) {
		return status.code
	}

	switch back.KindOf(err) {
	case back.ErrInvalidInput:
		return http.StatusBadRequest
	case back.ErrNotAuthorized:
		return http.StatusForbidden
	case back.ErrNotFound:
		return http.StatusNotFound
	case back.ErrInvalidState, back.ErrAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// statusError is an adapter level failure with a fixed status code.
type statusError struct {
	code   int
	reason util.ErrPublic
}

func (e statusError) Error() string {
	return string(e.reason)
}

func (e statusError) Unwrap() error {
	return e.reason
}
