package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"ladder/internal/config"
	"ladder/internal/util"
)

func (s *Server) authenticator(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID, err := s.playerFromBearer(r)
		if err != nil {
			s.error(w, r, err)
			return
		}

		h.ServeHTTP(w, r.WithContext(withPlayer(r.Context(), playerID)))
	})
}

func (s *Server) playerFromBearer(r *http.Request) (util.UUIDAsBlob, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if header == "" || token == header {
		return util.UUIDAsBlob{}, statusError{http.StatusUnauthorized, "you must be logged in"}
	}

	playerID, err := s.tokens.CheckPlayerToken(strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, config.ErrTokenExpired) {
			return util.UUIDAsBlob{}, statusError{http.StatusUnauthorized, "your session expired, log in again"}
		}
		s.log.Infow("refused bearer token", "error", err)
		return util.UUIDAsBlob{}, statusError{http.StatusUnauthorized, "you must be logged in"}
	}

	return playerID, nil
}

func withPlayer(ctx context.Context, playerID util.UUIDAsBlob) context.Context {
	return context.WithValue(ctx, ctxKeyAuthPlayer, playerID)
}

// playerFromRequest returns the authenticated player, ok is false on public
// routes or without a token.
func playerFromRequest(r *http.Request) (util.UUIDAsBlob, bool) {
	id, ok := r.Context().Value(ctxKeyAuthPlayer).(util.UUIDAsBlob)
	return id, ok
}
