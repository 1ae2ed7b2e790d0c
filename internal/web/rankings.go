package web

import (
	"net/http"
	"strconv"

	"ladder/internal/back"
	"ladder/internal/standings"
	"ladder/internal/util"

	"github.com/go-chi/chi"
)

const (
	defaultStandingsSize = 10
	maxStandingsSize     = 100
)

type rankingResponse struct {
	Rank        int             `json:"rank"`
	PlayerID    util.UUIDAsBlob `json:"player_id"`
	Mean        float64         `json:"mean"`
	Uncertainty float64         `json:"uncertainty"`
	Exposure    float64         `json:"exposure"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`

	// Recent outcomes of the authenticated player against this one.
	Form back.Form `json:"form,omitempty"`
}

// getRankings is public, an optional bearer token adds the recent form of
// the caller against each ranked player.
func (s *Server) getRankings(w http.ResponseWriter, r *http.Request) {
	rankings, err := s.back.GetRankings(r.Context())
	if err != nil {
		s.error(w, r, err)
		return
	}

	var form map[util.UUIDAsBlob]back.Form
	if r.Header.Get("Authorization") != "" {
		playerID, err := s.playerFromBearer(r)
		if err != nil {
			s.error(w, r, err)
			return
		}

		form, err = s.back.RecentForm(r.Context(), playerID, nil)
		if err != nil {
			s.error(w, r, err)
			return
		}
	}

	ret := make([]rankingResponse, len(rankings))
	for i, v := range rankings {
		ret[i] = rankingResponse{
			Rank:        i + 1,
			PlayerID:    v.PlayerID,
			Mean:        v.Mean,
			Uncertainty: v.Uncertainty,
			Exposure:    v.Exposure,
			Wins:        v.Wins,
			Losses:      v.Losses,
			Form:        form[v.PlayerID],
		}
	}

	s.response(w, http.StatusOK, ret)
}

type ratingResponse struct {
	PlayerID    util.UUIDAsBlob      `json:"player_id"`
	Mean        float64              `json:"mean"`
	Uncertainty float64              `json:"uncertainty"`
	Exposure    float64              `json:"exposure"`
	UpdatedAt   util.TimeAsTimestamp `json:"updated_at"`

	// Rank in the standings mirror, absent when the mirror is disabled.
	Rank int64 `json:"rank,omitempty"`
}

func (s *Server) getPlayerRating(w http.ResponseWriter, r *http.Request) {
	playerID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.error(w, r, err)
		return
	}

	rating, err := s.back.GetPlayerRating(r.Context(), playerID)
	if err != nil {
		s.error(w, r, err)
		return
	}

	ret := ratingResponse{
		PlayerID:    rating.PlayerID,
		Mean:        rating.Mean,
		Uncertainty: rating.Uncertainty,
		Exposure:    rating.Exposure,
		UpdatedAt:   rating.UpdatedAt,
	}

	if s.standings != nil {
		entry, found, err := s.standings.Rank(r.Context(), rating.PlayerID.String())
		switch {
		case err != nil:
			s.log.Warnw("unable to read standings rank", "player", rating.PlayerID, "error", err)
		case found:
			ret.Rank = entry.Rank
		}
	}

	s.response(w, http.StatusOK, ret)
}

func (s *Server) getStandings(w http.ResponseWriter, r *http.Request) {
	if s.standings == nil {
		s.error(w, r, statusError{http.StatusServiceUnavailable, "standings are not available"})
		return
	}

	n := defaultStandingsSize
	if str := r.URL.Query().Get("n"); str != "" {
		v, err := strconv.Atoi(str)
		if err != nil || v < 1 || v > maxStandingsSize {
			s.error(w, r, statusError{http.StatusBadRequest, "n must be a number between 1 and 100"})
			return
		}
		n = v
	}

	entries, err := s.standings.Top(r.Context(), n)
	if err != nil {
		s.error(w, r, err)
		return
	}
	if entries == nil {
		entries = []standings.Entry{}
	}

	s.response(w, http.StatusOK, entries)
}
