package web

import (
	"encoding/json"
	"net/http"

	"ladder/internal/back"
	"ladder/internal/util"

	"github.com/go-chi/chi"
	"gopkg.in/guregu/null.v4"
)

const maxBodySize = 1 << 16

type matchResponse struct {
	ID          util.UUIDAsBlob          `json:"id"`
	WinnerID    util.UUIDAsBlob          `json:"winner_id"`
	LoserID     util.UUIDAsBlob          `json:"loser_id"`
	ClaimantID  util.UUIDAsBlob          `json:"claimant_id"`
	State       back.MatchState          `json:"state"`
	Comment     null.String              `json:"comment"`
	CreatedAt   util.TimeAsTimestamp     `json:"created_at"`
	ConfirmedAt util.NullTimeAsTimestamp `json:"confirmed_at"`
}

func newMatchResponse(m back.MatchRecord) matchResponse {
	return matchResponse{
		ID:          m.ID,
		WinnerID:    m.WinnerID,
		LoserID:     m.LoserID,
		ClaimantID:  m.ClaimantID,
		State:       m.State,
		Comment:     m.Comment,
		CreatedAt:   m.CreatedAt,
		ConfirmedAt: m.ConfirmedAt,
	}
}

func newMatchResponses(matches []back.MatchRecord) []matchResponse {
	ret := make([]matchResponse, len(matches))
	for i, v := range matches {
		ret[i] = newMatchResponse(v)
	}

	return ret
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return statusError{http.StatusBadRequest, "the request body is not valid"}
	}

	return nil
}

func parseID(str string) (util.UUIDAsBlob, error) {
	id, err := util.ParseUUIDAsBlob(str)
	if err != nil {
		reason, _ := util.PublicReason(err)
		return util.UUIDAsBlob{}, statusError{http.StatusBadRequest, reason}
	}

	return id, nil
}

type postMatchRequest struct {
	WinnerID string `json:"winner_id"`
	LoserID  string `json:"loser_id"`
	Comment  string `json:"comment"`
}

type postMatchResponse struct {
	Message string        `json:"message"`
	Match   matchResponse `json:"match"`
}

func (s *Server) postMatch(w http.ResponseWriter, r *http.Request) {
	playerID, _ := playerFromRequest(r)

	var req postMatchRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.error(w, r, err)
		return
	}

	winnerID, err := parseID(req.WinnerID)
	if err != nil {
		s.error(w, r, err)
		return
	}
	loserID, err := parseID(req.LoserID)
	if err != nil {
		s.error(w, r, err)
		return
	}

	m, err := s.back.Submit(r.Context(), back.Submission{
		WinnerID:   winnerID,
		LoserID:    loserID,
		ClaimantID: playerID,
		Comment:    req.Comment,
	})
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.response(w, http.StatusCreated, postMatchResponse{
		Message: localeFromRequest(r).Get("Your game has been submitted for approval!"),
		Match:   newMatchResponse(m),
	})
}

type postSeriesRequest struct {
	OpponentID string `json:"opponent_id"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
}

type seriesFailure struct {
	WinnerID util.UUIDAsBlob `json:"winner_id"`
	LoserID  util.UUIDAsBlob `json:"loser_id"`
	Error    string          `json:"error"`
}

type postSeriesResponse struct {
	Message string          `json:"message"`
	Matches []matchResponse `json:"matches"`
	Failed  []seriesFailure `json:"failed"`
}

func (s *Server) postSeries(w http.ResponseWriter, r *http.Request) {
	playerID, _ := playerFromRequest(r)

	var req postSeriesRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.error(w, r, err)
		return
	}

	opponentID, err := parseID(req.OpponentID)
	if err != nil {
		s.error(w, r, err)
		return
	}

	results, err := s.back.SubmitSeries(r.Context(), playerID, opponentID, req.Wins, req.Losses)
	if err != nil {
		s.error(w, r, err)
		return
	}

	submitted := results.Submitted()
	if len(submitted) == 0 {
		// Every pair shares the same players, they all failed the same way.
		s.error(w, r, results[0].Err)
		return
	}

	var wins, losses int
	for _, m := range submitted {
		if m.WinnerID == playerID {
			wins++
		} else {
			losses++
		}
	}

	failed := make([]seriesFailure, 0, results.Failed())
	for _, v := range results {
		if v.Err == nil {
			continue
		}
		failed = append(failed, seriesFailure{
			WinnerID: v.Pair.WinnerID,
			LoserID:  v.Pair.LoserID,
			Error:    s.publicMessage(r, v.Err, statusFromError(v.Err)),
		})
	}

	s.response(w, http.StatusCreated, postSeriesResponse{
		Message: localeFromRequest(r).Get("%d wins and %d losses have been submitted for approval!", wins, losses),
		Matches: newMatchResponses(submitted),
		Failed:  failed,
	})
}

func (s *Server) postConfirm(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, true)
}

func (s *Server) postReject(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, false)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	playerID, _ := playerFromRequest(r)

	matchID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.error(w, r, err)
		return
	}

	_, confirmed, err := s.back.Respond(r.Context(), matchID, playerID, accept)
	if err != nil {
		s.error(w, r, err)
		return
	}

	if confirmed {
		s.message(w, r, http.StatusOK, "We've confirmed your game, the rankings have been updated.")
		return
	}

	s.message(w, r, http.StatusOK, "We've deleted the game.")
}

func (s *Server) getPending(w http.ResponseWriter, r *http.Request) {
	playerID, _ := playerFromRequest(r)

	matches, err := s.back.GetPendingConfirmations(r.Context(), playerID)
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.response(w, http.StatusOK, newMatchResponses(matches))
}

func (s *Server) getAwaiting(w http.ResponseWriter, r *http.Request) {
	playerID, _ := playerFromRequest(r)

	matches, err := s.back.GetAwaitingConfirmation(r.Context(), playerID)
	if err != nil {
		s.error(w, r, err)
		return
	}

	s.response(w, http.StatusOK, newMatchResponses(matches))
}
