package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ladder/internal/back"
	"ladder/internal/config"
	"ladder/internal/rating"
	"ladder/internal/standings"
	"ladder/internal/util"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	t       *testing.T
	back    *back.Back
	conf    *config.Config
	server  *Server
	players []util.UUIDAsBlob
}

func newTestEnv(t *testing.T, opts ...func(*Config, *[]back.Option)) *testEnv {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ladder.db")
	migrator, err := migrate.New("file://../../resources/migrations", "sqlite3://"+path)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	migrator.Close()

	webConf := Config{
		SubmissionsPerMinute: 600,
		SubmissionsBurst:     100,
		LocalesDir:           "../../resources/locales",
	}
	var backOpts []back.Option
	for _, opt := range opts {
		opt(&webConf, &backOpts)
	}

	b, err := back.New("sqlite3", path, rating.DefaultTrueSkill(), backOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	conf := config.Default()
	conf.WebToken = strings.Repeat("s", 32)

	env := &testEnv{
		t:      t,
		back:   b,
		conf:   conf,
		server: NewServer(b, conf, nil, webConf, zap.NewNop().Sugar()),
	}

	for i := 0; i < 3; i++ {
		id := util.NewUUIDAsBlob()
		_, err := b.OnPlayerCreated(context.Background(), id)
		require.NoError(t, err)
		env.players = append(env.players, id)
	}

	return env
}

func (e *testEnv) token(playerID util.UUIDAsBlob) string {
	token, err := e.conf.SignPlayerToken(playerID, time.Hour)
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) do(method, path string, as *util.UUIDAsBlob, body interface{}, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(*as))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

type testMatch struct {
	ID    string `json:"id"`
	State string `json:"state"`
}

func TestSubmitAndConfirm(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.players[0], env.players[1]

	rec := env.do(http.MethodPost, "/v1/matches", &a, map[string]string{
		"winner_id": a.String(),
		"loser_id":  b.String(),
		"comment":   "close one",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Message string    `json:"message"`
		Match   testMatch `json:"match"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "Your game has been submitted for approval!", created.Message)
	assert.Equal(t, "pending", created.Match.State)

	rec = env.do(http.MethodGet, "/v1/matches/pending", &b, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []testMatch
	decode(t, rec, &pending)
	require.Len(t, pending, 1)
	assert.Equal(t, created.Match.ID, pending[0].ID)

	rec = env.do(http.MethodGet, "/v1/matches/awaiting", &a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var awaiting []testMatch
	decode(t, rec, &awaiting)
	require.Len(t, awaiting, 1)

	rec = env.do(http.MethodPost, "/v1/matches/"+created.Match.ID+"/confirm", &a, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/v1/matches/"+created.Match.ID+"/confirm", &b, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var msg messageResponse
	decode(t, rec, &msg)
	assert.Equal(t, "We've confirmed your game, the rankings have been updated.", msg.Message)

	rec = env.do(http.MethodPost, "/v1/matches/"+created.Match.ID+"/confirm", &b, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(http.MethodGet, "/v1/players/"+a.String()+"/rating", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var r struct {
		Mean        float64 `json:"mean"`
		Uncertainty float64 `json:"uncertainty"`
	}
	decode(t, rec, &r)
	assert.InDelta(t, 29.396, r.Mean, 0.001)
	assert.InDelta(t, 7.171, r.Uncertainty, 0.001)

	rec = env.do(http.MethodGet, "/v1/rankings", &a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rankings []struct {
		Rank     int    `json:"rank"`
		PlayerID string `json:"player_id"`
		Wins     int    `json:"wins"`
		Form     []int  `json:"form"`
	}
	decode(t, rec, &rankings)
	require.Len(t, rankings, 3)
	assert.Equal(t, a.String(), rankings[0].PlayerID)
	assert.Equal(t, 1, rankings[0].Wins)
	assert.Empty(t, rankings[0].Form)
	for _, v := range rankings {
		if v.PlayerID == b.String() {
			assert.Equal(t, []int{1}, v.Form)
		}
	}
}

func TestReject(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.players[0], env.players[1]

	m, err := env.back.Submit(context.Background(), back.Submission{WinnerID: b, LoserID: a, ClaimantID: b})
	require.NoError(t, err)

	rec := env.do(http.MethodPost, "/v1/matches/"+m.ID.String()+"/reject", &a, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg messageResponse
	decode(t, rec, &msg)
	assert.Equal(t, "We've deleted the game.", msg.Message)

	rec = env.do(http.MethodPost, "/v1/matches/"+m.ID.String()+"/reject", &a, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSeries(t *testing.T) {
	env := newTestEnv(t)
	a, b := env.players[0], env.players[1]

	rec := env.do(http.MethodPost, "/v1/matches/series", &a, map[string]interface{}{
		"opponent_id": b.String(),
		"wins":        2,
		"losses":      1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var res struct {
		Message string      `json:"message"`
		Matches []testMatch `json:"matches"`
		Failed  []struct{}  `json:"failed"`
	}
	decode(t, rec, &res)
	assert.Equal(t, "2 wins and 1 losses have been submitted for approval!", res.Message)
	assert.Len(t, res.Matches, 3)
	assert.Empty(t, res.Failed)

	rec = env.do(http.MethodPost, "/v1/matches/series", &a, map[string]interface{}{
		"opponent_id": util.NewUUIDAsBlob().String(),
		"wins":        1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/matches/series", &a, map[string]interface{}{
		"opponent_id": b.String(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)
	a := env.players[0]

	rec := env.do(http.MethodGet, "/v1/matches/pending", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/v1/matches/pending", nil, nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodGet, "/v1/matches/pending", nil, nil, "Authorization", env.token(a))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "the Bearer scheme is required")

	expired, err := env.conf.SignPlayerToken(a, -time.Hour)
	require.NoError(t, err)
	rec = env.do(http.MethodGet, "/v1/matches/pending", nil, nil, "Authorization", "Bearer "+expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var e errorResponse
	decode(t, rec, &e)
	assert.Equal(t, "your session expired, log in again", e.Error)

	rec = env.do(http.MethodGet, "/v1/rankings", nil, nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorsAreLocalized(t *testing.T) {
	env := newTestEnv(t)
	a := env.players[0]

	body := map[string]string{"winner_id": a.String(), "loser_id": a.String()}

	rec := env.do(http.MethodPost, "/v1/matches", &a, body, "Accept-Language", "fr-FR,fr;q=0.9,en;q=0.5")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var e errorResponse
	decode(t, rec, &e)
	assert.Equal(t, "un joueur ne peut pas jouer contre lui-même", e.Error)

	rec = env.do(http.MethodPost, "/v1/matches", &a, body, "Accept-Language", "de")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	decode(t, rec, &e)
	assert.Equal(t, "a player cannot play against themselves", e.Error)

	missing := util.NewUUIDAsBlob().String()
	rec = env.do(http.MethodPost, "/v1/matches/"+missing+"/confirm", &a, nil, "Accept-Language", "fr")
	require.Equal(t, http.StatusConflict, rec.Code)
	decode(t, rec, &e)
	assert.Equal(t, "la partie "+missing+" n'attend plus de confirmation", e.Error)
}

func TestBadRequests(t *testing.T) {
	env := newTestEnv(t)
	a := env.players[0]

	rec := env.do(http.MethodPost, "/v1/matches/not-an-id/confirm", &a, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/matches", &a, map[string]string{"winner_id": "x", "loser_id": a.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/v1/matches", &a, map[string]string{"unknown": "field"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/v1/players/"+util.NewUUIDAsBlob().String()+"/rating", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmissionsAreRateLimited(t *testing.T) {
	env := newTestEnv(t, func(c *Config, _ *[]back.Option) {
		c.SubmissionsPerMinute = 1
		c.SubmissionsBurst = 1
	})
	a, b, c := env.players[0], env.players[1], env.players[2]
	body := map[string]string{"winner_id": a.String(), "loser_id": b.String()}

	rec := env.do(http.MethodPost, "/v1/matches", &a, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, "/v1/matches", &a, body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// Limits are per claimant.
	rec = env.do(http.MethodPost, "/v1/matches", &c, map[string]string{"winner_id": c.String(), "loser_id": b.String()})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestStandings(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(http.MethodGet, "/v1/standings", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	mr := miniredis.RunT(t)
	mirror, err := standings.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "ladder:standings")
	require.NoError(t, err)
	t.Cleanup(func() { mirror.Close() })

	env = newTestEnv(t, func(_ *Config, opts *[]back.Option) {
		*opts = append(*opts, back.WithStandings(mirror))
	})
	env.server.standings = mirror

	rec = env.do(http.MethodGet, "/v1/standings?n=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []standings.Entry
	decode(t, rec, &entries)
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Rank)

	rec = env.do(http.MethodGet, "/v1/standings?n=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Distinct exposures, ties are ordered differently by redis.
	ctx := context.Background()
	a, b := env.players[0], env.players[1]
	m, err := env.back.Submit(ctx, back.Submission{WinnerID: a, LoserID: b, ClaimantID: a})
	require.NoError(t, err)
	_, _, err = env.back.Respond(ctx, m.ID, b, true)
	require.NoError(t, err)

	rankings, err := env.back.GetRankings(ctx)
	require.NoError(t, err)
	require.Len(t, rankings, 3)
	for i, v := range rankings {
		rec = env.do(http.MethodGet, "/v1/players/"+v.PlayerID.String()+"/rating", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var got ratingResponse
		decode(t, rec, &got)
		assert.Equal(t, int64(i+1), got.Rank)
	}

	mr.SetError("ERR mirror unavailable")
	rec = env.do(http.MethodGet, "/v1/players/"+a.String()+"/rating", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got ratingResponse
	decode(t, rec, &got)
	assert.Zero(t, got.Rank, "an unreachable mirror only drops the rank")
}
