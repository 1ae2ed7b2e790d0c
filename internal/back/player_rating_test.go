package back

import (
	"context"
	"testing"

	"ladder/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePlayerRating(t *testing.T) {
	ctx := context.Background()
	back := createTestBack(t)
	id := util.NewUUIDAsBlob()

	r, err := back.CreatePlayerRating(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, r.PlayerID)
	assert.Equal(t, 25.0, r.Mean)
	assert.InDelta(t, 25.0/3, r.Uncertainty, 1e-9)
	assert.InDelta(t, 0, r.Exposure, 1e-9)

	stored := mustGetRating(t, back, id)
	assert.Equal(t, r.Mean, stored.Mean)
	assert.Equal(t, r.Uncertainty, stored.Uncertainty)

	_, err = back.CreatePlayerRating(ctx, id)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = back.CreatePlayerRating(ctx, util.UUIDAsBlob{})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetPlayerRatingNotFound(t *testing.T) {
	back := createTestBack(t)

	_, err := back.GetPlayerRating(context.Background(), util.NewUUIDAsBlob())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, ErrNotFound, KindOf(err))
}

func TestDeletePlayerRating(t *testing.T) {
	ctx := context.Background()
	back := createTestBack(t)
	ids := createTestPlayers(t, back, 3)
	a, b, c := ids[0], ids[1], ids[2]

	confirmed := submitTestMatch(t, back, a, b, a)
	_, _, err := back.Respond(ctx, confirmed.ID, b, true)
	require.NoError(t, err)
	pendingAB := submitTestMatch(t, back, b, a, b)
	pendingBC := submitTestMatch(t, back, b, c, c)

	require.NoError(t, back.OnPlayerDeleted(ctx, a))

	_, err = back.GetPlayerRating(ctx, a)
	assert.ErrorIs(t, err, ErrNotFound)

	// History stays, pending games of a are gone.
	stored, err := back.GetMatchRecord(ctx, confirmed.ID)
	require.NoError(t, err)
	assert.Equal(t, MatchStateConfirmed, stored.State)
	_, err = back.GetMatchRecord(ctx, pendingAB.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = back.GetMatchRecord(ctx, pendingBC.ID)
	assert.NoError(t, err)

	_, _, err = back.Respond(ctx, pendingAB.ID, a, true)
	assert.ErrorIs(t, err, ErrInvalidState)

	assert.ErrorIs(t, back.OnPlayerDeleted(ctx, a), ErrNotFound)

	// A deleted player can be registered again from scratch.
	r, err := back.OnPlayerCreated(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, back.Algorithm().Default().Mean, r.Mean)
}

func TestGetRankings(t *testing.T) {
	ctx := context.Background()
	back := createTestBack(t)
	ids := createTestPlayers(t, back, 3)
	a, b, c := ids[0], ids[1], ids[2]

	for _, v := range [][2]util.UUIDAsBlob{{a, b}, {a, c}, {b, c}} {
		m := submitTestMatch(t, back, v[0], v[1], v[0])
		_, _, err := back.Respond(ctx, m.ID, v[1], true)
		require.NoError(t, err)
	}
	submitTestMatch(t, back, c, a, c) // pending games are not counted

	rankings, err := back.GetRankings(ctx)
	require.NoError(t, err)
	require.Len(t, rankings, 3)

	assert.Equal(t, a, rankings[0].PlayerID)
	assert.Equal(t, 2, rankings[0].Wins)
	assert.Equal(t, 0, rankings[0].Losses)
	assert.Equal(t, b, rankings[1].PlayerID)
	assert.Equal(t, 1, rankings[1].Wins)
	assert.Equal(t, 1, rankings[1].Losses)
	assert.Equal(t, c, rankings[2].PlayerID)
	assert.Equal(t, 0, rankings[2].Wins)
	assert.Equal(t, 2, rankings[2].Losses)

	for i := 1; i < len(rankings); i++ {
		assert.GreaterOrEqual(t, rankings[i-1].Exposure, rankings[i].Exposure)
	}
}

func TestLoadFixtures(t *testing.T) {
	ctx := context.Background()
	back := createTestBack(t)

	players, err := back.LoadFixtures(ctx)
	require.NoError(t, err)
	require.Len(t, players, len(devPlayerNames))

	rankings, err := back.GetRankings(ctx)
	require.NoError(t, err)
	require.Len(t, rankings, len(players))

	assert.Equal(t, players[0].ID, rankings[0].PlayerID)
	assert.Equal(t, len(players)-1, rankings[0].Wins)
	last := rankings[len(rankings)-1]
	assert.Equal(t, players[len(players)-1].ID, last.PlayerID)
	assert.Equal(t, 0, last.Wins)

	pending, err := back.GetPendingConfirmations(ctx, players[0].ID)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
