package back

import (
	"context"
	"sync"
	"testing"

	"ladder/internal/standings"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStandingsKey = "ladder:standings"

func createTestBackWithStandings(t *testing.T) (*Back, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	mirror, err := standings.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}), testStandingsKey)
	require.NoError(t, err)
	t.Cleanup(func() { mirror.Close() })

	return createTestBack(t, WithStandings(mirror)), mr
}

func TestStandingsFollowRatings(t *testing.T) {
	ctx := context.Background()
	back, mr := createTestBackWithStandings(t)
	ids := createTestPlayers(t, back, 2)
	a, b := ids[0], ids[1]

	members, err := mr.ZMembers(testStandingsKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.String(), b.String()}, members)

	m := submitTestMatch(t, back, a, b, a)
	_, _, err = back.Respond(ctx, m.ID, b, true)
	require.NoError(t, err)

	score, err := mr.ZScore(testStandingsKey, a.String())
	require.NoError(t, err)
	assert.InDelta(t, mustGetRating(t, back, a).Exposure, score, 1e-9)

	require.NoError(t, back.OnPlayerDeleted(ctx, b))
	members, err = mr.ZMembers(testStandingsKey)
	require.NoError(t, err)
	assert.Equal(t, []string{a.String()}, members)
}

func TestSyncStandingsReplacesMirror(t *testing.T) {
	ctx := context.Background()
	back, mr := createTestBackWithStandings(t)
	ids := createTestPlayers(t, back, 2)

	_, err := mr.ZAdd(testStandingsKey, 99, "stale")
	require.NoError(t, err)
	_, err = mr.ZRem(testStandingsKey, ids[0].String())
	require.NoError(t, err)

	require.NoError(t, back.SyncStandings(ctx))
	members, err := mr.ZMembers(testStandingsKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ids[0].String(), ids[1].String()}, members)
}

func TestMirrorFailureDoesNotFailWorkflow(t *testing.T) {
	ctx := context.Background()
	back, mr := createTestBackWithStandings(t)
	ids := createTestPlayers(t, back, 2)
	mr.Close()

	m := submitTestMatch(t, back, ids[0], ids[1], ids[0])
	_, confirmed, err := back.Respond(ctx, m.ID, ids[1], true)
	require.NoError(t, err)
	assert.True(t, confirmed)
}

func TestRunStopsOnDone(t *testing.T) {
	back, mr := createTestBackWithStandings(t)
	createTestPlayers(t, back, 1)
	mr.Del(testStandingsKey)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go back.Run(&wg, done)
	close(done)
	wg.Wait()

	// The first sync runs before waiting on the ticker.
	assert.True(t, mr.Exists(testStandingsKey))
}
