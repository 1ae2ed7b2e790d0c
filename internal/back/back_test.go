package back

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ladder/internal/rating"
	"ladder/internal/util"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

// testClock is a settable clock. Stored timestamps only keep seconds.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func createTestBack(t *testing.T, opts ...Option) *Back {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ladder.db")
	migrator, err := migrate.New(
		"file://../../resources/migrations",
		"sqlite3://"+path,
	)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	migrator.Close()

	back, err := New("sqlite3", path, rating.DefaultTrueSkill(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { back.Close() })

	return back
}

func createTestPlayers(t *testing.T, back *Back, n int) []util.UUIDAsBlob {
	t.Helper()

	ids := make([]util.UUIDAsBlob, n)
	for i := range ids {
		ids[i] = util.NewUUIDAsBlob()
		_, err := back.OnPlayerCreated(context.Background(), ids[i])
		require.NoError(t, err)
	}

	return ids
}

func submitTestMatch(t *testing.T, back *Back, winner, loser, claimant util.UUIDAsBlob) MatchRecord {
	t.Helper()

	m, err := back.Submit(context.Background(), Submission{
		WinnerID:   winner,
		LoserID:    loser,
		ClaimantID: claimant,
	})
	require.NoError(t, err)

	return m
}

func mustGetRating(t *testing.T, back *Back, id util.UUIDAsBlob) PlayerRating {
	t.Helper()

	r, err := back.GetPlayerRating(context.Background(), id)
	require.NoError(t, err)

	return r
}
