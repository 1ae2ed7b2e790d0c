package back

import (
	"context"
	"sync"
	"time"

	"ladder/internal/standings"
)

// StandingsSink receives the exposure of rated players. It is best-effort,
// the database stays the source of truth.
type StandingsSink interface {
	Publish(ctx context.Context, entries ...standings.Entry) error
	Remove(ctx context.Context, playerID string) error
	Replace(ctx context.Context, entries []standings.Entry) error
}

const standingsSyncInterval = 1 * time.Minute

func standingsEntry(r PlayerRating) standings.Entry {
	return standings.Entry{PlayerID: r.PlayerID.String(), Exposure: r.Exposure}
}

// publishStandings never fails, the periodic sync will catch up.
func (b *Back) publishStandings(ctx context.Context, ratings ...PlayerRating) {
	if b.standings == nil {
		return
	}

	entries := make([]standings.Entry, len(ratings))
	for i, v := range ratings {
		entries[i] = standingsEntry(v)
	}

	if err := b.standings.Publish(ctx, entries...); err != nil {
		b.log.Warnw("unable to publish standings", "error", err)
	}
}

func (b *Back) removeStandings(ctx context.Context, playerID string) {
	if b.standings == nil {
		return
	}

	if err := b.standings.Remove(ctx, playerID); err != nil {
		b.log.Warnw("unable to remove player from standings", "player", playerID, "error", err)
	}
}

// SyncStandings replaces the whole mirror with the stored ratings.
func (b *Back) SyncStandings(ctx context.Context) error {
	if b.standings == nil {
		return nil
	}

	ratings, err := b.GetPlayerRatings(ctx)
	if err != nil {
		return err
	}

	entries := make([]standings.Entry, len(ratings))
	for i, v := range ratings {
		entries[i] = standingsEntry(v)
	}

	return b.standings.Replace(ctx, entries)
}

// Run runs the periodic tasks until done is closed.
func (b *Back) Run(wg *sync.WaitGroup, done <-chan struct{}) {
	defer wg.Done()

	ticker := time.NewTicker(standingsSyncInterval)
	defer ticker.Stop()

	b.runPeriodicTasks()
	for {
		select {
		case <-ticker.C:
			b.runPeriodicTasks()
		case <-done:
			b.log.Info("back: stopped periodic tasks")
			return
		}
	}
}

func (b *Back) runPeriodicTasks() {
	ctx, cancel := context.WithTimeout(context.Background(), standingsSyncInterval/2)
	defer cancel()

	if err := b.SyncStandings(ctx); err != nil {
		b.log.Errorw("unable to sync standings", "error", err)
	}
}
