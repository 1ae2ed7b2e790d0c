// Package standings mirrors the exposure ordering of the ladder into a Redis
// sorted set so that leaderboards can be read without touching the database.
package standings

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Entry is a single player of the mirror, Rank starts at 1 and is only set
// on reads.
type Entry struct {
	Rank     int64   `json:"rank,omitempty"`
	PlayerID string  `json:"player_id"`
	Exposure float64 `json:"exposure"`
}

type Mirror struct {
	client *redis.Client
	key    string
}

// New wraps an existing client, key is the sorted set holding the standings.
func New(client *redis.Client, key string) (*Mirror, error) {
	if client == nil {
		return nil, errors.New("no redis client given")
	}
	if key == "" {
		return nil, errors.New("no standings key given")
	}

	return &Mirror{client: client, key: key}, nil
}

// Dial connects to addr and checks the connection.
func Dial(ctx context.Context, addr, password string, db int, key string) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return New(client, key)
}

func (m *Mirror) Close() error {
	return m.client.Close()
}

// Publish sets the exposure of every given player.
func (m *Mirror) Publish(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	if err := m.client.ZAdd(ctx, m.key, members(entries)...).Err(); err != nil {
		return fmt.Errorf("publishing standings: %w", err)
	}

	return nil
}

func (m *Mirror) Remove(ctx context.Context, playerID string) error {
	if err := m.client.ZRem(ctx, m.key, playerID).Err(); err != nil {
		return fmt.Errorf("removing player from standings: %w", err)
	}

	return nil
}

// Replace atomically swaps the whole mirror for entries.
func (m *Mirror) Replace(ctx context.Context, entries []Entry) error {
	_, err := m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, m.key)
		if len(entries) > 0 {
			pipe.ZAdd(ctx, m.key, members(entries)...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing standings: %w", err)
	}

	return nil
}

// Top returns the n best exposed players, best first. Ties are ordered by
// descending player ID, as Redis does.
func (m *Mirror) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}

	results, err := m.client.ZRevRangeWithScores(ctx, m.key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top standings: %w", err)
	}

	entries := make([]Entry, len(results))
	for i, v := range results {
		id, _ := v.Member.(string)
		entries[i] = Entry{
			Rank:     int64(i + 1),
			PlayerID: id,
			Exposure: v.Score,
		}
	}

	return entries, nil
}

// Rank returns the position of playerID, found is false if the player is not
// part of the mirror.
func (m *Mirror) Rank(ctx context.Context, playerID string) (_ Entry, found bool, _ error) {
	pipe := m.client.Pipeline()
	rankCmd := pipe.ZRevRank(ctx, m.key, playerID)
	scoreCmd := pipe.ZScore(ctx, m.key, playerID)
	if _, err := pipe.Exec(ctx); err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("getting player rank: %w", err)
	}

	return Entry{
		Rank:     rankCmd.Val() + 1,
		PlayerID: playerID,
		Exposure: scoreCmd.Val(),
	}, true, nil
}

func members(entries []Entry) []redis.Z {
	ret := make([]redis.Z, len(entries))
	for i, v := range entries {
		ret[i] = redis.Z{Score: v.Exposure, Member: v.PlayerID}
	}

	return ret
}
