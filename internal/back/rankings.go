package back

import (
	"context"

	"ladder/internal/util"

	"github.com/jmoiron/sqlx"
)

// RankingEntry is a rated player along with their confirmed totals.
type RankingEntry struct {
	PlayerID    util.UUIDAsBlob
	Mean        float64
	Uncertainty float64
	Exposure    float64
	Wins        int
	Losses      int
}

// GetRankings returns every rated player ordered by descending exposure, ties
// are ordered by player ID.
func (b *Back) GetRankings(ctx context.Context) ([]RankingEntry, error) {
	var ret []RankingEntry
	if err := b.transaction(ctx, func(tx *sqlx.Tx) (err error) {
		ret, err = getRankings(tx)
		return err
	}); err != nil {
		return nil, err
	}

	return ret, nil
}

func getRankings(tx *sqlx.Tx) ([]RankingEntry, error) {
	ret := []RankingEntry{}
	query := `
    SELECT
        PlayerRating.PlayerID AS PlayerID,
        PlayerRating.Mean AS Mean,
        PlayerRating.Uncertainty AS Uncertainty,
        PlayerRating.Exposure AS Exposure,
        (
            SELECT COUNT(*) FROM MatchRecord
            WHERE MatchRecord.WinnerID = PlayerRating.PlayerID AND MatchRecord.State = ?
        ) AS Wins,
        (
            SELECT COUNT(*) FROM MatchRecord
            WHERE MatchRecord.LoserID = PlayerRating.PlayerID AND MatchRecord.State = ?
        ) AS Losses
    FROM PlayerRating
    ORDER BY PlayerRating.Exposure DESC, PlayerRating.PlayerID ASC`
	if err := tx.Select(&ret, query, MatchStateConfirmed, MatchStateConfirmed); err != nil {
		return nil, err
	}

	return ret, nil
}
