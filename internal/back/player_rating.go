package back

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ladder/internal/rating"
	"ladder/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// PlayerRating is the stored skill estimate of a single player. Exposure is
// derived from Mean and Uncertainty and recomputed on every write.
type PlayerRating struct {
	PlayerID  util.UUIDAsBlob
	CreatedAt util.TimeAsTimestamp
	UpdatedAt util.TimeAsTimestamp

	Mean        float64
	Uncertainty float64
	Exposure    float64
}

func (r PlayerRating) Rating() rating.Rating {
	return rating.Rating{Mean: r.Mean, Uncertainty: r.Uncertainty}
}

func newPlayerRating(playerID util.UUIDAsBlob, algo rating.Algorithm, now time.Time) PlayerRating {
	r := PlayerRating{
		PlayerID:  playerID,
		CreatedAt: util.TimeAsTimestamp(now),
	}
	r.setRating(algo.Default(), algo, now)

	return r
}

func (r *PlayerRating) setRating(v rating.Rating, algo rating.Algorithm, now time.Time) {
	r.Mean = v.Mean
	r.Uncertainty = v.Uncertainty
	r.Exposure = algo.Expose(v)
	r.UpdatedAt = util.TimeAsTimestamp(now)
}

func (r *PlayerRating) insert(tx *sqlx.Tx) error {
	query, args, err := squirrel.Insert("PlayerRating").SetMap(squirrel.Eq{
		"PlayerID":    r.PlayerID,
		"CreatedAt":   r.CreatedAt,
		"UpdatedAt":   r.UpdatedAt,
		"Mean":        r.Mean,
		"Uncertainty": r.Uncertainty,
		"Exposure":    r.Exposure,
	}).ToSql()
	if err != nil {
		return err
	}

	_, err = tx.Exec(query, args...)
	return err
}

func (r *PlayerRating) update(tx *sqlx.Tx) error {
	query, args, err := squirrel.Update("PlayerRating").
		Set("UpdatedAt", r.UpdatedAt).
		Set("Mean", r.Mean).
		Set("Uncertainty", r.Uncertainty).
		Set("Exposure", r.Exposure).
		Where("PlayerRating.PlayerID = ?", r.PlayerID).
		ToSql()
	if err != nil {
		return err
	}

	res, err := tx.Exec(query, args...)
	if err != nil {
		return err
	}

	ok, err := util.AffectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return errRatingNotFound(r.PlayerID)
	}

	return nil
}

func errRatingNotFound(playerID util.UUIDAsBlob) error {
	return newError(ErrNotFound, nil, "player %s has no rating", playerID)
}

func getPlayerRating(tx *sqlx.Tx, playerID util.UUIDAsBlob) (PlayerRating, error) {
	var ret PlayerRating
	query := `SELECT * FROM PlayerRating WHERE PlayerRating.PlayerID = ? LIMIT 1`
	if err := tx.Get(&ret, query, playerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PlayerRating{}, errRatingNotFound(playerID)
		}
		return PlayerRating{}, err
	}

	return ret, nil
}

func getPlayerRatings(tx *sqlx.Tx) ([]PlayerRating, error) {
	var ret []PlayerRating
	query := `SELECT * FROM PlayerRating ORDER BY PlayerRating.Exposure DESC, PlayerRating.PlayerID ASC`
	if err := tx.Select(&ret, query); err != nil {
		return nil, err
	}

	return ret, nil
}

// CreatePlayerRating stores the default rating for a new player.
func (b *Back) CreatePlayerRating(ctx context.Context, playerID util.UUIDAsBlob) (PlayerRating, error) {
	if playerID.IsZero() {
		return PlayerRating{}, newError(ErrInvalidInput, nil, "a player ID is required")
	}

	unlock := b.playerLocks.lock(playerID)
	defer unlock()

	var ret PlayerRating
	if err := b.transaction(ctx, func(tx *sqlx.Tx) error {
		_, err := getPlayerRating(tx, playerID)
		if err == nil {
			return newError(ErrAlreadyExists, nil, "player %s already has a rating", playerID)
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		ret = newPlayerRating(playerID, b.algo, b.now())
		return ret.insert(tx)
	}); err != nil {
		return PlayerRating{}, err
	}

	b.log.Infow("created player rating", "player", playerID, "mean", ret.Mean, "uncertainty", ret.Uncertainty)

	return ret, nil
}

func (b *Back) GetPlayerRating(ctx context.Context, playerID util.UUIDAsBlob) (PlayerRating, error) {
	var ret PlayerRating
	if err := b.transaction(ctx, func(tx *sqlx.Tx) (err error) {
		ret, err = getPlayerRating(tx, playerID)
		return err
	}); err != nil {
		return PlayerRating{}, err
	}

	return ret, nil
}

func (b *Back) GetPlayerRatings(ctx context.Context) ([]PlayerRating, error) {
	var ret []PlayerRating
	if err := b.transaction(ctx, func(tx *sqlx.Tx) (err error) {
		ret, err = getPlayerRatings(tx)
		return err
	}); err != nil {
		return nil, err
	}

	return ret, nil
}

// DeletePlayerRating removes the rating of a player along with every match
// still waiting for confirmation that involves them. Confirmed matches are
// history and stay.
func (b *Back) DeletePlayerRating(ctx context.Context, playerID util.UUIDAsBlob) error {
	unlock := b.playerLocks.lock(playerID)
	defer unlock()

	var pending int64
	if err := b.transaction(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.Exec(`DELETE FROM PlayerRating WHERE PlayerRating.PlayerID = ?`, playerID)
		if err != nil {
			return err
		}

		ok, err := util.AffectedOne(res)
		if err != nil {
			return err
		}
		if !ok {
			return errRatingNotFound(playerID)
		}

		pending, err = deletePendingMatchRecordsOf(tx, playerID)
		return err
	}); err != nil {
		return err
	}

	b.log.Infow("deleted player rating", "player", playerID, "pending_matches_removed", pending)

	return nil
}
