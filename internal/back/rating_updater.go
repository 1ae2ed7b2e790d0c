package back

import (
	"fmt"

	"ladder/internal/rating"
	"ladder/internal/util"

	"github.com/jmoiron/sqlx"
)

// updateRatings computes the posterior ratings of a confirmed game. It only
// depends on both priors and the configured algorithm.
func (b *Back) updateRatings(winner, loser PlayerRating) (PlayerRating, PlayerRating, error) {
	if err := rating.Validate(winner.Rating()); err != nil {
		return PlayerRating{}, PlayerRating{}, fmt.Errorf("winner %s: %w", winner.PlayerID, err)
	}
	if err := rating.Validate(loser.Rating()); err != nil {
		return PlayerRating{}, PlayerRating{}, fmt.Errorf("loser %s: %w", loser.PlayerID, err)
	}

	w, l := b.algo.Rate1v1(winner.Rating(), loser.Rating())
	if err := rating.Validate(w); err != nil {
		return PlayerRating{}, PlayerRating{}, fmt.Errorf("%s produced an invalid winner rating: %w", b.algo.Name(), err)
	}
	if err := rating.Validate(l); err != nil {
		return PlayerRating{}, PlayerRating{}, fmt.Errorf("%s produced an invalid loser rating: %w", b.algo.Name(), err)
	}

	now := b.now()
	winner.setRating(w, b.algo, now)
	loser.setRating(l, b.algo, now)

	return winner, loser, nil
}

// applyOutcome rates a confirmed game and writes both ratings in tx, either
// both writes happen or the transaction must be rolled back.
// The caller holds the locks of both players.
func (b *Back) applyOutcome(tx *sqlx.Tx, winnerID, loserID util.UUIDAsBlob) (PlayerRating, PlayerRating, error) {
	winner, err := getPlayerRating(tx, winnerID)
	if err != nil {
		return PlayerRating{}, PlayerRating{}, err
	}
	loser, err := getPlayerRating(tx, loserID)
	if err != nil {
		return PlayerRating{}, PlayerRating{}, err
	}

	newWinner, newLoser, err := b.updateRatings(winner, loser)
	if err != nil {
		return PlayerRating{}, PlayerRating{}, newError(ErrPersistence, err, "unable to compute new ratings")
	}

	if err := newWinner.update(tx); err != nil {
		return PlayerRating{}, PlayerRating{}, fmt.Errorf("unable to write winner rating: %w", err)
	}
	if err := newLoser.update(tx); err != nil {
		return PlayerRating{}, PlayerRating{}, fmt.Errorf("unable to write loser rating: %w", err)
	}

	b.log.Debugw(
		"rated game",
		"winner", winnerID,
		"winner_before", winner.Rating().String(),
		"winner_after", newWinner.Rating().String(),
		"loser", loserID,
		"loser_before", loser.Rating().String(),
		"loser_after", newLoser.Rating().String(),
	)

	return newWinner, newLoser, nil
}
