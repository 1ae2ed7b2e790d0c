package rating

import (
	glicko "github.com/zelenin/go-glicko2"
)

// Glicko2 rates each confirmed game as its own single-game rating period.
// Volatility is not persisted, every period starts from the library base
// sigma.
type Glicko2 struct{}

func (Glicko2) Name() string {
	return "glicko2"
}

func (Glicko2) Default() Rating {
	return Rating{Mean: glicko.RATING_BASE_R, Uncertainty: glicko.RATING_BASE_RD}
}

// Expose is R - 2*RD, the lower bound of the ~95% interval.
func (Glicko2) Expose(r Rating) float64 {
	return r.Mean - 2*r.Uncertainty
}

func (Glicko2) Rate1v1(winner, loser Rating) (Rating, Rating) {
	newWinner := rateAgainst(winner, loser, true)
	newLoser := rateAgainst(loser, winner, false)

	return clampUncertainty(winner, newWinner), clampUncertainty(loser, newLoser)
}

// rateAgainst computes the posterior of r alone so that both sides of a game
// are derived from the priors and not from an already updated opponent.
func rateAgainst(r, opponent Rating, won bool) Rating {
	p := glicko.NewPlayer(glicko.NewRating(r.Mean, r.Uncertainty, glicko.RATING_BASE_SIGMA))
	o := glicko.NewPlayer(glicko.NewRating(opponent.Mean, opponent.Uncertainty, glicko.RATING_BASE_SIGMA))

	period := glicko.NewRatingPeriod()
	period.AddPlayer(p)
	period.AddPlayer(o)
	if won {
		period.AddMatch(p, o, glicko.MATCH_RESULT_WIN)
	} else {
		period.AddMatch(p, o, glicko.MATCH_RESULT_LOSS)
	}
	period.Calculate()

	return Rating{Mean: p.Rating().R(), Uncertainty: p.Rating().Rd()}
}
