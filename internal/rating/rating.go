// Package rating implements the two-player skill updates used by the ladder.
//
// A skill is described by a Gaussian belief: Mean is the center of the
// estimate and Uncertainty its standard deviation. Every Algorithm is an
// immutable value: build it once and share it, no global environment is kept.
package rating

import (
	"fmt"
	"math"
)

// Rating is a Gaussian skill belief.
type Rating struct {
	Mean        float64
	Uncertainty float64
}

func (r Rating) String() string {
	return fmt.Sprintf("%.3f±%.3f", r.Mean, r.Uncertainty)
}

// Algorithm computes two-player updates.
type Algorithm interface {
	// Name is the identifier used in configuration.
	Name() string
	// Default is the rating given to new players.
	Default() Rating
	// Expose returns the conservative score used for ordering players.
	Expose(Rating) float64
	// Rate1v1 returns the posterior ratings of the winner and the loser.
	Rate1v1(winner, loser Rating) (newWinner, newLoser Rating)
}

// Validate checks that r is a usable belief.
func Validate(r Rating) error {
	if math.IsNaN(r.Mean) || math.IsInf(r.Mean, 0) {
		return fmt.Errorf("invalid mean %f", r.Mean)
	}

	if !(r.Uncertainty > 0) || math.IsInf(r.Uncertainty, 0) {
		return fmt.Errorf("invalid uncertainty %f", r.Uncertainty)
	}

	return nil
}

// clampUncertainty keeps the posterior uncertainty from rising above the
// prior one. Dynamics factors inflate the prior before the observation and
// can overtake the information gained on long-converged players.
func clampUncertainty(prior, posterior Rating) Rating {
	if posterior.Uncertainty > prior.Uncertainty {
		posterior.Uncertainty = prior.Uncertainty
	}

	return posterior
}
