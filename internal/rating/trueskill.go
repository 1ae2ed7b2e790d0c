package rating

import (
	"errors"
	"math"
)

// Reference TrueSkill constants.
const (
	TrueSkillMu              = 25.0
	TrueSkillSigma           = TrueSkillMu / 3
	TrueSkillBeta            = TrueSkillSigma / 2
	TrueSkillTau             = TrueSkillSigma / 100
	TrueSkillDrawProbability = 0.10
)

// TrueSkill is the two-player TrueSkill update (Herbrich, Minka, Graepel,
// 2007) with the closed form approximation of the truncated Gaussian.
type TrueSkill struct {
	Mu              float64 // initial mean
	Sigma           float64 // initial uncertainty
	Beta            float64 // performance noise, distance giving ~76% win chance
	Tau             float64 // dynamics added to the prior before each game
	DrawProbability float64
}

// DefaultTrueSkill returns the reference environment.
func DefaultTrueSkill() TrueSkill {
	return TrueSkill{
		Mu:              TrueSkillMu,
		Sigma:           TrueSkillSigma,
		Beta:            TrueSkillBeta,
		Tau:             TrueSkillTau,
		DrawProbability: TrueSkillDrawProbability,
	}
}

// Check validates the environment parameters.
func (ts TrueSkill) Check() error {
	switch {
	case !(ts.Sigma > 0):
		return errors.New("trueskill: sigma must be > 0")
	case !(ts.Beta > 0):
		return errors.New("trueskill: beta must be > 0")
	case ts.Tau < 0:
		return errors.New("trueskill: tau must be >= 0")
	case ts.DrawProbability < 0 || ts.DrawProbability >= 1:
		return errors.New("trueskill: draw probability must be in [0, 1)")
	}

	return nil
}

func (ts TrueSkill) Name() string {
	return "trueskill"
}

func (ts TrueSkill) Default() Rating {
	return Rating{Mean: ts.Mu, Uncertainty: ts.Sigma}
}

// Expose is mu - k*sigma where k = Mu/Sigma, so a new player is exposed at 0.
func (ts TrueSkill) Expose(r Rating) float64 {
	k := ts.Mu / ts.Sigma
	return r.Mean - k*r.Uncertainty
}

func (ts TrueSkill) Rate1v1(winner, loser Rating) (Rating, Rating) {
	winnerVar := winner.Uncertainty*winner.Uncertainty + ts.Tau*ts.Tau
	loserVar := loser.Uncertainty*loser.Uncertainty + ts.Tau*ts.Tau

	c2 := 2*ts.Beta*ts.Beta + winnerVar + loserVar
	c := math.Sqrt(c2)

	t := (winner.Mean - loser.Mean) / c
	e := ts.drawMargin() / c
	v := vWin(t, e)
	w := wWin(t, e)

	newWinner := Rating{
		Mean:        winner.Mean + winnerVar/c*v,
		Uncertainty: math.Sqrt(winnerVar * math.Max(1-winnerVar/c2*w, minVarianceFactor)),
	}
	newLoser := Rating{
		Mean:        loser.Mean - loserVar/c*v,
		Uncertainty: math.Sqrt(loserVar * math.Max(1-loserVar/c2*w, minVarianceFactor)),
	}

	return clampUncertainty(winner, newWinner), clampUncertainty(loser, newLoser)
}

// Keeps the posterior variance strictly positive when w rounds to 1.
const minVarianceFactor = 0.0001

// drawMargin is the performance difference under which a game is a draw.
func (ts TrueSkill) drawMargin() float64 {
	return normPPF((ts.DrawProbability+1)/2) * math.Sqrt2 * ts.Beta
}

// vWin is the additive mean correction for a truncated Gaussian.
func vWin(t, e float64) float64 {
	x := t - e
	denom := normCDF(x)
	if denom < 1e-161 {
		return -x
	}

	return normPDF(x) / denom
}

// wWin is the multiplicative variance correction for a truncated Gaussian.
func wWin(t, e float64) float64 {
	x := t - e
	denom := normCDF(x)
	if denom < 1e-161 {
		if x < 0 {
			return 1
		}
		return 0
	}

	v := vWin(t, e)
	return v * (v + x)
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func normCDF(x float64) float64 {
	return math.Erfc(-x/math.Sqrt2) / 2
}

func normPPF(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}
