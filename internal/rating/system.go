package rating

import (
	"fmt"
)

// New returns the Algorithm registered under name. The TrueSkill environment
// is only used when name selects TrueSkill.
func New(name string, ts TrueSkill) (Algorithm, error) {
	switch name {
	case "", "trueskill":
		if err := ts.Check(); err != nil {
			return nil, err
		}
		return ts, nil
	case "glicko2":
		return Glicko2{}, nil
	default:
		return nil, fmt.Errorf("unknown rating system %q", name)
	}
}
