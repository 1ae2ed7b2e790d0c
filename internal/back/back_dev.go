package back

import (
	"context"
	"fmt"

	"ladder/internal/util"
)

// DevPlayer is a player created by LoadFixtures.
type DevPlayer struct {
	Name string
	ID   util.UUIDAsBlob
}

// devPlayerNames is ordered from the strongest to the weakest fixture player.
var devPlayerNames = []string{ // nolint:gochecknoglobals
	"Darunia", "Nabooru", "Rauru", "Ruto", "Saria", "Zelda", "Impa",
}

// LoadFixtures creates a handful of rated players and plays a round robin
// between them through the regular workflow, the better ranked player always
// wins.
func (b *Back) LoadFixtures(ctx context.Context) ([]DevPlayer, error) {
	players := make([]DevPlayer, 0, len(devPlayerNames))
	for _, name := range devPlayerNames {
		p := DevPlayer{Name: name, ID: util.NewUUIDAsBlob()}
		if _, err := b.OnPlayerCreated(ctx, p.ID); err != nil {
			return nil, fmt.Errorf("unable to create %s: %w", name, err)
		}
		players = append(players, p)
	}

	for i := range players {
		for j := i + 1; j < len(players); j++ {
			winner, loser := players[i], players[j]
			m, err := b.Submit(ctx, Submission{
				WinnerID:   winner.ID,
				LoserID:    loser.ID,
				ClaimantID: winner.ID,
				Comment:    fmt.Sprintf("%s beat %s", winner.Name, loser.Name),
			})
			if err != nil {
				return nil, err
			}

			if _, _, err := b.Respond(ctx, m.ID, loser.ID, true); err != nil {
				return nil, err
			}
		}
	}

	// Leave one game waiting for confirmation.
	if _, err := b.Submit(ctx, Submission{
		WinnerID:   players[len(players)-1].ID,
		LoserID:    players[0].ID,
		ClaimantID: players[len(players)-1].ID,
		Comment:    "rematch",
	}); err != nil {
		return nil, err
	}

	return players, nil
}
