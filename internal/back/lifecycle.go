package back

import (
	"context"

	"ladder/internal/util"
)

// OnPlayerCreated must be called exactly once when a player account is
// created.
func (b *Back) OnPlayerCreated(ctx context.Context, playerID util.UUIDAsBlob) (PlayerRating, error) {
	r, err := b.CreatePlayerRating(ctx, playerID)
	if err != nil {
		return PlayerRating{}, err
	}

	b.publishStandings(ctx, r)
	return r, nil
}

// OnPlayerDeleted must be called when a player account is deleted, their
// pending games go with them.
func (b *Back) OnPlayerDeleted(ctx context.Context, playerID util.UUIDAsBlob) error {
	if err := b.DeletePlayerRating(ctx, playerID); err != nil {
		return err
	}

	b.removeStandings(ctx, playerID.String())
	return nil
}
