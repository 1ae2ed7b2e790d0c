package back

import (
	"context"
	"encoding/json"
	"time"

	"ladder/internal/util"

	"github.com/jmoiron/sqlx"
)

const (
	// RecentFormWindow is how far back confirmed games count toward the
	// recent form.
	RecentFormWindow = 14 * 24 * time.Hour

	// RecentFormMaxEntries caps the outcomes kept per opponent, the oldest
	// games of the window are kept.
	RecentFormMaxEntries = 30
)

// Form is the chronological list of outcomes between two players from the
// point of view of the first one, 1 is a win and -1 a loss.
type Form []int

// String returns the compact JSON form, eg. [1,1,-1].
func (f Form) String() string {
	if f == nil {
		return "[]"
	}

	buf, err := json.Marshal([]int(f))
	if err != nil {
		return "[]"
	}

	return string(buf)
}

// RecentForm returns the outcomes of the recent confirmed games of playerID
// keyed by opponent. An empty opponentIDs means every opponent.
// Opponents without recent games are absent from the result.
func (b *Back) RecentForm(
	ctx context.Context,
	playerID util.UUIDAsBlob,
	opponentIDs []util.UUIDAsBlob,
) (map[util.UUIDAsBlob]Form, error) {
	since := b.now().Add(-RecentFormWindow)

	var matches []MatchRecord
	if err := b.transaction(ctx, func(tx *sqlx.Tx) (err error) {
		matches, err = getConfirmedMatchRecordsSince(tx, playerID, since)
		return err
	}); err != nil {
		return nil, err
	}

	return computeRecentForm(playerID, matches, opponentIDs), nil
}

// computeRecentForm expects matches in chronological order.
func computeRecentForm(
	playerID util.UUIDAsBlob,
	matches []MatchRecord,
	opponentIDs []util.UUIDAsBlob,
) map[util.UUIDAsBlob]Form {
	var wanted map[util.UUIDAsBlob]struct{}
	if len(opponentIDs) > 0 {
		wanted = make(map[util.UUIDAsBlob]struct{}, len(opponentIDs))
		for _, v := range opponentIDs {
			wanted[v] = struct{}{}
		}
	}

	ret := make(map[util.UUIDAsBlob]Form)
	for _, m := range matches {
		if m.State != MatchStateConfirmed || !m.HasPlayer(playerID) {
			continue
		}

		opponent := m.Opponent(playerID)
		if wanted != nil {
			if _, ok := wanted[opponent]; !ok {
				continue
			}
		}

		if len(ret[opponent]) >= RecentFormMaxEntries {
			continue
		}

		ret[opponent] = append(ret[opponent], m.OutcomeFor(playerID))
	}

	return ret
}
