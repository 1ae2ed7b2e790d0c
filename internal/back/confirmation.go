package back

import (
	"context"
	"errors"

	"ladder/internal/util"

	"github.com/jmoiron/sqlx"
)

// MaxSeriesLength caps how many games a single series submission can report.
const MaxSeriesLength = 50

type Submission struct {
	WinnerID   util.UUIDAsBlob
	LoserID    util.UUIDAsBlob
	ClaimantID util.UUIDAsBlob
	Comment    string
}

type Pair struct {
	WinnerID util.UUIDAsBlob
	LoserID  util.UUIDAsBlob
}

// BatchResult is the outcome of a single pair of a batch submission, Err is
// nil when Match was stored.
type BatchResult struct {
	Pair  Pair
	Match MatchRecord
	Err   error
}

type BatchResults []BatchResult

func (r BatchResults) Submitted() []MatchRecord {
	ret := make([]MatchRecord, 0, len(r))
	for _, v := range r {
		if v.Err == nil {
			ret = append(ret, v.Match)
		}
	}

	return ret
}

func (r BatchResults) Failed() int {
	var n int
	for _, v := range r {
		if v.Err != nil {
			n++
		}
	}

	return n
}

// Submit stores a new Pending record claimed by s.ClaimantID. No rating is
// touched until the other player confirms it.
func (b *Back) Submit(ctx context.Context, s Submission) (MatchRecord, error) {
	m, err := NewMatchRecord(s.WinnerID, s.LoserID, s.ClaimantID, b.now())
	if err != nil {
		return MatchRecord{}, err
	}
	if err := m.setComment(s.Comment); err != nil {
		return MatchRecord{}, err
	}

	if err := b.transaction(ctx, func(tx *sqlx.Tx) error {
		if err := ensureRated(tx, m.WinnerID, m.LoserID); err != nil {
			return err
		}

		return m.insert(tx)
	}); err != nil {
		return MatchRecord{}, err
	}

	b.log.Infow(
		"game submitted",
		"match", m.ID,
		"winner", m.WinnerID,
		"loser", m.LoserID,
		"claimant", m.ClaimantID,
	)

	return m, nil
}

// SubmitBatch submits each pair independently, a failing pair does not
// prevent the others from being stored.
func (b *Back) SubmitBatch(ctx context.Context, claimantID util.UUIDAsBlob, pairs []Pair) (BatchResults, error) {
	if len(pairs) == 0 {
		return nil, newError(ErrInvalidInput, nil, "no games to report")
	}

	if err := b.transaction(ctx, func(tx *sqlx.Tx) error {
		return ensureRated(tx, claimantID)
	}); err != nil {
		return nil, err
	}

	ret := make(BatchResults, 0, len(pairs))
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return ret, err
		}

		m, err := b.Submit(ctx, Submission{
			WinnerID:   p.WinnerID,
			LoserID:    p.LoserID,
			ClaimantID: claimantID,
		})
		ret = append(ret, BatchResult{Pair: p, Match: m, Err: err})
	}

	if n := ret.Failed(); n > 0 {
		b.log.Warnw("some games of a batch were refused", "claimant", claimantID, "failed", n, "total", len(ret))
	}

	return ret, nil
}

// SubmitSeries reports a set of games played by claimantID against a single
// opponent.
func (b *Back) SubmitSeries(
	ctx context.Context,
	claimantID, opponentID util.UUIDAsBlob,
	wins, losses int,
) (BatchResults, error) {
	if wins < 0 || losses < 0 {
		return nil, newError(ErrInvalidInput, nil, "wins and losses cannot be negative")
	}
	if wins+losses == 0 {
		return nil, newError(ErrInvalidInput, nil, "no games to report")
	}
	if wins+losses > MaxSeriesLength {
		return nil, newError(ErrInvalidInput, nil, "a series is limited to %d games", MaxSeriesLength)
	}

	pairs := make([]Pair, 0, wins+losses)
	for i := 0; i < wins; i++ {
		pairs = append(pairs, Pair{WinnerID: claimantID, LoserID: opponentID})
	}
	for i := 0; i < losses; i++ {
		pairs = append(pairs, Pair{WinnerID: opponentID, LoserID: claimantID})
	}

	return b.SubmitBatch(ctx, claimantID, pairs)
}

// Respond confirms (accept) or rejects a Pending record on behalf of the
// responder. On confirmation both ratings are updated atomically with the
// state transition. accepted tells whether the response was applied and
// confirmed whether ratings changed.
func (b *Back) Respond(
	ctx context.Context,
	matchID, responderID util.UUIDAsBlob,
	accept bool,
) (accepted bool, confirmed bool, err error) {
	defer func() {
		if err != nil {
			b.log.Warnw(
				"unable to record game response",
				"match", matchID,
				"responder", responderID,
				"accept", accept,
				"kind", KindOf(err).Error(),
				"error", err,
			)
		}
	}()

	unlockMatch := b.matchLocks.lock(matchID)
	defer unlockMatch()

	var m MatchRecord
	if err := b.transaction(ctx, func(tx *sqlx.Tx) (err error) {
		m, err = getMatchRecordByID(tx, matchID)
		return err
	}); err != nil {
		if errors.Is(err, ErrNotFound) {
			// Rejected records are deleted, a record that is gone cannot be
			// Pending anymore.
			return false, false, errNotPending(matchID, err)
		}
		return false, false, err
	}

	if err := m.checkResponder(responderID); err != nil {
		return false, false, err
	}
	if m.State != MatchStatePending {
		return false, false, errNotPending(m.ID, nil)
	}

	if !accept {
		if err := b.transaction(ctx, m.reject); err != nil {
			return false, false, err
		}

		b.log.Infow("game rejected", "match", m.ID, "responder", responderID)
		return true, false, nil
	}

	unlockPlayers := b.playerLocks.lock(m.WinnerID, m.LoserID)
	defer unlockPlayers()

	var winner, loser PlayerRating
	if err := b.transaction(ctx, func(tx *sqlx.Tx) (err error) {
		if err := m.confirm(tx, b.now()); err != nil {
			return err
		}

		winner, loser, err = b.applyOutcome(tx, m.WinnerID, m.LoserID)
		return err
	}); err != nil {
		return false, false, err
	}

	b.log.Infow(
		"game confirmed",
		"match", m.ID,
		"winner", m.WinnerID,
		"winner_rating", winner.Rating().String(),
		"loser", m.LoserID,
		"loser_rating", loser.Rating().String(),
	)
	b.publishStandings(ctx, winner, loser)

	return true, true, nil
}

func (b *Back) GetMatchRecord(ctx context.Context, id util.UUIDAsBlob) (MatchRecord, error) {
	var ret MatchRecord
	if err := b.transaction(ctx, func(tx *sqlx.Tx) (err error) {
		ret, err = getMatchRecordByID(tx, id)
		return err
	}); err != nil {
		return MatchRecord{}, err
	}

	return ret, nil
}

// GetPendingConfirmations returns the games playerID was reported in by
// someone else and still has to respond to.
func (b *Back) GetPendingConfirmations(ctx context.Context, playerID util.UUIDAsBlob) ([]MatchRecord, error) {
	var ret []MatchRecord
	if err := b.transaction(ctx, func(tx *sqlx.Tx) (err error) {
		ret, err = getPendingMatchRecordsFor(tx, playerID)
		return err
	}); err != nil {
		return nil, err
	}

	return ret, nil
}

// GetAwaitingConfirmation returns the games playerID reported that their
// opponents did not respond to yet.
func (b *Back) GetAwaitingConfirmation(ctx context.Context, playerID util.UUIDAsBlob) ([]MatchRecord, error) {
	var ret []MatchRecord
	if err := b.transaction(ctx, func(tx *sqlx.Tx) (err error) {
		ret, err = getAwaitingMatchRecordsOf(tx, playerID)
		return err
	}); err != nil {
		return nil, err
	}

	return ret, nil
}

func ensureRated(tx *sqlx.Tx, playerIDs ...util.UUIDAsBlob) error {
	for _, id := range playerIDs {
		if _, err := getPlayerRating(tx, id); err != nil {
			if errors.Is(err, ErrNotFound) {
				return newError(ErrInvalidInput, err, "player %s is not registered on the ladder", id)
			}
			return err
		}
	}

	return nil
}
