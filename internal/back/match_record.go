package back

import (
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"

	"ladder/internal/util"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"gopkg.in/guregu/null.v4"
)

type MatchState int

const ( // this is stored in DB, don't change values
	MatchStatePending   MatchState = 0
	MatchStateConfirmed MatchState = 1
	MatchStateRejected  MatchState = 2 // never stored, rejected records are deleted
)

func (s MatchState) String() string {
	switch s {
	case MatchStatePending:
		return "pending"
	case MatchStateConfirmed:
		return "confirmed"
	case MatchStateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s MatchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const MatchCommentMaxLen = 255

// MatchRecord is a single game claimed by one of its two players. Only the
// player who did not submit it (the responder) may confirm or reject it.
type MatchRecord struct {
	ID          util.UUIDAsBlob
	CreatedAt   util.TimeAsTimestamp
	WinnerID    util.UUIDAsBlob
	LoserID     util.UUIDAsBlob
	ClaimantID  util.UUIDAsBlob
	State       MatchState
	Comment     null.String
	ConfirmedAt util.NullTimeAsTimestamp

	// Seq is the insertion order, it orders games created within the same
	// second. It is assigned by insert.
	Seq int64
}

func NewMatchRecord(winnerID, loserID, claimantID util.UUIDAsBlob, now time.Time) (MatchRecord, error) {
	if winnerID.IsZero() || loserID.IsZero() || claimantID.IsZero() {
		return MatchRecord{}, newError(ErrInvalidInput, nil, "both players are required")
	}
	if winnerID == loserID {
		return MatchRecord{}, newError(ErrInvalidInput, nil, "a player cannot play against themselves")
	}
	if claimantID != winnerID && claimantID != loserID {
		return MatchRecord{}, newError(ErrNotAuthorized, nil, "you can only report games you played in")
	}

	return MatchRecord{
		ID:         util.NewUUIDAsBlob(),
		CreatedAt:  util.TimeAsTimestamp(now),
		WinnerID:   winnerID,
		LoserID:    loserID,
		ClaimantID: claimantID,
		State:      MatchStatePending,
	}, nil
}

func (m *MatchRecord) setComment(comment string) error {
	if utf8.RuneCountInString(comment) > MatchCommentMaxLen {
		return newError(ErrInvalidInput, nil, "comments are limited to %d characters", MatchCommentMaxLen)
	}

	m.Comment = null.NewString(comment, comment != "")
	return nil
}

func (m MatchRecord) HasPlayer(playerID util.UUIDAsBlob) bool {
	return m.WinnerID == playerID || m.LoserID == playerID
}

// Responder is the player expected to confirm or reject the record.
func (m MatchRecord) Responder() util.UUIDAsBlob {
	if m.ClaimantID == m.WinnerID {
		return m.LoserID
	}

	return m.WinnerID
}

// Opponent returns the other player of the game, playerID must have played it.
func (m MatchRecord) Opponent(playerID util.UUIDAsBlob) util.UUIDAsBlob {
	if m.WinnerID == playerID {
		return m.LoserID
	}

	return m.WinnerID
}

// OutcomeFor returns 1 if playerID won the game, -1 otherwise.
func (m MatchRecord) OutcomeFor(playerID util.UUIDAsBlob) int {
	if m.WinnerID == playerID {
		return 1
	}

	return -1
}

func (m MatchRecord) checkResponder(playerID util.UUIDAsBlob) error {
	if !m.HasPlayer(playerID) {
		return newError(ErrNotAuthorized, nil, "you did not play in this game")
	}
	if m.ClaimantID == playerID {
		return newError(ErrNotAuthorized, nil, "you cannot respond to a game you reported yourself")
	}

	return nil
}

func errNotPending(id util.UUIDAsBlob, cause error) error {
	return newError(ErrInvalidState, cause, "game %s is no longer awaiting confirmation", id)
}

func (m *MatchRecord) insert(tx *sqlx.Tx) error {
	var seq int64
	if err := tx.Get(&seq, `SELECT COALESCE(MAX(MatchRecord.Seq), 0) + 1 FROM MatchRecord`); err != nil {
		return err
	}

	query, args, err := squirrel.Insert("MatchRecord").SetMap(squirrel.Eq{
		"ID":          m.ID,
		"Seq":         seq,
		"CreatedAt":   m.CreatedAt,
		"WinnerID":    m.WinnerID,
		"LoserID":     m.LoserID,
		"ClaimantID":  m.ClaimantID,
		"State":       m.State,
		"Comment":     m.Comment,
		"ConfirmedAt": m.ConfirmedAt,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return err
	}

	m.Seq = seq
	return nil
}

// confirm transitions a Pending record to Confirmed, it fails with
// ErrInvalidState if another transition already happened.
func (m *MatchRecord) confirm(tx *sqlx.Tx, now time.Time) error {
	confirmedAt := util.NewNullTimeAsTimestamp(now)
	query, args, err := squirrel.Update("MatchRecord").
		Set("State", MatchStateConfirmed).
		Set("ConfirmedAt", confirmedAt).
		Where("MatchRecord.ID = ? AND MatchRecord.State = ?", m.ID, MatchStatePending).
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
		return errNotPending(m.ID, nil)
	}

	m.State = MatchStateConfirmed
	m.ConfirmedAt = confirmedAt

	return nil
}

// reject deletes a Pending record, it fails with ErrInvalidState if another
// transition already happened.
func (m *MatchRecord) reject(tx *sqlx.Tx) error {
	res, err := tx.Exec(
		`DELETE FROM MatchRecord WHERE MatchRecord.ID = ? AND MatchRecord.State = ?`,
		m.ID, MatchStatePending,
	)
	if err != nil {
		return err
	}

	ok, err := util.AffectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return errNotPending(m.ID, nil)
	}

	m.State = MatchStateRejected
	return nil
}

func getMatchRecordByID(tx *sqlx.Tx, id util.UUIDAsBlob) (MatchRecord, error) {
	var ret MatchRecord
	query := `SELECT * FROM MatchRecord WHERE MatchRecord.ID = ? LIMIT 1`
	if err := tx.Get(&ret, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MatchRecord{}, newError(ErrNotFound, nil, "game %s does not exist", id)
		}
		return MatchRecord{}, err
	}

	return ret, nil
}

// getPendingMatchRecordsFor returns the Pending records playerID has to
// respond to, oldest first.
func getPendingMatchRecordsFor(tx *sqlx.Tx, playerID util.UUIDAsBlob) ([]MatchRecord, error) {
	var ret []MatchRecord
	query := `
    SELECT * FROM MatchRecord
    WHERE MatchRecord.State = ?
        AND (MatchRecord.WinnerID = ? OR MatchRecord.LoserID = ?)
        AND MatchRecord.ClaimantID != ?
    ORDER BY MatchRecord.CreatedAt ASC, MatchRecord.Seq ASC`
	if err := tx.Select(&ret, query, MatchStatePending, playerID, playerID, playerID); err != nil {
		return nil, err
	}

	return ret, nil
}

// getAwaitingMatchRecordsOf returns the Pending records submitted by
// playerID, oldest first.
func getAwaitingMatchRecordsOf(tx *sqlx.Tx, playerID util.UUIDAsBlob) ([]MatchRecord, error) {
	var ret []MatchRecord
	query := `
    SELECT * FROM MatchRecord
    WHERE MatchRecord.State = ? AND MatchRecord.ClaimantID = ?
    ORDER BY MatchRecord.CreatedAt ASC, MatchRecord.Seq ASC`
	if err := tx.Select(&ret, query, MatchStatePending, playerID); err != nil {
		return nil, err
	}

	return ret, nil
}

// getConfirmedMatchRecordsSince returns the Confirmed games of playerID
// created at or after since, oldest first.
func getConfirmedMatchRecordsSince(tx *sqlx.Tx, playerID util.UUIDAsBlob, since time.Time) ([]MatchRecord, error) {
	var ret []MatchRecord
	query := `
    SELECT * FROM MatchRecord
    WHERE MatchRecord.State = ?
        AND (MatchRecord.WinnerID = ? OR MatchRecord.LoserID = ?)
        AND MatchRecord.CreatedAt >= ?
    ORDER BY MatchRecord.CreatedAt ASC, MatchRecord.Seq ASC`
	if err := tx.Select(
		&ret, query,
		MatchStateConfirmed, playerID, playerID, util.TimeAsTimestamp(since),
	); err != nil {
		return nil, err
	}

	return ret, nil
}

func deletePendingMatchRecordsOf(tx *sqlx.Tx, playerID util.UUIDAsBlob) (int64, error) {
	res, err := tx.Exec(`
    DELETE FROM MatchRecord
    WHERE MatchRecord.State = ?
        AND (MatchRecord.WinnerID = ? OR MatchRecord.LoserID = ?)`,
		MatchStatePending, playerID, playerID,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
