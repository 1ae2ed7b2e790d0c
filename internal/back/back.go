package back

import (
	"context"
	"errors"
	"time"

	"ladder/internal/rating"
	"ladder/internal/util"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Back owns the ratings and the match confirmation workflow. Every exported
// method is safe for concurrent use.
type Back struct {
	db   *sqlx.DB
	algo rating.Algorithm
	log  *zap.SugaredLogger
	now  func() time.Time

	standings StandingsSink

	matchLocks  *keyLocks
	playerLocks *keyLocks
}

type Option func(*Back)

func WithLogger(l *zap.SugaredLogger) Option {
	return func(b *Back) { b.log = l }
}

// WithStandings mirrors every rating change to s.
func WithStandings(s StandingsSink) Option {
	return func(b *Back) { b.standings = s }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Back) { b.now = now }
}

func New(sqlDriver string, sqlDSN string, algo rating.Algorithm, opts ...Option) (*Back, error) {
	// Why even bother converting names? A single greppable string across all
	// your source code is better than any odd conversion scheme you could ever
	// come up with.
	// HACK: This is global but putting this in init() makes test ugly.
	// As only the Back relies on the DB, this seems like an okay-ish place.
	sqlx.NameMapper = func(v string) string { return v }

	if algo == nil {
		return nil, errors.New("no rating algorithm given")
	}

	db, err := sqlx.Connect(sqlDriver, sqlDSN)
	if err != nil {
		return nil, err
	}

	if sqlDriver == "sqlite3" {
		// SQLite has a single writer, queue transactions here instead of
		// failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	b := &Back{
		db:          db,
		algo:        algo,
		log:         zap.NewNop().Sugar(),
		now:         time.Now,
		matchLocks:  newKeyLocks(),
		playerLocks: newKeyLocks(),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

func (b *Back) Close() error {
	return b.db.Close()
}

// Algorithm returns the rating algorithm shared by every computation.
func (b *Back) Algorithm() rating.Algorithm {
	return b.algo
}

// transaction runs cb in a transaction, errors that are not workflow
// errors are reported as persistence failures.
// Never take a lock from keyLocks inside cb, the connection pool may be a
// single connection.
func (b *Back) transaction(ctx context.Context, cb util.TransactionCallback) error {
	if err := util.Transaction(ctx, b.db, cb); err != nil {
		return asPersistence(err)
	}

	return nil
}
