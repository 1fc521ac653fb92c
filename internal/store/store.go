// Package store implements sqlx repositories for users, campaigns,
// participations, invitations, characters and items. Queries are written
// with '?' placeholders and rebound for the active driver.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/tabletop/internal/apperr"
)

// ErrNotConsumable is returned by ConsumeAndJoin when the conditional update matched no row.
var ErrNotConsumable = errors.New("store: invitation not consumable")

// Store groups the repositories over one database handle.
type Store struct {
	db    *sqlx.DB
	now   func() time.Time
	newID func() uuid.UUID

	Users          *Users
	Campaigns      *Campaigns
	Participations *Participations
	Invitations    *Invitations
	Characters     *Characters
	Items          *Items
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the UUID source for every uuid primary key.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New builds a Store over db.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Users = &Users{s: s}
	s.Campaigns = &Campaigns{s: s}
	s.Participations = &Participations{s: s}
	s.Invitations = &Invitations{s: s}
	s.Characters = &Characters{s: s}
	s.Items = &Items{s: s}
	return s
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) q(query string) string { return s.db.Rebind(query) }

func (s *Store) stamp() time.Time { return s.now().UTC().Truncate(time.Microsecond) }

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// mapErr turns sql.ErrNoRows into a NotFound domain error and wraps everything else.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
