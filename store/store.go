// Package store implements the account record collection on Bun. Records are
// keyed one-to-one by account identifier; username uniqueness is enforced by
// a reservation row whose primary key derives from the username value.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	authflow "github.com/goliatone/go-authflow"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// AccountRecords implements authflow.Records over a Bun database.
type AccountRecords struct {
	db  *bun.DB
	now func() time.Time
}

var _ authflow.Records = (*AccountRecords)(nil)

// AccountRecordsOption configures the store.
type AccountRecordsOption func(*AccountRecords)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) AccountRecordsOption {
	return func(s *AccountRecords) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewAccountRecords creates a record store over the given database.
func NewAccountRecords(db *bun.DB, opts ...AccountRecordsOption) *AccountRecords {
	s := &AccountRecords{
		db:  db,
		now: time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Get performs a point read by account identifier.
func (s *AccountRecords) Get(ctx context.Context, id string) (*authflow.AccountRecord, error) {
	record := &authflow.AccountRecord{}

	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, goerrors.Wrap(authflow.ErrRecordNotFound, goerrors.CategoryNotFound, "record read missed").
				WithMetadata(map[string]any{
					"id": id,
				})
		}
		return nil, storeFailure(err, "record read failed")
	}

	return record, nil
}

// Put writes the full record. Existing rows keep their username: that field
// is written only through SetUsername, after the uniqueness check.
func (s *AccountRecords) Put(ctx context.Context, record *authflow.AccountRecord) error {
	if record == nil || record.ID == "" {
		return goerrors.New("record requires an id", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if record.CreatedAt == nil {
		createdAt := s.now()
		record.CreatedAt = &createdAt
	}

	updatedAt := s.now()
	record.UpdatedAt = &updatedAt

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("name = EXCLUDED.name").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)

	if err != nil {
		return storeFailure(err, "record write failed")
	}

	return nil
}

// SetUsername updates the username field only.
func (s *AccountRecords) SetUsername(ctx context.Context, id, username string) error {
	res, err := s.db.NewUpdate().
		Model((*authflow.AccountRecord)(nil)).
		Set("username = ?", username).
		Set("updated_at = ?", s.now()).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	if err != nil {
		return storeFailure(err, "username update failed")
	}

	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return goerrors.Wrap(authflow.ErrRecordNotFound, goerrors.CategoryNotFound, "username update matched no record").
			WithMetadata(map[string]any{
				"id": id,
			})
	}

	return nil
}

// FindByUsername returns records matching the candidate, case sensitive.
func (s *AccountRecords) FindByUsername(ctx context.Context, username string) ([]*authflow.AccountRecord, error) {
	var records []*authflow.AccountRecord

	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.username = ?", username).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []*authflow.AccountRecord{}, nil
		}
		return nil, storeFailure(err, "username query failed")
	}

	return records, nil
}

// ClaimUsername inserts the reservation row for the candidate. The row's
// primary key derives deterministically from the username, so concurrent
// claims collide on insert and only the first writer's row lands. Re-claiming
// a username the same account already holds is a no-op.
func (s *AccountRecords) ClaimUsername(ctx context.Context, id, username string) error {
	reservationID, err := hashid.NewUUID(username)
	if err != nil {
		return storeFailure(err, "reservation id derivation failed")
	}

	createdAt := s.now()
	reservation := &authflow.UsernameReservation{
		ID:        reservationID,
		Username:  username,
		AccountID: id,
		CreatedAt: &createdAt,
	}

	res, err := s.db.NewInsert().
		Model(reservation).
		On("CONFLICT DO NOTHING").
		Exec(ctx)

	if err != nil {
		return storeFailure(err, "reservation write failed")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return storeFailure(err, "reservation write failed")
	}

	if rows > 0 {
		return nil
	}

	// The row already exists: either this account claimed it earlier or the
	// claim lost a race to another account.
	existing := &authflow.UsernameReservation{}
	err = s.db.NewSelect().
		Model(existing).
		Where("?TableAlias.username = ?", username).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return storeFailure(err, "reservation read failed")
	}

	if existing.AccountID == id {
		return nil
	}

	return goerrors.Wrap(authflow.ErrUsernameTaken, goerrors.CategoryConflict, "reservation held by another account").
		WithMetadata(map[string]any{
			"candidate": username,
		})
}

func storeFailure(err error, msg string) error {
	return goerrors.Wrap(
		errors.Join(authflow.ErrStoreFailure, err),
		goerrors.CategoryOperation,
		msg,
	)
}
