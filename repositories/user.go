//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"chat-relay/errors"
)

// UserProfile is the persisted record behind a verified identity.
// Username and ProfilePicURL are nil when unset; empty strings are never
// stored.
type UserProfile struct {
	UID           string
	PhoneNumber   string
	Username      *string
	ProfilePicURL *string
	LastSeen      time.Time
}

type IUserRepository interface {
	// GetOrCreate inserts the profile on first sight of the identity, or
	// bumps last_seen on the existing row. It always yields a row; anything
	// else is a persistence-layer inconsistency reported as
	// ErrProfileResolutionFailed.
	GetOrCreate(ctx context.Context, uid, phoneNumber string, seenAt time.Time) (UserProfile, error)
	// UpdateProfile persists the display attributes in a single update keyed
	// by uid. Nil unsets a field. ErrProfileNotFound when no row matched.
	UpdateProfile(ctx context.Context, uid string, username, profilePicURL *string) (UserProfile, error)
	// TouchLastSeen records a disconnection timestamp.
	TouchLastSeen(ctx context.Context, uid string, at time.Time) error
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) IUserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetOrCreate(ctx context.Context, uid, phoneNumber string, seenAt time.Time) (UserProfile, error) {
	const upsert = `
		INSERT INTO users (uid, phone_number, last_seen) VALUES (?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET last_seen = excluded.last_seen
		RETURNING uid, phone_number, username, profile_pic_url, last_seen`

	profile, err := scanProfile(r.db.QueryRowContext(ctx, upsert, uid, phoneNumber, seenAt.UTC()))
	if err == nil {
		return profile, nil
	}
	if !stderrors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, fmt.Errorf("get-or-create for %s: %w", uid, err)
	}

	// The upsert is expected to always yield a row. Fall back to an explicit
	// read before declaring the store inconsistent.
	profile, err = r.getByUID(ctx, uid)
	if stderrors.Is(err, sql.ErrNoRows) {
		return UserProfile{}, fmt.Errorf("%w: uid %s", errors.ErrProfileResolutionFailed, uid)
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("get-or-create fallback read for %s: %w", uid, err)
	}
	return profile, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, uid string, username, profilePicURL *string) (UserProfile, error) {
	const update = `
		UPDATE users SET username = ?, profile_pic_url = ?
		WHERE uid = ?
		RETURNING uid, phone_number, username, profile_pic_url, last_seen`

	profile, err := scanProfile(r.db.QueryRowContext(ctx, update, username, profilePicURL, uid))
	if stderrors.Is(err, sql.ErrNoRows) {
		// The authenticated identity has no backing row: a data-integrity
		// failure, not a client error.
		return UserProfile{}, fmt.Errorf("%w: uid %s", errors.ErrProfileNotFound, uid)
	}
	if err != nil {
		return UserProfile{}, fmt.Errorf("update profile for %s: %w", uid, err)
	}
	return profile, nil
}

func (r *UserRepository) TouchLastSeen(ctx context.Context, uid string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen = ? WHERE uid = ?`, at.UTC(), uid)
	return err
}

func (r *UserRepository) getByUID(ctx context.Context, uid string) (UserProfile, error) {
	const query = `
		SELECT uid, phone_number, username, profile_pic_url, last_seen
		FROM users WHERE uid = ?`
	return scanProfile(r.db.QueryRowContext(ctx, query, uid))
}

func scanProfile(row *sql.Row) (UserProfile, error) {
	var p UserProfile
	if err := row.Scan(&p.UID, &p.PhoneNumber, &p.Username, &p.ProfilePicURL, &p.LastSeen); err != nil {
		return UserProfile{}, err
	}
	p.LastSeen = p.LastSeen.UTC()
	return p, nil
}
