package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/ranirkini2004/Open-Hub-API/internal/apperror"
	"github.com/ranirkini2004/Open-Hub-API/internal/model"
	"github.com/ranirkini2004/Open-Hub-API/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, github_id, username, email, avatar_url, password_hash,
	bio, skills, linkedin, full_name, department, year, discord_handle,
	created_at, updated_at`

// UpsertGitHub inserts or refreshes a user keyed by GitHub ID.
//
// An existing row keeps its internal ID; username, email and avatar follow
// whatever GitHub reports now. Profile fields are never touched here. On
// return user holds the stored record.
//
// Two first logins for the same GitHub ID may both miss the lookup; the one
// that loses the insert race finds the winner's row and refreshes it.
func (db *DB) UpsertGitHub(ctx context.Context, user *model.User) error {
	if user.GitHubID == 0 {
		return apperror.ValidationFailed("github_id", "GitHub ID is required")
	}

	existingID, err := db.userIDByGitHubID(ctx, user.GitHubID)
	if err != nil {
		return err
	}
	if existingID == "" {
		existingID, err = db.insertGitHubUser(ctx, user)
		if err != nil {
			return err
		}
	}
	if existingID != "" {
		if err := db.refreshGitHubUser(ctx, existingID, user); err != nil {
			return err
		}
	}

	stored, err := db.GetUserByID(ctx, firstNonEmpty(existingID, user.ID))
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

// userIDByGitHubID returns "" when no user has githubID.
func (db *DB) userIDByGitHubID(ctx context.Context, githubID int64) (string, error) {
	var id string
	err := db.conn.QueryRowContext(ctx,
		db.q(`SELECT id FROM users WHERE github_id = ?`), githubID,
	).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sqlstore: looking up user by github_id %d: %w", githubID, err)
	}
	return id, nil
}

// insertGitHubUser inserts user as new. If the insert conflicts because
// another login stored the same GitHub ID first, it returns that row's ID
// instead; a conflict on the username alone is still ErrConflict.
func (db *DB) insertGitHubUser(ctx context.Context, user *model.User) (string, error) {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	err := db.insertUser(ctx, user)
	if err == nil {
		return "", nil
	}
	if !errors.Is(err, apperror.ErrConflict) {
		return "", err
	}

	winnerID, lookupErr := db.userIDByGitHubID(ctx, user.GitHubID)
	if lookupErr != nil {
		return "", lookupErr
	}
	if winnerID == "" {
		return "", err
	}
	user.ID = ""
	return winnerID, nil
}

func (db *DB) refreshGitHubUser(ctx context.Context, id string, user *model.User) error {
	_, err := db.conn.ExecContext(ctx,
		db.q(`UPDATE users SET username = ?, email = ?, avatar_url = ?, updated_at = ?
		 WHERE id = ?`),
		user.Username, user.Email, user.AvatarURL, time.Now().UTC(), id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlstore: updating user %s: %w", id, err)
	}
	return nil
}

// CreateUser inserts a registered (non-GitHub) user. Returns ErrConflict if
// the username is taken.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now
	return db.insertUser(ctx, user)
}

func (db *DB) insertUser(ctx context.Context, u *model.User) error {
	_, err := db.conn.ExecContext(ctx,
		db.q(`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID, nullInt64(u.GitHubID), u.Username, u.Email, u.AvatarURL, u.PasswordHash,
		u.Bio, u.Skills, u.LinkedIn, u.FullName, u.Department, u.Year, u.DiscordHandle,
		u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", u.Username)
		}
		return fmt.Errorf("sqlstore: inserting user %q: %w", u.Username, err)
	}
	return nil
}

// GetUserByID retrieves a user by internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		db.q(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlstore: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		db.q(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlstore: getting user %q: %w", username, err)
	}
	return u, nil
}

// UpdateProfile writes the profile columns of user.
func (db *DB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		db.q(`UPDATE users
		 SET bio = ?, skills = ?, linkedin = ?, full_name = ?, department = ?,
		     year = ?, discord_handle = ?, updated_at = ?
		 WHERE id = ?`),
		user.Bio, user.Skills, user.LinkedIn, user.FullName, user.Department,
		user.Year, user.DiscordHandle, user.UpdatedAt, user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating profile %s: %w", user.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(
		&u.ID, &githubID, &u.Username, &u.Email, &u.AvatarURL, &u.PasswordHash,
		&u.Bio, &u.Skills, &u.LinkedIn, &u.FullName, &u.Department, &u.Year, &u.DiscordHandle,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.GitHubID = githubID.Int64
	return &u, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
