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

var _ repository.CollabRepository = (*DB)(nil)

const requestColumns = `id, sender_id, project_id, status, created_at, updated_at`

// CreateRequest inserts a join request. The (sender_id, project_id) UNIQUE
// constraint makes a second request for the same pair an ErrConflict, no
// matter the status of the first one.
func (db *DB) CreateRequest(ctx context.Context, r *model.CollabRequest) error {
	now := time.Now().UTC()
	r.ID = xid.New().String()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = model.StatusPending
	}

	_, err := db.conn.ExecContext(ctx,
		db.q(`INSERT INTO collab_requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		r.ID, r.SenderID, r.ProjectID, string(r.Status), r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("request", r.SenderID+"/"+r.ProjectID)
		}
		return fmt.Errorf("sqlstore: creating request: %w", err)
	}
	return nil
}

func (db *DB) GetRequest(ctx context.Context, id string) (*model.CollabRequest, error) {
	row := db.conn.QueryRowContext(ctx,
		db.q(`SELECT `+requestColumns+` FROM collab_requests WHERE id = ?`), id)
	r, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("request", id)
		}
		return nil, fmt.Errorf("sqlstore: getting request %s: %w", id, err)
	}
	return r, nil
}

func (db *DB) FindRequest(ctx context.Context, senderID, projectID string) (*model.CollabRequest, error) {
	row := db.conn.QueryRowContext(ctx,
		db.q(`SELECT `+requestColumns+` FROM collab_requests WHERE sender_id = ? AND project_id = ?`),
		senderID, projectID)
	r, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("request", senderID+"/"+projectID)
		}
		return nil, fmt.Errorf("sqlstore: finding request: %w", err)
	}
	return r, nil
}

// UpdateRequestStatus overwrites the status regardless of its prior value.
func (db *DB) UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus) error {
	result, err := db.conn.ExecContext(ctx,
		db.q(`UPDATE collab_requests SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlstore: updating request %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlstore: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("request", id)
	}
	return nil
}

// ListPendingForOwner returns pending requests against any project owned by
// ownerID, in storage order.
func (db *DB) ListPendingForOwner(ctx context.Context, ownerID string) ([]model.PendingRequest, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(`
		SELECT r.id, p.id, p.title, p.repo_url, s.username, s.avatar_url, r.status
		FROM collab_requests r
		JOIN projects p ON p.id = r.project_id
		JOIN users s ON s.id = r.sender_id
		WHERE p.owner_id = ? AND r.status = ?
		ORDER BY r.created_at, r.id`),
		ownerID, string(model.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing pending requests: %w", err)
	}
	defer rows.Close()

	out := []model.PendingRequest{}
	for rows.Next() {
		var (
			pr     model.PendingRequest
			status string
		)
		if err := rows.Scan(&pr.ID, &pr.ProjectID, &pr.ProjectTitle, &pr.ProjectRepoURL,
			&pr.SenderUsername, &pr.SenderAvatar, &status); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning pending request: %w", err)
		}
		pr.Status = model.RequestStatus(status)
		out = append(out, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating pending requests: %w", err)
	}
	return out, nil
}

// ListAcceptedProjects returns the projects senderID has been accepted into.
func (db *DB) ListAcceptedProjects(ctx context.Context, senderID string) ([]model.Project, error) {
	return db.queryProjects(ctx, projectSelect+`
		JOIN collab_requests r ON r.project_id = p.id
		WHERE r.sender_id = ? AND r.status = ?
		ORDER BY r.created_at, p.id`,
		senderID, string(model.StatusAccepted),
	)
}

// ListTeam returns the senders accepted into projectID.
func (db *DB) ListTeam(ctx context.Context, projectID string) ([]model.UserSummary, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(`
		SELECT u.username, u.avatar_url
		FROM collab_requests r
		JOIN users u ON u.id = r.sender_id
		WHERE r.project_id = ? AND r.status = ?
		ORDER BY r.created_at, u.username`),
		projectID, string(model.StatusAccepted),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing team of %s: %w", projectID, err)
	}
	defer rows.Close()

	team := []model.UserSummary{}
	for rows.Next() {
		var m model.UserSummary
		if err := rows.Scan(&m.Username, &m.AvatarURL); err != nil {
			return nil, fmt.Errorf("sqlstore: scanning team member: %w", err)
		}
		team = append(team, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating team: %w", err)
	}
	return team, nil
}

func scanRequest(row rowScanner) (*model.CollabRequest, error) {
	var (
		r      model.CollabRequest
		status string
	)
	if err := row.Scan(&r.ID, &r.SenderID, &r.ProjectID, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RequestStatus(status)
	return &r, nil
}
