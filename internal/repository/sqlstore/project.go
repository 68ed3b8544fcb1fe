package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/ranirkini2004/Open-Hub-API/internal/apperror"
	"github.com/ranirkini2004/Open-Hub-API/internal/model"
	"github.com/ranirkini2004/Open-Hub-API/internal/repository"
)

var _ repository.ProjectRepository = (*DB)(nil)

// projectSelect joins the owner summary onto every project row.
const projectSelect = `SELECT p.id, p.title, p.description, p.repo_url, p.language, p.stars,
	p.owner_id, p.created_at, u.username, u.avatar_url
	FROM projects p
	JOIN users u ON u.id = p.owner_id`

// CreateProject inserts a project. The repo_url UNIQUE index turns a
// duplicate import into apperror.ErrConflict.
func (db *DB) CreateProject(ctx context.Context, p *model.Project) error {
	p.ID = xid.New().String()
	p.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		db.q(`INSERT INTO projects (id, title, description, repo_url, language, stars, owner_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.Title, p.Description, p.RepoURL, p.Language, p.Stars, p.OwnerID, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("project", p.RepoURL)
		}
		return fmt.Errorf("sqlstore: creating project: %w", err)
	}
	return nil
}

// GetProject retrieves a project and its owner summary.
func (db *DB) GetProject(ctx context.Context, id string) (*model.Project, error) {
	row := db.conn.QueryRowContext(ctx, db.q(projectSelect+` WHERE p.id = ?`), id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("project", id)
		}
		return nil, fmt.Errorf("sqlstore: getting project %s: %w", id, err)
	}
	return p, nil
}

// GetProjectByRepoURL retrieves the project imported from repoURL.
func (db *DB) GetProjectByRepoURL(ctx context.Context, repoURL string) (*model.Project, error) {
	row := db.conn.QueryRowContext(ctx, db.q(projectSelect+` WHERE p.repo_url = ?`), repoURL)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("project", repoURL)
		}
		return nil, fmt.Errorf("sqlstore: getting project by repo_url: %w", err)
	}
	return p, nil
}

// ListProjects returns projects in insertion order, optionally filtered.
func (db *DB) ListProjects(ctx context.Context, f repository.ProjectFilter) ([]model.Project, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(f.Search); s != "" {
		pat := likePattern(s)
		where = append(where, `(LOWER(p.title) LIKE ? ESCAPE '\' OR LOWER(p.language) LIKE ? ESCAPE '\')`)
		args = append(args, pat, pat)
	}
	if f.OwnerID != "" {
		where = append(where, `p.owner_id = ?`)
		args = append(args, f.OwnerID)
	}

	query := projectSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY p.created_at, p.id`

	return db.queryProjects(ctx, query, args...)
}

// DeleteProject removes the project's requests and then the project in one
// transaction, so the foreign keys never see an orphan.
func (db *DB) DeleteProject(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			db.q(`DELETE FROM collab_requests WHERE project_id = ?`), id); err != nil {
			return fmt.Errorf("sqlstore: deleting requests of project %s: %w", id, err)
		}

		result, err := tx.ExecContext(ctx, db.q(`DELETE FROM projects WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("sqlstore: deleting project %s: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlstore: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("project", id)
		}
		return nil
	})
}

func (db *DB) queryProjects(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := db.conn.QueryContext(ctx, db.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: listing projects: %w", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: scanning project row: %w", err)
		}
		projects = append(projects, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: iterating projects: %w", err)
	}
	return projects, nil
}

func scanProject(row rowScanner) (*model.Project, error) {
	var (
		p     model.Project
		owner model.UserSummary
	)
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.RepoURL, &p.Language, &p.Stars,
		&p.OwnerID, &p.CreatedAt, &owner.Username, &owner.AvatarURL,
	)
	if err != nil {
		return nil, err
	}
	p.Owner = &owner
	return &p, nil
}
