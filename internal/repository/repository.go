// Package repository declares the storage contracts the service layer
// depends on. Implementations live in subpackages (see sqlstore).
//
// Uniqueness rules (github_id, username, repo_url, one request per sender and
// project) are enforced by the store itself: a violating write returns an
// apperror.ErrConflict even when the caller skipped or lost a pre-check race.
package repository

import (
	"context"

	"github.com/ranirkini2004/Open-Hub-API/internal/model"
)

type UserRepository interface {
	// UpsertGitHub inserts the user if no row has its GitHubID, otherwise
	// refreshes username, email and avatar and keeps the existing ID.
	UpsertGitHub(ctx context.Context, user *model.User) error
	// CreateUser inserts an explicitly registered user.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	// UpdateProfile persists the free-text profile fields of user.
	UpdateProfile(ctx context.Context, user *model.User) error
}

// ProjectFilter narrows ListProjects. Zero values mean "no filter".
type ProjectFilter struct {
	Search  string // case-insensitive substring of title or language
	OwnerID string
}

type ProjectRepository interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	GetProjectByRepoURL(ctx context.Context, repoURL string) (*model.Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]model.Project, error)
	// DeleteProject removes the project and every request referencing it
	// atomically.
	DeleteProject(ctx context.Context, id string) error
}

type CollabRepository interface {
	CreateRequest(ctx context.Context, req *model.CollabRequest) error
	GetRequest(ctx context.Context, id string) (*model.CollabRequest, error)
	// FindRequest returns the request for the pair, or ErrNotFound.
	FindRequest(ctx context.Context, senderID, projectID string) (*model.CollabRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, status model.RequestStatus) error
	ListPendingForOwner(ctx context.Context, ownerID string) ([]model.PendingRequest, error)
	ListAcceptedProjects(ctx context.Context, senderID string) ([]model.Project, error)
	ListTeam(ctx context.Context, projectID string) ([]model.UserSummary, error)
}
