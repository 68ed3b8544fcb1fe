package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ranirkini2004/Open-Hub-API/internal/apperror"
	"github.com/ranirkini2004/Open-Hub-API/internal/model"
	"github.com/ranirkini2004/Open-Hub-API/internal/notify"
	"github.com/ranirkini2004/Open-Hub-API/internal/repository"
)

// Notifier accepts acceptance emails for asynchronous delivery.
// *notify.Dispatcher satisfies it.
type Notifier interface {
	Enqueue(msg notify.AcceptanceEmail) bool
}

// CollabService owns the join-request workflow: a user asks to join a
// project, the owner accepts or rejects, and an accepted sender becomes part
// of the project's team.
//
// The team is never stored. It is read from accepted requests every time, so
// it cannot drift from the request states.
type CollabService struct {
	users    repository.UserRepository
	projects repository.ProjectRepository
	requests repository.CollabRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewCollabService(
	users repository.UserRepository,
	projects repository.ProjectRepository,
	requests repository.CollabRepository,
	notifier Notifier,
	logger *slog.Logger,
) *CollabService {
	return &CollabService{
		users:    users,
		projects: projects,
		requests: requests,
		notifier: notifier,
		logger:   logger,
	}
}

// SendJoinRequest records a pending request from senderID to projectID.
//
// Errors:
//   - ErrNotFound when the sender or the project does not exist
//   - ErrValidation when the sender owns the project
//   - ErrConflict when any request already exists for the pair, whatever its
//     status; a rejected sender cannot ask again
func (s *CollabService) SendJoinRequest(ctx context.Context, senderID, projectID string) (*model.CollabRequest, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, apperror.ValidationFailed("project_id", "project_id is required")
	}

	sender, err := s.users.GetUserByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	if project.OwnerID == sender.ID {
		return nil, apperror.ValidationFailed("project_id", "you cannot request to join your own project")
	}

	// The UNIQUE index catches a concurrent duplicate; this check gives the
	// common case a readable error without a failed insert.
	_, err = s.requests.FindRequest(ctx, sender.ID, project.ID)
	switch {
	case err == nil:
		return nil, &apperror.AppError{
			Err:     apperror.ErrConflict,
			Message: "request already sent",
		}
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, err
	}

	req := &model.CollabRequest{
		SenderID:  sender.ID,
		ProjectID: project.ID,
		Status:    model.StatusPending,
	}
	if err := s.requests.CreateRequest(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Info("join request sent",
		slog.String("request_id", req.ID),
		slog.String("sender", sender.Username),
		slog.String("project_id", project.ID),
	)
	return req, nil
}

// ListPendingRequestsForOwner returns the pending requests against every
// project ownerID owns.
func (s *CollabService) ListPendingRequestsForOwner(ctx context.Context, ownerID string) ([]model.PendingRequest, error) {
	owner, err := s.users.GetUserByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.requests.ListPendingForOwner(ctx, owner.ID)
}

// UpdateRequestStatus sets a request's status on behalf of actorID, who must
// own the request's project.
//
// Any of the three statuses may replace any other; there is no terminal
// state. Accepting a request hands one acceptance email to the notifier
// after the write, provided the sender has an email on file. The email is
// never waited on and cannot fail the update.
func (s *CollabService) UpdateRequestStatus(ctx context.Context, actorID, requestID, status string) (*model.CollabRequest, error) {
	newStatus, err := model.ParseRequestStatus(strings.TrimSpace(status))
	if err != nil {
		return nil, apperror.ValidationFailed("status", "status must be one of pending, accepted, rejected")
	}

	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	project, err := s.projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != actorID {
		return nil, apperror.Forbidden("only the project owner can update this request")
	}

	if err := s.requests.UpdateRequestStatus(ctx, req.ID, newStatus); err != nil {
		return nil, err
	}
	req.Status = newStatus

	s.logger.Info("join request updated",
		slog.String("request_id", req.ID),
		slog.String("project_id", project.ID),
		slog.String("status", newStatus.String()),
	)

	if newStatus == model.StatusAccepted {
		s.notifyAccepted(ctx, req, project)
	}
	return req, nil
}

func (s *CollabService) notifyAccepted(ctx context.Context, req *model.CollabRequest, project *model.Project) {
	sender, err := s.users.GetUserByID(ctx, req.SenderID)
	if err != nil {
		s.logger.Warn("acceptance email skipped: sender lookup failed",
			slog.String("request_id", req.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	if sender.Email == "" {
		s.logger.Info("acceptance email skipped: sender has no email",
			slog.String("request_id", req.ID),
			slog.String("sender", sender.Username),
		)
		return
	}

	s.notifier.Enqueue(notify.AcceptanceEmail{
		To:           sender.Email,
		Username:     sender.Username,
		ProjectTitle: project.Title,
	})
}

// ListJoinedProjects returns the projects username has been accepted into.
// An unknown username yields an empty list, not ErrNotFound.
func (s *CollabService) ListJoinedProjects(ctx context.Context, username string) ([]model.Project, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return []model.Project{}, nil
		}
		return nil, err
	}
	return s.requests.ListAcceptedProjects(ctx, user.ID)
}

// ListJoinedProjectsForUser is ListJoinedProjects keyed by user ID, for the
// authenticated caller.
func (s *CollabService) ListJoinedProjectsForUser(ctx context.Context, userID string) ([]model.Project, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.requests.ListAcceptedProjects(ctx, user.ID)
}

// GetProjectDetails returns the project, its owner and its current team.
func (s *CollabService) GetProjectDetails(ctx context.Context, projectID string) (*model.ProjectDetail, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	team, err := s.requests.ListTeam(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("listing team of %s: %w", project.ID, err)
	}
	return &model.ProjectDetail{Project: *project, Team: team}, nil
}
