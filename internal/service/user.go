package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ranirkini2004/Open-Hub-API/internal/apperror"
	"github.com/ranirkini2004/Open-Hub-API/internal/model"
	"github.com/ranirkini2004/Open-Hub-API/internal/repository"
)

// MaxProfileFieldLength bounds every free-text profile field.
const MaxProfileFieldLength = 1000

type UserService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewUserService(users repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// GetProfile returns the public profile of username.
func (s *UserService) GetProfile(ctx context.Context, username string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	return s.users.GetUserByUsername(ctx, username)
}

// GetByID returns the user behind a verified token subject.
func (s *UserService) GetByID(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// UpdateProfile applies a partial update to userID's profile and returns the
// stored result. Fields left nil in update keep their value.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, update model.ProfileUpdate) (*model.User, error) {
	fields := []struct {
		name  string
		value *string
	}{
		{"bio", update.Bio},
		{"skills", update.Skills},
		{"linkedin", update.LinkedIn},
		{"full_name", update.FullName},
		{"department", update.Department},
		{"year", update.Year},
		{"discord_handle", update.DiscordHandle},
	}
	for _, f := range fields {
		if f.value != nil && len(*f.value) > MaxProfileFieldLength {
			return nil, apperror.ValidationFailed(f.name, f.name+" is too long")
		}
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	update.Apply(user)
	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("profile updated", slog.String("user", user.Username))
	return user, nil
}
