// Package service holds the business rules of the directory. Services take
// plain values and return domain types or apperror values; they know nothing
// about HTTP.
//
//	handler (HTTP) → service (rules) → repository (storage)
//	                        ↘ auth (tokens, passwords, GitHub)
//	                        ↘ notify (acceptance email)
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"

	"golang.org/x/oauth2"

	"github.com/ranirkini2004/Open-Hub-API/internal/apperror"
	"github.com/ranirkini2004/Open-Hub-API/internal/auth"
	"github.com/ranirkini2004/Open-Hub-API/internal/model"
	"github.com/ranirkini2004/Open-Hub-API/internal/repository"
)

const MinPasswordLength = 8

// usernamePattern follows GitHub's login rules so registered and GitHub
// users share one namespace.
var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,37}[A-Za-z0-9])?$`)

// IdentityProvider is the external login the service trusts.
// *auth.GitHubProvider satisfies it.
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	FetchProfile(ctx context.Context, tok *oauth2.Token) (*auth.GitHubUser, error)
}

// AuthService turns external or password credentials into a signed token.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	github    IdentityProvider
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	github IdentityProvider,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		github:    github,
		logger:    logger,
	}
}

// AuthResult bundles the user and the token issued for it.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginWithGitHubCode completes the OAuth flow: it exchanges code, fetches
// the GitHub profile, upserts the user and issues a token.
//
// Provider failures come back as apperror.ErrUpstreamAuth, missing client
// credentials as apperror.ErrConfig.
func (s *AuthService) LoginWithGitHubCode(ctx context.Context, code string) (*AuthResult, error) {
	tok, err := s.github.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	ghUser, err := s.github.FetchProfile(ctx, tok)
	if err != nil {
		return nil, err
	}
	return s.LoginOrRegisterGitHub(ctx, ghUser)
}

// LoginOrRegisterGitHub upserts the user behind a GitHub profile, keyed on
// the stable GitHub ID, and issues a token.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Username:  ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
	}
	if err := s.users.UpsertGitHub(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("username", user.Username),
	)
	return s.issue(user)
}

// Register creates a password account. Email is optional.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	// === VALIDATION ===
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if !usernamePattern.MatchString(username) {
		return nil, apperror.ValidationFailed("username",
			"username must be 1-39 letters, digits or single hyphens")
	}
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, apperror.ValidationFailed("email", "email is not a valid address")
		}
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", "password must be 72 bytes or fewer")
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, &apperror.AppError{
				Err:     apperror.ErrConflict,
				Message: "username already taken",
				Field:   "username",
			}
		}
		return nil, err
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("username", user.Username))
	return s.issue(user)
}

// Login checks a username and password. Unknown users, GitHub-only users and
// wrong passwords all get the same ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	invalid := apperror.Unauthorized("invalid username or password")

	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, invalid
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("stored password hash is unusable",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, invalid
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// ValidateToken returns the user ID a token carries.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", apperror.Unauthorized(err.Error())
	}
	return userID, nil
}
