package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ranirkini2004/Open-Hub-API/internal/apperror"
	"github.com/ranirkini2004/Open-Hub-API/internal/auth"
	"github.com/ranirkini2004/Open-Hub-API/internal/model"
	"github.com/ranirkini2004/Open-Hub-API/internal/repository"
)

// failingUpsertStore simulates a database failure on the GitHub upsert path.
type failingUpsertStore struct {
	*fakeStore
}

func (failingUpsertStore) UpsertGitHub(context.Context, *model.User) error {
	return errors.New("database is on fire")
}

// newTestAuthService returns an AuthService wired with fake dependencies and
// the minimum bcrypt cost.
func newTestAuthService(t *testing.T, users repository.UserRepository, provider IdentityProvider) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	ps := auth.NewPasswordServiceForTest(4)

	if provider == nil {
		provider = &fakeProvider{}
	}
	return NewAuthService(users, ts, ps, provider, discardLogger())
}

// =========================================================================
// GitHub login
// =========================================================================

func TestLoginOrRegisterGitHub_NewUser(t *testing.T) {
	svc := newTestAuthService(t, newFakeStore(), nil)

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID:        42,
		Login:     "octocat",
		Email:     "octocat@github.com",
		AvatarURL: "https://avatars.githubusercontent.com/u/42",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	if result.Token == "" {
		t.Fatal("LoginOrRegisterGitHub() returned empty Token")
	}
	if result.User.Username != "octocat" {
		t.Errorf("User.Username = %q, want %q", result.User.Username, "octocat")
	}
	if result.User.ID == "" {
		t.Error("User.ID should be set after upsert")
	}
}

func TestLoginOrRegisterGitHub_ExistingUserKeepsID(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(t, store, nil)

	first, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 99, Login: "old-login", Email: "old@email.com"})
	if err != nil {
		t.Fatalf("first login error: %v", err)
	}

	second, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 99, Login: "new-login", Email: "new@email.com"})
	if err != nil {
		t.Fatalf("second login error: %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("User.ID changed from %q to %q", first.User.ID, second.User.ID)
	}
	if second.User.Username != "new-login" {
		t.Errorf("Username after update = %q, want %q", second.User.Username, "new-login")
	}
	if len(store.users) != 1 {
		t.Errorf("store has %d users, want 1", len(store.users))
	}
}

func TestLoginOrRegisterGitHub_NilGitHubUser(t *testing.T) {
	svc := newTestAuthService(t, newFakeStore(), nil)

	if _, err := svc.LoginOrRegisterGitHub(context.Background(), nil); err == nil {
		t.Fatal("LoginOrRegisterGitHub() should return error for nil GitHubUser")
	}
}

func TestLoginOrRegisterGitHub_RepositoryError(t *testing.T) {
	svc := newTestAuthService(t, failingUpsertStore{newFakeStore()}, nil)

	_, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "user"})
	if err == nil {
		t.Fatal("LoginOrRegisterGitHub() should propagate repository errors")
	}
}

func TestLoginWithGitHubCode(t *testing.T) {
	provider := &fakeProvider{profiles: map[string]*auth.GitHubUser{
		"good-code": {ID: 7, Login: "hubot", Email: "hubot@example.com"},
	}}
	svc := newTestAuthService(t, newFakeStore(), provider)

	result, err := svc.LoginWithGitHubCode(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("LoginWithGitHubCode() error = %v", err)
	}
	if result.User.Username != "hubot" || result.User.GitHubID != 7 {
		t.Errorf("user = %+v, want hubot with GitHubID 7", result.User)
	}

	_, err = svc.LoginWithGitHubCode(context.Background(), "bad-code")
	if !errors.Is(err, apperror.ErrUpstreamAuth) {
		t.Errorf("bad code error = %v, want ErrUpstreamAuth", err)
	}
}

func TestLoginWithGitHubCode_Unconfigured(t *testing.T) {
	provider := &fakeProvider{exchangeErr: apperror.Config("GitHub OAuth client")}
	svc := newTestAuthService(t, newFakeStore(), provider)

	_, err := svc.LoginWithGitHubCode(context.Background(), "any")
	if !errors.Is(err, apperror.ErrConfig) {
		t.Errorf("error = %v, want ErrConfig", err)
	}
}

// =========================================================================
// Password accounts
// =========================================================================

func TestRegisterThenLogin(t *testing.T) {
	svc := newTestAuthService(t, newFakeStore(), nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice", "alice@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.User.PasswordHash == "" || reg.User.PasswordHash == "correct-horse" {
		t.Error("Register() should store a bcrypt hash, not the plaintext")
	}

	login, err := svc.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Errorf("Login() user = %q, want %q", login.User.ID, reg.User.ID)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestAuthService(t, newFakeStore(), nil)

	tests := []struct {
		name, username, email, password string
	}{
		{"empty username", "", "", "password123"},
		{"bad username", "-alice", "", "password123"},
		{"bad email", "alice", "not-an-email", "password123"},
		{"short password", "alice", "", "short"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.email, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc := newTestAuthService(t, newFakeStore(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "", "password123"); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	_, err := svc.Register(ctx, "alice", "", "password456")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", err)
	}
}

func TestLogin_Failures(t *testing.T) {
	store := newFakeStore()
	svc := newTestAuthService(t, store, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "", "password123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	seedUser(t, store, "github-only", "")

	for _, tc := range []struct{ username, password string }{
		{"alice", "wrong-password"},
		{"nobody", "password123"},
		{"github-only", ""},
	} {
		_, err := svc.Login(ctx, tc.username, tc.password)
		if !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("Login(%q) error = %v, want ErrUnauthorized", tc.username, err)
		}
	}
}

// =========================================================================
// ValidateToken
// =========================================================================

func TestValidateToken_ValidToken(t *testing.T) {
	svc := newTestAuthService(t, newFakeStore(), nil)

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 5, Login: "tok"})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	userID, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("userID = %q, want %q", userID, result.User.ID)
	}
}

func TestValidateToken_InvalidToken(t *testing.T) {
	svc := newTestAuthService(t, newFakeStore(), nil)

	_, err := svc.ValidateToken("this.is.garbage")
	if !errors.Is(err, apperror.ErrUnauthorized) {
		t.Fatalf("ValidateToken() error = %v, want ErrUnauthorized", err)
	}
}
