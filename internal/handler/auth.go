package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/ranirkini2004/Open-Hub-API/internal/apperror"
	"github.com/ranirkini2004/Open-Hub-API/internal/auth"
	"github.com/ranirkini2004/Open-Hub-API/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler serves the GitHub OAuth flow, password accounts and the
// current-user endpoint.
type AuthHandler struct {
	auth   *service.AuthService
	users  *service.UserService
	github *auth.GitHubProvider
	opts   AuthOptions
	logger *slog.Logger
}

// AuthOptions controls where the browser flow lands and how the token
// cookie is set.
type AuthOptions struct {
	FrontendURL  string
	CookieSecure bool
	TokenTTL     time.Duration
}

func NewAuthHandler(
	authSvc *service.AuthService,
	users *service.UserService,
	github *auth.GitHubProvider,
	opts AuthOptions,
	logger *slog.Logger,
) *AuthHandler {
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &AuthHandler{
		auth:   authSvc,
		users:  users,
		github: github,
		opts:   opts,
		logger: logger,
	}
}

// TokenResponse is returned by every endpoint that issues a token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
}

// HandleGitHubLogin redirects the browser to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state is stored in a short-lived cookie and checked on callback,
// so only flows this server started can complete.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if !h.github.Configured() {
		writeError(w, apperror.Config("GitHub OAuth client"))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the browser flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// On success it sets the token cookie and redirects to
// {FRONTEND_URL}/auth/success?token=...&username=...
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	// --- CSRF state ---
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || r.URL.Query().Get("state") != c.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, h.opts.FrontendURL+"/?auth=denied", http.StatusSeeOther)
		return
	}

	result, err := h.auth.LoginWithGitHubCode(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Warn("auth callback: GitHub login failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.setTokenCookie(w, result.Token)

	q := url.Values{}
	q.Set("token", result.Token)
	q.Set("username", result.User.Username)
	http.Redirect(w, r, h.opts.FrontendURL+"/auth/success?"+q.Encode(), http.StatusSeeOther)
}

// HandleGitHubCode exchanges a code obtained by the frontend.
//
// HTTP: POST /auth/github  {"code": "..."}
func (h *AuthHandler) HandleGitHubCode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.LoginWithGitHubCode(r.Context(), body.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondWithToken(w, http.StatusOK, result)
}

type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a password account.
//
// HTTP: POST /auth/register  {"username", "email", "password"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), body.Username, body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondWithToken(w, http.StatusCreated, result)
}

// HandleLogin signs in a password account.
//
// HTTP: POST /auth/login  {"username", "password"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondWithToken(w, http.StatusOK, result)
}

// HandleLogout clears the token cookie. Tokens are stateless, so a bearer
// token stays valid until it expires.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, result *service.AuthResult) {
	h.setTokenCookie(w, result.Token)
	writeJSON(w, status, TokenResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		Username:    result.User.Username,
	})
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.opts.TokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// requireUserID reads the caller from the context RequireAuth filled in and
// writes a 401 when it is missing.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return "", false
	}
	return userID, true
}
