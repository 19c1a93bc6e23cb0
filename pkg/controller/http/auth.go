package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bssprx/data-platform-containers/pkg/domain/interfaces"
	"github.com/bssprx/data-platform-containers/pkg/domain/model"
	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

// TokenCookieName is the cookie the UI reads its token from
const TokenCookieName = "_token"

const maxLoginBody = 1 << 16

// AuthHandler serves the load balancer login and token routes
type AuthHandler struct {
	authUC         interfaces.AuthUseCase
	identityHeader string
	claimsHeader   string
	tokenTTL       time.Duration
	cliTokenTTL    time.Duration
	tls            bool
}

func NewAuthHandler(authUC interfaces.AuthUseCase, cfg *config) *AuthHandler {
	return &AuthHandler{
		authUC:         authUC,
		identityHeader: cfg.identityHeader,
		claimsHeader:   cfg.claimsHeader,
		tokenTTL:       cfg.tokenTTL,
		cliTokenTTL:    cfg.cliTokenTTL,
		tls:            cfg.tls,
	}
}

// safeNext accepts only relative paths as redirect targets
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return "/"
	}
	return next
}

// userInfo maps the identity and claims headers. nil means no identity.
func (h *AuthHandler) userInfo(r *http.Request) *model.UserInfo {
	claims, err := model.DecodeOIDCClaims(r.Header.Get(h.claimsHeader))
	if err != nil {
		logging.From(r.Context()).Warn("Failed to parse OIDC claims header", "header", h.claimsHeader, "error", err)
		claims = model.OIDCClaims{}
	}
	return model.MapUserInfo(r.Header.Get(h.identityHeader), claims)
}

// authorizeAndIssue runs the header flow. It writes the error response and
// returns "" on failure.
func (h *AuthHandler) authorizeAndIssue(w http.ResponseWriter, r *http.Request, ttl time.Duration) string {
	ctx := r.Context()
	logger := logging.From(ctx)

	info := h.userInfo(r)
	if info == nil {
		logger.Warn("Missing remote user header", "path", r.URL.Path)
		writeError(w, r, "Missing remote user header.", nil, http.StatusUnauthorized)
		return ""
	}

	user, err := h.authUC.Authorize(ctx, info)
	if err != nil {
		writeError(w, r, "Failed to authorize user.", err, http.StatusInternalServerError)
		return ""
	}
	if user == nil {
		writeError(w, r, "User not authorized.", nil, http.StatusForbidden)
		return ""
	}

	return h.issue(w, r, user, ttl)
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, user *model.User, ttl time.Duration) string {
	token, err := h.authUC.IssueToken(r.Context(), user, ttl)
	if err != nil {
		writeError(w, r, "Failed to mint token.", err, http.StatusInternalServerError)
		return ""
	}
	if token == "" {
		logging.From(r.Context()).Error("Refusing to hand out an empty token", "username", user.Username)
		writeError(w, r, "Failed to mint token.", nil, http.StatusForbidden)
		return ""
	}

	logging.From(r.Context()).Info("Minted token", "username", user.Username, "user_id", user.ID, "ttl", ttl)
	return token
}

func (h *AuthHandler) secure(r *http.Request) bool {
	return h.tls || r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Login sets the token cookie and redirects to next
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))

	token := h.authorizeAndIssue(w, r, h.tokenTTL)
	if token == "" {
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Secure:   h.secure(r),
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, next, http.StatusSeeOther)
}

// Token returns a token with the default lifetime
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	h.token(w, r, h.tokenTTL)
}

// TokenCLI returns a token with the CLI lifetime
func (h *AuthHandler) TokenCLI(w http.ResponseWriter, r *http.Request) {
	h.token(w, r, h.cliTokenTTL)
}

func (h *AuthHandler) token(w http.ResponseWriter, r *http.Request, ttl time.Duration) {
	body, err := readLoginRequest(r)
	if err != nil {
		writeError(w, r, "Invalid request body.", nil, http.StatusUnprocessableEntity)
		return
	}

	var token string
	if body != nil && body.Username != "" && body.Password != "" {
		user, err := h.authUC.PasswordLogin(r.Context(), body.Username, body.Password)
		switch {
		case errors.Is(err, model.ErrInvalidCredentials):
			writeError(w, r, "Invalid username or password.", nil, http.StatusUnauthorized)
			return
		case err != nil:
			writeError(w, r, "Failed to verify credentials.", err, http.StatusInternalServerError)
			return
		}
		token = h.issue(w, r, user, ttl)
	} else {
		token = h.authorizeAndIssue(w, r, ttl)
	}
	if token == "" {
		return
	}

	writeJSON(w, r, http.StatusCreated, &model.LoginResponse{AccessToken: token})
}

// readLoginRequest decodes the optional JSON body. An empty body yields nil.
func readLoginRequest(r *http.Request) (*model.LoginRequest, error) {
	if r.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxLoginBody))
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(string(raw)); trimmed == "" || trimmed == "null" {
		return nil, nil
	}

	var req model.LoginRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
