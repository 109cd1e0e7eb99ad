package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/types"
)

// AuthCookieName is the cookie carrying the session JWT.
const AuthCookieName = "auth_token"

// AuthHandler provides login, registration and self-service account endpoints.
type AuthHandler struct {
	responder
	auth         *services.AuthService
	perms        *services.PermissionService
	cookieSecure bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(auth *services.AuthService, perms *services.PermissionService, cookieSecure, dev bool) *AuthHandler {
	return &AuthHandler{
		responder:    responder{dev: dev},
		auth:         auth,
		perms:        perms,
		cookieSecure: cookieSecure,
	}
}

// AuthRoutes holds the middleware applied to individual auth routes.
type AuthRoutes struct {
	LoginLimit    func(http.Handler) http.Handler
	RegisterLimit func(http.Handler) http.Handler
	RequireAuth   func(http.Handler) http.Handler
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, mw AuthRoutes) {
	r.With(orPass(mw.LoginLimit)).Post("/login", handler.Login)
	r.With(orPass(mw.RegisterLimit)).Post("/register", handler.Register)
	r.Post("/logout", handler.Logout)
	r.Group(func(r chi.Router) {
		r.Use(orPass(mw.RequireAuth))
		r.Get("/me", handler.Me)
		r.Put("/profile", handler.UpdateProfile)
		r.Put("/password", handler.ChangePassword)
	})
}

// RequireAuth authenticates the request from the auth_token cookie or an
// Authorization bearer token and stores the caller in the context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := requestToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		user, claims, err := h.auth.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, services.ErrAccountDisabled) {
				h.clearCookie(w)
				writeError(w, http.StatusUnauthorized, "account is disabled")
				return
			}
			if services.IsNotFound(err) || errors.Is(err, services.ErrInvalidToken) {
				writeError(w, http.StatusUnauthorized, "invalid or expired session")
				return
			}
			h.internal(w, r, err)
			return
		}

		ctx := withSession(r.Context(), session{user: user, claims: claims, token: token})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects callers whose roles do not grant action on
// resource. It must run after RequireAuth.
func (h *AuthHandler) RequirePermission(resource types.Resource, action types.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := sessionFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			allowed, err := h.perms.Can(r.Context(), s.user, resource, action)
			if err != nil {
				h.internal(w, r, err)
				return
			}
			if !allowed {
				writeError(w, http.StatusForbidden, "you do not have permission to "+string(action)+" "+string(resource))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "user")
		return
	}

	verr := &services.ValidationError{}
	if strings.TrimSpace(req.Email) == "" {
		verr.Add("email", "is required")
	}
	if req.Password == "" {
		verr.Add("password", "is required")
	}
	if err := verr.Err(); err != nil {
		h.fail(w, r, err, "user")
		return
	}

	res, err := h.auth.Authenticate(r.Context(), req.Email, req.Password, clientInfo(r))
	if err != nil {
		h.fail(w, r, err, "user")
		return
	}

	access, err := h.perms.ForUser(r.Context(), res.User)
	if err != nil {
		h.internal(w, r, err)
		return
	}

	h.setCookie(w, res.Token, res.ExpiresAt)
	writeSuccess(w, http.StatusOK, AuthResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      res.User,
		Access:    access,
	}, "signed in")
}

// Register creates a self-service account. The new account has no admin
// permissions until an administrator assigns roles.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "user")
		return
	}

	user, err := h.auth.Register(r.Context(), req, clientInfo(r))
	if err != nil {
		h.fail(w, r, err, "user")
		return
	}
	writeSuccess(w, http.StatusCreated, user, "account created")
}

// Logout clears the auth cookie. The session row is removed when the
// request carries a valid token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := requestToken(r); token != "" {
		userID := 0
		if claims, err := h.auth.Tokens().Parse(token); err == nil {
			userID = claims.UserID
		}
		h.auth.Logout(r.Context(), token, userID, clientInfo(r))
	}
	h.clearCookie(w)
	writeSuccess(w, http.StatusOK, nil, "signed out")
}

// Me returns the current user and their effective permissions.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	access, err := h.perms.ForUser(r.Context(), user)
	if err != nil {
		h.internal(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, MeResponse{User: user, Access: access}, "")
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req services.ProfileInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "user")
		return
	}

	user, err := h.auth.UpdateProfile(r.Context(), currentUser(r).ID, req)
	if err != nil {
		h.fail(w, r, err, "user")
		return
	}
	writeSuccess(w, http.StatusOK, user, "profile updated")
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err, "user")
		return
	}

	if err := h.auth.ChangePassword(r.Context(), currentUser(r).ID, req.CurrentPassword, req.NewPassword, clientInfo(r)); err != nil {
		h.fail(w, r, err, "user")
		return
	}
	writeSuccess(w, http.StatusOK, nil, "password changed")
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(h.auth.Tokens().TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type AuthResponse struct {
	Token     string                     `json:"token"`
	ExpiresAt time.Time                  `json:"expires_at"`
	User      types.User                 `json:"user"`
	Access    types.EffectivePermissions `json:"access"`
}

type MeResponse struct {
	User   types.User                 `json:"user"`
	Access types.EffectivePermissions `json:"access"`
}

// requestToken returns the auth_token cookie, falling back to a bearer token.
func requestToken(r *http.Request) string {
	if c, err := r.Cookie(AuthCookieName); err == nil && strings.TrimSpace(c.Value) != "" {
		return strings.TrimSpace(c.Value)
	}
	token, err := bearerToken(r)
	if err != nil {
		return ""
	}
	return token
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
