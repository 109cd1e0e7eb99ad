package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shieldline/siteapi/internal/logging"
	"github.com/shieldline/siteapi/internal/middleware"
	"github.com/shieldline/siteapi/internal/ratelimit"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxJSONBytes = 1 << 20
)

type contextKey string

const contextSessionKey contextKey = "session"

// session is the authenticated caller stored in the request context.
type session struct {
	user   types.User
	claims *services.Claims
	token  string
}

func withSession(ctx context.Context, s session) context.Context {
	return context.WithValue(ctx, contextSessionKey, s)
}

func sessionFromContext(ctx context.Context) (session, bool) {
	s, ok := ctx.Value(contextSessionKey).(session)
	if !ok || s.user.ID < 1 {
		return session{}, false
	}
	return s, true
}

// currentUser returns the authenticated user. Routes using it sit behind
// RequireAuth.
func currentUser(r *http.Request) types.User {
	s, _ := sessionFromContext(r.Context())
	return s.user
}

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Details any    `json:"details,omitempty"`
}

// ListResponse is a page of items.
type ListResponse struct {
	Items any `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, Envelope{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Error: message})
}

func writeErrorDetails(w http.ResponseWriter, status int, message string, details any) {
	writeJSON(w, status, Envelope{Success: false, Error: message, Details: details})
}

// responder turns service errors into responses. Internal error detail
// is only exposed in development.
type responder struct {
	dev bool
}

// fail writes the response for err. subject names the resource in
// not-found messages, e.g. "post" gives "post not found".
func (re responder) fail(w http.ResponseWriter, r *http.Request, err error, subject string) {
	var (
		verr     *services.ValidationError
		locked   *services.LockedError
		conflict *services.ConflictError
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &verr):
		writeErrorDetails(w, http.StatusBadRequest, "validation failed", verr.Fields)
	case errors.As(err, &locked):
		seconds := ratelimit.RetryAfterSeconds(locked.Remaining)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeErrorDetails(w, http.StatusForbidden, locked.Error(), map[string]int{"retry_after": seconds})
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrAccountDisabled), errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrSelfDelete):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, conflict.Message)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, subject+" already exists")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, subject+" not found")
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusBadRequest, "request body too large")
	default:
		re.internal(w, r, err)
	}
}

func (re responder) internal(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("request failed", "error", err)
	if re.dev {
		writeErrorDetails(w, http.StatusInternalServerError, "internal server error", map[string]string{"detail": err.Error()})
		return
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return invalidBody("request body is empty")
		}
		return invalidBody("invalid JSON body")
	}
	if dec.More() {
		return invalidBody("request body must contain a single JSON object")
	}
	return nil
}

func invalidBody(message string) error {
	return &services.ValidationError{Fields: map[string]string{"body": message}}
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
		if limit > maxLimit {
			limit = maxLimit
		}
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseID(r *http.Request, param string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", param)
	}
	return id, nil
}

func parseOptionalID(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return nil, fmt.Errorf("invalid %s", name)
	}
	return &id, nil
}

func clientInfo(r *http.Request) services.ClientInfo {
	return services.ClientInfo{
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// orPass returns mw, or a pass-through middleware when mw is nil.
func orPass(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw != nil {
		return mw
	}
	return func(next http.Handler) http.Handler { return next }
}
