package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/types"
)

// DashboardHandler serves the admin dashboard: counts, the activity log
// and the caller's merged permissions.
type DashboardHandler struct {
	responder
	stats    *services.StatsService
	activity *services.ActivityService
	perms    *services.PermissionService
}

// NewDashboardHandler constructs a DashboardHandler with the provided dependencies.
func NewDashboardHandler(
	stats *services.StatsService,
	activity *services.ActivityService,
	perms *services.PermissionService,
	dev bool,
) *DashboardHandler {
	return &DashboardHandler{
		responder: responder{dev: dev},
		stats:     stats,
		activity:  activity,
		perms:     perms,
	}
}

// DashboardRouter registers dashboard routes on the admin router.
func DashboardRouter(r chi.Router, handler *DashboardHandler, require PermissionMiddleware) {
	r.With(require(types.ResourceDashboard, types.ActionView)).Get("/stats", handler.Stats)
	r.With(require(types.ResourceActivity, types.ActionView)).Get("/activity", handler.Activity)
	r.Get("/permissions", handler.Permissions)
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Dashboard(r.Context())
	if err != nil {
		h.internal(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, stats, "")
}

func (h *DashboardHandler) Activity(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := parseOptionalID(r, "user_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	entries, total, err := h.activity.List(r.Context(), types.ActivityFilter{
		UserID:     userID,
		Action:     strings.TrimSpace(q.Get("action")),
		EntityType: strings.TrimSpace(q.Get("entity_type")),
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		h.internal(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, ListResponse{Items: entries, Page: page, Limit: limit, Total: total}, "")
}

// Permissions returns the caller's merged permissions and menu access.
func (h *DashboardHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	access, err := h.perms.ForUser(r.Context(), currentUser(r))
	if err != nil {
		h.internal(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, access, "")
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health returns a liveness handler that also pings the database.
func Health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, Envelope{
					Success: false,
					Error:   "database unavailable",
				})
				return
			}
		}
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, "")
	}
}
