package services

import (
	"context"
	"log/slog"

	"github.com/shieldline/siteapi/types"
)

// Actions recorded in the activity log.
const (
	ActionLogin          = "login"
	ActionLogout         = "logout"
	ActionRegister       = "register"
	ActionCreate         = "create"
	ActionUpdate         = "update"
	ActionDelete         = "delete"
	ActionUpload         = "upload"
	ActionPasswordChange = "password_change"
	ActionAssignRoles    = "assign_roles"
)

// ActivityRepository defines persistence operations for the activity log.
type ActivityRepository interface {
	Create(ctx context.Context, entry types.ActivityLog) (types.ActivityLog, error)
	List(ctx context.Context, filter types.ActivityFilter) ([]types.ActivityLog, int, error)
}

// ActivityService records admin actions. A nil *ActivityService records
// nothing.
type ActivityService struct {
	repo   ActivityRepository
	logger *slog.Logger
}

func NewActivityService(repo ActivityRepository, logger *slog.Logger) *ActivityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityService{repo: repo, logger: logger}
}

// Log appends entry. A failed write is logged and never surfaces to the
// caller.
func (s *ActivityService) Log(ctx context.Context, entry types.ActivityLog) {
	if s == nil {
		return
	}
	if _, err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("write activity log",
			"action", entry.Action,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"error", err,
		)
	}
}

func (s *ActivityService) List(ctx context.Context, filter types.ActivityFilter) ([]types.ActivityLog, int, error) {
	return s.repo.List(ctx, filter)
}
