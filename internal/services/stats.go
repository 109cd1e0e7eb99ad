package services

import (
	"context"

	"github.com/shieldline/siteapi/types"
)

// StatusCounter counts records grouped by status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// UserCounter counts all and active users.
type UserCounter interface {
	Count(ctx context.Context) (total, active int, err error)
}

// StatsService builds the admin dashboard summary.
type StatsService struct {
	posts         StatusCounter
	consultations StatusCounter
	contacts      StatusCounter
	users         UserCounter
}

func NewStatsService(posts, consultations, contacts StatusCounter, users UserCounter) *StatsService {
	return &StatsService{
		posts:         posts,
		consultations: consultations,
		contacts:      contacts,
		users:         users,
	}
}

func (s *StatsService) Dashboard(ctx context.Context) (types.DashboardStats, error) {
	var stats types.DashboardStats
	var err error

	if stats.PostsByStatus, err = s.posts.CountByStatus(ctx); err != nil {
		return types.DashboardStats{}, err
	}
	if stats.ConsultationsByStatus, err = s.consultations.CountByStatus(ctx); err != nil {
		return types.DashboardStats{}, err
	}
	if stats.ContactsByStatus, err = s.contacts.CountByStatus(ctx); err != nil {
		return types.DashboardStats{}, err
	}
	if stats.Users, stats.ActiveUsers, err = s.users.Count(ctx); err != nil {
		return types.DashboardStats{}, err
	}
	return stats, nil
}
