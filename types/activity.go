package types

import "time"

// ActivityLog is an append-only audit record of an admin action.
type ActivityLog struct {
	ID          int64     `json:"id" db:"id"`
	UserID      *int      `json:"user_id,omitempty" db:"user_id"`
	UserEmail   string    `json:"user_email,omitempty" db:"user_email"`
	Action      string    `json:"action" db:"action"`
	EntityType  string    `json:"entity_type" db:"entity_type"`
	EntityID    string    `json:"entity_id,omitempty" db:"entity_id"`
	Description string    `json:"description" db:"description"`
	IPAddress   string    `json:"ip_address" db:"ip_address"`
	UserAgent   string    `json:"user_agent" db:"user_agent"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// ActivityFilter narrows activity log listings.
type ActivityFilter struct {
	UserID     *int
	Action     string
	EntityType string
	Offset     int
	Limit      int
}

// UserFilter narrows user listings.
type UserFilter struct {
	Search string
	Offset int
	Limit  int
}

// DashboardStats summarizes content and lead counts for the admin dashboard.
type DashboardStats struct {
	PostsByStatus         map[string]int `json:"posts_by_status"`
	ConsultationsByStatus map[string]int `json:"consultations_by_status"`
	ContactsByStatus      map[string]int `json:"contacts_by_status"`
	Users                 int            `json:"users"`
	ActiveUsers           int            `json:"active_users"`
}

// Upload describes a stored file.
type Upload struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	Size         int64  `json:"size"`
	ContentType  string `json:"content_type"`
	OriginalName string `json:"original_name"`
}
