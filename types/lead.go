package types

import "time"

// ConsultationStatus tracks a consultation request through the sales pipeline.
type ConsultationStatus string

const (
	ConsultationPending    ConsultationStatus = "pending"
	ConsultationInProgress ConsultationStatus = "in_progress"
	ConsultationCompleted  ConsultationStatus = "completed"
	ConsultationCancelled  ConsultationStatus = "cancelled"
)

// Valid reports whether s is a known consultation status.
func (s ConsultationStatus) Valid() bool {
	switch s {
	case ConsultationPending, ConsultationInProgress, ConsultationCompleted, ConsultationCancelled:
		return true
	}
	return false
}

// ContactStatus tracks a contact message.
type ContactStatus string

const (
	ContactNew      ContactStatus = "new"
	ContactRead     ContactStatus = "read"
	ContactReplied  ContactStatus = "replied"
	ContactArchived ContactStatus = "archived"
)

// Valid reports whether s is a known contact status.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactNew, ContactRead, ContactReplied, ContactArchived:
		return true
	}
	return false
}

// Priority ranks leads for follow-up.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Consultation is a request for a consulting engagement submitted from the
// public consultation form.
type Consultation struct {
	ID            int                `json:"id" db:"id"`
	Name          string             `json:"name" db:"name"`
	Email         string             `json:"email" db:"email"`
	Phone         string             `json:"phone" db:"phone"`
	Company       string             `json:"company" db:"company"`
	Service       string             `json:"service" db:"service"`
	Message       string             `json:"message" db:"message"`
	PreferredDate *time.Time         `json:"preferred_date,omitempty" db:"preferred_date"`
	Status        ConsultationStatus `json:"status" db:"status"`
	Priority      Priority           `json:"priority" db:"priority"`
	AssignedTo    *int               `json:"assigned_to,omitempty" db:"assigned_to"`
	Notes         string             `json:"notes" db:"notes"`
	IPAddress     string             `json:"ip_address" db:"ip_address"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}

// Contact is a general message submitted from the public contact form.
type Contact struct {
	ID         int           `json:"id" db:"id"`
	Name       string        `json:"name" db:"name"`
	Email      string        `json:"email" db:"email"`
	Phone      string        `json:"phone" db:"phone"`
	Subject    string        `json:"subject" db:"subject"`
	Message    string        `json:"message" db:"message"`
	Status     ContactStatus `json:"status" db:"status"`
	Priority   Priority      `json:"priority" db:"priority"`
	AssignedTo *int          `json:"assigned_to,omitempty" db:"assigned_to"`
	Notes      string        `json:"notes" db:"notes"`
	IPAddress  string        `json:"ip_address" db:"ip_address"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at" db:"updated_at"`
}

// LeadFilter narrows consultation and contact listings.
type LeadFilter struct {
	Status     string
	Priority   Priority
	AssignedTo *int
	Search     string
	Offset     int
	Limit      int
}

// LeadUpdate carries the admin-editable fields of a lead. Nil fields are
// left unchanged.
type LeadUpdate struct {
	Status     *string
	Priority   *Priority
	AssignedTo *int
	Unassign   bool
	Notes      *string
}
