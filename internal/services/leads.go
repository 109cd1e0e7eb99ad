package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shieldline/siteapi/internal/mq"
	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
)

// ConsultationRepository defines persistence operations for consultations.
type ConsultationRepository interface {
	List(ctx context.Context, filter types.LeadFilter) ([]types.Consultation, int, error)
	Get(ctx context.Context, id int) (types.Consultation, error)
	Create(ctx context.Context, c types.Consultation) (types.Consultation, error)
	Update(ctx context.Context, c types.Consultation) (types.Consultation, error)
	Delete(ctx context.Context, id int) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// ContactRepository defines persistence operations for contact messages.
type ContactRepository interface {
	List(ctx context.Context, filter types.LeadFilter) ([]types.Contact, int, error)
	Get(ctx context.Context, id int) (types.Contact, error)
	Create(ctx context.Context, c types.Contact) (types.Contact, error)
	Update(ctx context.Context, c types.Contact) (types.Contact, error)
	Delete(ctx context.Context, id int) error
	CountByStatus(ctx context.Context) (map[string]int, error)
}

// UserGetter loads a user by ID.
type UserGetter interface {
	GetByID(ctx context.Context, id int) (types.User, error)
}

// LeadNotifier announces new leads.
type LeadNotifier interface {
	NotifyLead(ctx context.Context, event mq.LeadEvent)
}

type ConsultationInput struct {
	Name          string `json:"name" validate:"required,min=2,max=100"`
	Email         string `json:"email" validate:"required,email,max=255"`
	Phone         string `json:"phone" validate:"omitempty,max=32"`
	Company       string `json:"company" validate:"omitempty,max=255"`
	Service       string `json:"service" validate:"required,max=128"`
	Message       string `json:"message" validate:"required,min=10,max=5000"`
	PreferredDate string `json:"preferred_date"`
}

type ContactInput struct {
	Name    string `json:"name" validate:"required,min=2,max=100"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Subject string `json:"subject" validate:"omitempty,max=255"`
	Message string `json:"message" validate:"required,min=10,max=5000"`
}

// LeadService handles consultation requests and contact messages.
type LeadService struct {
	consultations ConsultationRepository
	contacts      ContactRepository
	users         UserGetter
	notifier      LeadNotifier
}

func NewLeadService(
	consultations ConsultationRepository,
	contacts ContactRepository,
	users UserGetter,
	notifier LeadNotifier,
) *LeadService {
	return &LeadService{
		consultations: consultations,
		contacts:      contacts,
		users:         users,
		notifier:      notifier,
	}
}

// SubmitConsultation stores a public consultation request and announces it.
func (s *LeadService) SubmitConsultation(ctx context.Context, in ConsultationInput, ip string) (types.Consultation, error) {
	in.Name = plainText(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = plainText(in.Phone)
	in.Company = plainText(in.Company)
	in.Service = plainText(in.Service)
	in.Message = plainText(in.Message)
	if err := validateStruct(in); err != nil {
		return types.Consultation{}, err
	}

	preferred, err := parsePreferredDate(in.PreferredDate)
	if err != nil {
		return types.Consultation{}, err
	}

	c, err := s.consultations.Create(ctx, types.Consultation{
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Company:       in.Company,
		Service:       in.Service,
		Message:       in.Message,
		PreferredDate: preferred,
		Status:        types.ConsultationPending,
		Priority:      types.PriorityMedium,
		IPAddress:     ip,
	})
	if err != nil {
		return types.Consultation{}, err
	}

	s.notify(ctx, mq.LeadEvent{
		Kind:      mq.LeadConsultation,
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Service:   c.Service,
		CreatedAt: c.CreatedAt,
	})
	return c, nil
}

// SubmitContact stores a public contact message and announces it.
func (s *LeadService) SubmitContact(ctx context.Context, in ContactInput, ip string) (types.Contact, error) {
	in.Name = plainText(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Phone = plainText(in.Phone)
	in.Subject = plainText(in.Subject)
	in.Message = plainText(in.Message)
	if err := validateStruct(in); err != nil {
		return types.Contact{}, err
	}

	c, err := s.contacts.Create(ctx, types.Contact{
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Subject:   in.Subject,
		Message:   in.Message,
		Status:    types.ContactNew,
		Priority:  types.PriorityMedium,
		IPAddress: ip,
	})
	if err != nil {
		return types.Contact{}, err
	}

	s.notify(ctx, mq.LeadEvent{
		Kind:      mq.LeadContact,
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Subject:   c.Subject,
		CreatedAt: c.CreatedAt,
	})
	return c, nil
}

func (s *LeadService) ListConsultations(ctx context.Context, filter types.LeadFilter) ([]types.Consultation, int, error) {
	if err := validateLeadFilter(filter, func(status string) bool {
		return types.ConsultationStatus(status).Valid()
	}); err != nil {
		return nil, 0, err
	}
	return s.consultations.List(ctx, filter)
}

func (s *LeadService) GetConsultation(ctx context.Context, id int) (types.Consultation, error) {
	return s.consultations.Get(ctx, id)
}

func (s *LeadService) UpdateConsultation(ctx context.Context, id int, upd types.LeadUpdate) (types.Consultation, error) {
	c, err := s.consultations.Get(ctx, id)
	if err != nil {
		return types.Consultation{}, err
	}
	if upd.Status != nil {
		status := types.ConsultationStatus(*upd.Status)
		if !status.Valid() {
			return types.Consultation{}, fieldError("status", "must be one of: pending, in_progress, completed, cancelled")
		}
		c.Status = status
	}
	if err := s.applyLeadUpdate(ctx, upd, &c.Priority, &c.AssignedTo, &c.Notes); err != nil {
		return types.Consultation{}, err
	}
	return s.consultations.Update(ctx, c)
}

func (s *LeadService) DeleteConsultation(ctx context.Context, id int) error {
	return s.consultations.Delete(ctx, id)
}

func (s *LeadService) ListContacts(ctx context.Context, filter types.LeadFilter) ([]types.Contact, int, error) {
	if err := validateLeadFilter(filter, func(status string) bool {
		return types.ContactStatus(status).Valid()
	}); err != nil {
		return nil, 0, err
	}
	return s.contacts.List(ctx, filter)
}

func (s *LeadService) GetContact(ctx context.Context, id int) (types.Contact, error) {
	return s.contacts.Get(ctx, id)
}

func (s *LeadService) UpdateContact(ctx context.Context, id int, upd types.LeadUpdate) (types.Contact, error) {
	c, err := s.contacts.Get(ctx, id)
	if err != nil {
		return types.Contact{}, err
	}
	if upd.Status != nil {
		status := types.ContactStatus(*upd.Status)
		if !status.Valid() {
			return types.Contact{}, fieldError("status", "must be one of: new, read, replied, archived")
		}
		c.Status = status
	}
	if err := s.applyLeadUpdate(ctx, upd, &c.Priority, &c.AssignedTo, &c.Notes); err != nil {
		return types.Contact{}, err
	}
	return s.contacts.Update(ctx, c)
}

func (s *LeadService) DeleteContact(ctx context.Context, id int) error {
	return s.contacts.Delete(ctx, id)
}

// applyLeadUpdate applies the fields shared by both lead kinds.
func (s *LeadService) applyLeadUpdate(ctx context.Context, upd types.LeadUpdate, priority *types.Priority, assignedTo **int, notes *string) error {
	if upd.Priority != nil {
		if !upd.Priority.Valid() {
			return fieldError("priority", "must be one of: low, medium, high, urgent")
		}
		*priority = *upd.Priority
	}
	switch {
	case upd.Unassign:
		*assignedTo = nil
	case upd.AssignedTo != nil:
		if _, err := s.users.GetByID(ctx, *upd.AssignedTo); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fieldError("assigned_to", "user does not exist")
			}
			return err
		}
		id := *upd.AssignedTo
		*assignedTo = &id
	}
	if upd.Notes != nil {
		text := plainText(*upd.Notes)
		if len([]rune(text)) > 5000 {
			return fieldError("notes", "must be at most 5000 characters")
		}
		*notes = text
	}
	return nil
}

func (s *LeadService) notify(ctx context.Context, event mq.LeadEvent) {
	if s.notifier == nil {
		return
	}
	// The request may finish before the broker answers.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	s.notifier.NotifyLead(ctx, event)
}

func validateLeadFilter(filter types.LeadFilter, validStatus func(string) bool) error {
	if filter.Status != "" && !validStatus(filter.Status) {
		return fieldError("status", "unknown status")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return fieldError("priority", "unknown priority")
	}
	return nil
}

// parsePreferredDate accepts a calendar date or an RFC 3339 timestamp.
func parsePreferredDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fieldError("preferred_date", "must be a date (YYYY-MM-DD)")
}
