package event

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/user"
)

var (
	// errors
	ErrNotFound  = errors.New("event not found")
	ErrForbidden = errors.New("not enough rights on this event")
)

type (
	Repository interface {
		CreateEvent(ctx context.Context, evt Event) (Event, error)
		GetEventByID(ctx context.Context, id string) (Event, error)
		// FilterEventsForUser returns events owned by or shared with userID.
		FilterEventsForUser(ctx context.Context, userID string, filter QueryFilter) ([]Event, error)
		UpdateEvent(ctx context.Context, evt Event) (Event, error)
		DeleteEventsByID(ctx context.Context, ids ...string) error
		// EventsDueForReminder returns events whose RemindAt has passed and
		// which have not been reminded since `since`.
		EventsDueForReminder(ctx context.Context, now, since time.Time) ([]Event, error)
		MarkEventReminded(ctx context.Context, eventID string, at time.Time) error
	}

	UserDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	// PlanChecker is the slice of the plan service needed to validate a plan link.
	PlanChecker interface {
		CanLink(ctx context.Context, planID, actorID string) error
	}

	Service struct {
		repo    Repository
		users   UserDirectory
		plans   PlanChecker
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, users UserDirectory, plans PlanChecker, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		plans:   plans,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *Service) Create(ctx context.Context, ownerID string, ne NewEvent) (Event, error) {
	if ne.PlanID != "" && svc.plans != nil {
		if err := svc.plans.CanLink(ctx, ne.PlanID, ownerID); err != nil {
			return Event{}, core.NewValidationError(err, core.FieldError{Field: "plan_id", Error: err.Error()})
		}
	}

	now := time.Now().UTC()
	evt := Event{
		OwnerID:     ownerID,
		PlanID:      ne.PlanID,
		Title:       ne.Title,
		Description: ne.Description,
		Location:    ne.Location,
		StartsAt:    ne.StartsAt,
		EndsAt:      ne.EndsAt,
		Guests:      []Guest{},
		RemindAt:    ne.RemindAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateEvent(ctx, evt)
}

// Get returns the event when actorID is the owner or a guest;
// strangers get ErrNotFound so event existence is not leaked.
func (svc *Service) Get(ctx context.Context, id, actorID string) (Event, error) {
	evt, err := svc.repo.GetEventByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if !evt.CanView(actorID) {
		return Event{}, ErrNotFound
	}
	return evt, nil
}

func (svc *Service) Filter(ctx context.Context, actorID string, filter *QueryFilter) ([]Event, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.FilterEventsForUser(ctx, actorID, *filter)
}

func (svc *Service) Update(ctx context.Context, id, actorID string, ue UpdateEvent) (Event, error) {
	evt, err := svc.Get(ctx, id, actorID)
	if err != nil {
		return Event{}, err
	}
	if !evt.IsOwner(actorID) {
		return Event{}, ErrForbidden
	}

	if ue.Title != "" {
		evt.Title = ue.Title
	}
	if ue.Description != nil {
		evt.Description = *ue.Description
	}
	if ue.Location != nil {
		evt.Location = *ue.Location
	}
	if ue.StartsAt != nil {
		evt.StartsAt = *ue.StartsAt
	}
	if ue.EndsAt != nil {
		evt.EndsAt = *ue.EndsAt
	}
	if evt.EndsAt.Before(evt.StartsAt) {
		return Event{}, core.NewValidationError(nil,
			core.FieldError{Field: "ends_at", Error: "event cannot end before it starts"})
	}
	if ue.RemindAt != nil {
		evt.RemindAt = *ue.RemindAt
		evt.LastRemindedAt = time.Time{} // re-arm
	}
	evt.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEvent(ctx, evt)
}

func (svc *Service) Delete(ctx context.Context, id, actorID string) error {
	evt, err := svc.Get(ctx, id, actorID)
	if err != nil {
		return err
	}
	if !evt.IsOwner(actorID) {
		return ErrForbidden
	}
	return svc.repo.DeleteEventsByID(ctx, id)
}

// InviteGuest adds a user to the guest list and emails them an invitation.
func (svc *Service) InviteGuest(ctx context.Context, eventID, actorID string, ng NewGuest) (Event, error) {
	evt, err := svc.Get(ctx, eventID, actorID)
	if err != nil {
		return Event{}, err
	}
	if !evt.IsOwner(actorID) {
		return Event{}, ErrForbidden
	}
	if ng.UserID == evt.OwnerID {
		return Event{}, core.NewValidationError(nil,
			core.FieldError{Field: "user_id", Error: "owner cannot be invited as guest"})
	}

	guest, err := svc.users.GetByID(ctx, ng.UserID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Event{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return Event{}, errors.Wrap(err, "resolving guest")
	}

	if _, ok := evt.guestIndex(ng.UserID); ok {
		return evt, nil // already invited
	}
	evt.Guests = append(evt.Guests, Guest{UserID: ng.UserID, RSVP: RSVPInvited})
	evt.UpdatedAt = time.Now().UTC()
	evt, err = svc.repo.UpdateEvent(ctx, evt)
	if err != nil {
		return Event{}, err
	}

	if guest.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: guest.Name, Address: guest.Email}},
			Subject:      "You are invited: " + evt.Title,
			TemplateName: "event_invite",
			TemplateData: struct {
				Guest user.User
				Event Event
			}{guest, evt},
		})
	}
	return evt, nil
}

func (svc *Service) RemoveGuest(ctx context.Context, eventID, actorID, userID string) (Event, error) {
	evt, err := svc.Get(ctx, eventID, actorID)
	if err != nil {
		return Event{}, err
	}
	// guests may remove themselves; otherwise owner-only
	if !evt.IsOwner(actorID) && actorID != userID {
		return Event{}, ErrForbidden
	}
	idx, ok := evt.guestIndex(userID)
	if !ok {
		return Event{}, ErrNotFound
	}
	evt.Guests = append(evt.Guests[:idx], evt.Guests[idx+1:]...)
	evt.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEvent(ctx, evt)
}

// RSVP records the acting guest's answer to their invitation.
func (svc *Service) RSVP(ctx context.Context, eventID, actorID string, rr RSVPRequest) (Event, error) {
	evt, err := svc.Get(ctx, eventID, actorID)
	if err != nil {
		return Event{}, err
	}
	idx, ok := evt.guestIndex(actorID)
	if !ok {
		return Event{}, ErrForbidden // owner has no RSVP
	}
	evt.Guests[idx].RSVP = rr.RSVP
	evt.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEvent(ctx, evt)
}

// Reminder sweep support

func (svc *Service) DueForReminder(ctx context.Context, now, since time.Time) ([]Event, error) {
	return svc.repo.EventsDueForReminder(ctx, now, since)
}

func (svc *Service) MarkReminded(ctx context.Context, eventID string, at time.Time) error {
	return svc.repo.MarkEventReminded(ctx, eventID, at)
}
