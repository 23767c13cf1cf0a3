package event

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kazimoto/mipango/core"
)

// RSVP statuses
const (
	RSVPInvited  = "invited"
	RSVPGoing    = "going"
	RSVPDeclined = "declined"
)

type Guest struct {
	UserID string `json:"user_id"`
	RSVP   string `json:"rsvp"` // invited | going | declined
}

// Event is a scheduled campus happening, optionally linked to the
// ProgramPlan it came out of, shared with invited guests.
type Event struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	PlanID         string    `json:"plan_id,omitempty"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Location       string    `json:"location"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Guests         []Guest   `json:"guests"`
	RemindAt       time.Time `json:"remind_at,omitempty"`
	LastRemindedAt time.Time `json:"-"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

func (e *Event) IsOwner(userID string) bool { return e.OwnerID == userID }

func (e *Event) guestIndex(userID string) (int, bool) {
	for i := range e.Guests {
		if e.Guests[i].UserID == userID {
			return i, true
		}
	}
	return 0, false
}

// CanView reports whether userID is the owner or an invited guest.
func (e *Event) CanView(userID string) bool {
	if e.IsOwner(userID) {
		return true
	}
	_, ok := e.guestIndex(userID)
	return ok
}

// NewEvent contains information needed to create a new Event.
type NewEvent struct {
	PlanID      string    `json:"plan_id"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required,gtefield=StartsAt"`
	RemindAt    time.Time `json:"remind_at"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	ne.Location = core.CleanString(ne.Location)
	return validate.Struct(ne)
}

// UpdateEvent defines what information may be provided to modify an existing Event.
type UpdateEvent struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Location    *string    `json:"location"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	RemindAt    *time.Time `json:"remind_at"`
}

func (ue *UpdateEvent) Validate(validate *validator.Validate) error {
	ue.Title = core.CleanString(ue.Title)
	return validate.Struct(ue)
}

// NewGuest contains information needed to invite a user to an event.
type NewGuest struct {
	UserID string `json:"user_id" validate:"required"`
}

func (ng *NewGuest) Validate(validate *validator.Validate) error {
	ng.UserID = core.CleanString(ng.UserID)
	return validate.Struct(ng)
}

// RSVPRequest carries a guest's answer to an invitation.
type RSVPRequest struct {
	RSVP string `json:"rsvp" validate:"required,oneof=going declined"`
}

func (rr *RSVPRequest) Validate(validate *validator.Validate) error {
	rr.RSVP = core.CleanString(rr.RSVP, true /* lower */)
	return validate.Struct(rr)
}

type QueryFilter struct {
	Search   string `query:"search"`
	Upcoming *bool  `query:"upcoming"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
