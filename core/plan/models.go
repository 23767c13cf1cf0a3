package plan

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kazimoto/mipango/core"
)

// Program types
const (
	TypeWorkshop   = "workshop"
	TypeFundraiser = "fundraiser"
	TypeSocial     = "social"
	TypeMeeting    = "meeting"
	TypeConference = "conference"
	TypeOther      = "other"
)

// Statuses
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusDone     = "done"
	StatusArchived = "archived"
)

// Collaborator roles
const (
	CollabViewer = "viewer"
	CollabEditor = "editor"
)

type ChecklistItem struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	Done           bool      `json:"done"`
	DueDate        time.Time `json:"due_date,omitempty"`
	LastRemindedAt time.Time `json:"-"`
}

type Collaborator struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"` // viewer | editor
}

// ProgramPlan is a campus program being planned: a checklist of tasks working
// towards a target date, owned by one user and optionally shared with others.
type ProgramPlan struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	ProgramType   string          `json:"program_type"`
	Status        string          `json:"status"`
	TargetDate    time.Time       `json:"target_date,omitempty"`
	Checklist     []ChecklistItem `json:"checklist"`
	Collaborators []Collaborator  `json:"collaborators"`
	CreatedAt     time.Time       `json:"created_at"` // UTC
	UpdatedAt     time.Time       `json:"updated_at"` // UTC
}

func (p *ProgramPlan) IsOwner(userID string) bool { return p.OwnerID == userID }

func (p *ProgramPlan) collaboratorRole(userID string) string {
	for _, c := range p.Collaborators {
		if c.UserID == userID {
			return c.Role
		}
	}
	return ""
}

// CanView reports whether userID has any relationship to the plan.
func (p *ProgramPlan) CanView(userID string) bool {
	return p.IsOwner(userID) || p.collaboratorRole(userID) != ""
}

// CanEdit reports whether userID may mutate the plan's fields and checklist.
func (p *ProgramPlan) CanEdit(userID string) bool {
	return p.IsOwner(userID) || p.collaboratorRole(userID) == CollabEditor
}

func (p *ProgramPlan) item(itemID string) (int, bool) {
	for i := range p.Checklist {
		if p.Checklist[i].ID == itemID {
			return i, true
		}
	}
	return 0, false
}

// NewPlan contains information needed to create a new ProgramPlan.
type NewPlan struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	ProgramType string    `json:"program_type" validate:"required,oneof=workshop fundraiser social meeting conference other"`
	TargetDate  time.Time `json:"target_date"`
}

func (np *NewPlan) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

// UpdatePlan defines what information may be provided to modify an existing ProgramPlan.
type UpdatePlan struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	ProgramType string     `json:"program_type" validate:"omitempty,oneof=workshop fundraiser social meeting conference other"`
	Status      string     `json:"status" validate:"omitempty,oneof=draft active done archived"`
	TargetDate  *time.Time `json:"target_date"`
}

func (up *UpdatePlan) Validate(validate *validator.Validate) error {
	up.Title = core.CleanString(up.Title)
	return validate.Struct(up)
}

// NewChecklistItem contains information needed to add a checklist item.
type NewChecklistItem struct {
	Text    string    `json:"text" validate:"required"`
	DueDate time.Time `json:"due_date"`
}

func (ni *NewChecklistItem) Validate(validate *validator.Validate) error {
	ni.Text = core.CleanString(ni.Text)
	return validate.Struct(ni)
}

// UpdateChecklistItem defines the mutable fields of a checklist item.
type UpdateChecklistItem struct {
	Text    string     `json:"text"`
	Done    *bool      `json:"done"`
	DueDate *time.Time `json:"due_date"`
}

func (ui *UpdateChecklistItem) Validate(validate *validator.Validate) error {
	ui.Text = core.CleanString(ui.Text)
	return validate.Struct(ui)
}

// NewCollaborator contains information needed to share a plan with a user.
type NewCollaborator struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=viewer editor"`
}

func (nc *NewCollaborator) Validate(validate *validator.Validate) error {
	nc.UserID = core.CleanString(nc.UserID)
	return validate.Struct(nc)
}

type QueryFilter struct {
	Search      string `query:"search"`
	Status      string `query:"status"`
	ProgramType string `query:"program_type"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Status == "" && qf.ProgramType == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.ProgramType = core.CleanString(qf.ProgramType, true /* lower */)
}
