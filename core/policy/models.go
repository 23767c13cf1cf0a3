package policy

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kazimoto/mipango/core"
)

// Categories
const (
	CategoryFunding = "funding"
	CategorySpace   = "space"
	CategoryConduct = "conduct"
	CategoryFood    = "food"
	CategoryTravel  = "travel"
	CategoryGeneral = "general"
)

// Policy is a campus policy entry (RSO handbook rules, funding guidelines etc.)
// served to clients and matched against chat prompts for relevance.
type Policy struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"` // e.g. "RSO-103"
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Keywords  []string  `json:"keywords"`
	Category  string    `json:"category"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewPolicy contains information needed to create a new Policy.
type NewPolicy struct {
	Code     string   `json:"code" validate:"required"`
	Title    string   `json:"title" validate:"required"`
	Body     string   `json:"body" validate:"required"`
	Keywords []string `json:"keywords" validate:"required,min=1"`
	Category string   `json:"category" validate:"required,oneof=funding space conduct food travel general"`
}

func (np *NewPolicy) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	np.Code = core.CleanString(np.Code, true /* lower */)
	np.Title = core.CleanString(np.Title)
	np.Body = core.CleanString(np.Body)
	for i, kw := range np.Keywords {
		np.Keywords[i] = core.CleanString(kw, true /* lower */)
	}

	if err := validate.Struct(np); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(ctx, np.Code)
}

// UpdatePolicy defines what information may be provided to modify an existing Policy.
type UpdatePolicy struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Keywords []string `json:"keywords" validate:"omitempty,min=1"`
	Category string   `json:"category" validate:"omitempty,oneof=funding space conduct food travel general"`
}

func (up *UpdatePolicy) Validate(orig Policy, validate *validator.Validate) error {
	title := core.CleanString(up.Title)
	if title != "" {
		up.Title = title
	} else {
		up.Title = orig.Title
	}

	body := core.CleanString(up.Body)
	if body != "" {
		up.Body = body
	} else {
		up.Body = orig.Body
	}

	if up.Keywords == nil {
		up.Keywords = orig.Keywords
	} else {
		for i, kw := range up.Keywords {
			up.Keywords[i] = core.CleanString(kw, true /* lower */)
		}
	}
	if up.Category == "" {
		up.Category = orig.Category
	}

	return validate.Struct(up)
}

// Match is a Policy scored against a piece of text.
type Match struct {
	Policy Policy `json:"policy"`
	Score  int    `json:"score"`
}
