package plan

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core"
	"github.com/kazimoto/mipango/core/user"
)

var (
	// errors
	ErrNotFound  = errors.New("plan not found")
	ErrForbidden = errors.New("not enough rights on this plan")
)

type (
	Repository interface {
		CreatePlan(ctx context.Context, pln ProgramPlan) (ProgramPlan, error)
		GetPlanByID(ctx context.Context, id string) (ProgramPlan, error)
		// FilterPlansForUser returns plans owned by or shared with userID,
		// narrowed down by the available QueryFilter fields (ANDed).
		FilterPlansForUser(ctx context.Context, userID string, filter QueryFilter) ([]ProgramPlan, error)
		// UpdatePlan persists the full plan document.
		UpdatePlan(ctx context.Context, pln ProgramPlan) (ProgramPlan, error)
		DeletePlansByID(ctx context.Context, ids ...string) error
		// PlansWithDueItems returns plans holding at least one open checklist
		// item whose due date falls in [from, to].
		PlansWithDueItems(ctx context.Context, from, to time.Time) ([]ProgramPlan, error)
		MarkItemsReminded(ctx context.Context, planID string, itemIDs []string, at time.Time) error
	}

	// UserDirectory is the slice of the user service needed to resolve collaborators.
	UserDirectory interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		repo  Repository
		users UserDirectory
	}
)

func NewService(repo Repository, users UserDirectory) *Service {
	return &Service{repo: repo, users: users}
}

func (svc *Service) Create(ctx context.Context, ownerID string, np NewPlan) (ProgramPlan, error) {
	now := time.Now().UTC()
	pln := ProgramPlan{
		OwnerID:       ownerID,
		Title:         np.Title,
		Description:   np.Description,
		ProgramType:   np.ProgramType,
		Status:        StatusDraft,
		TargetDate:    np.TargetDate,
		Checklist:     []ChecklistItem{},
		Collaborators: []Collaborator{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreatePlan(ctx, pln)
}

// Get returns the plan when actorID has a relationship to it;
// strangers get ErrNotFound so plan existence is not leaked.
func (svc *Service) Get(ctx context.Context, id, actorID string) (ProgramPlan, error) {
	pln, err := svc.repo.GetPlanByID(ctx, id)
	if err != nil {
		return ProgramPlan{}, err
	}
	if !pln.CanView(actorID) {
		return ProgramPlan{}, ErrNotFound
	}
	return pln, nil
}

func (svc *Service) Filter(ctx context.Context, actorID string, filter *QueryFilter) ([]ProgramPlan, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	return svc.repo.FilterPlansForUser(ctx, actorID, *filter)
}

func (svc *Service) Update(ctx context.Context, id, actorID string, up UpdatePlan) (ProgramPlan, error) {
	pln, err := svc.getEditable(ctx, id, actorID)
	if err != nil {
		return ProgramPlan{}, err
	}

	if up.Title != "" {
		pln.Title = up.Title
	}
	if up.Description != nil {
		pln.Description = *up.Description
	}
	if up.ProgramType != "" {
		pln.ProgramType = up.ProgramType
	}
	if up.Status != "" {
		pln.Status = up.Status
	}
	if up.TargetDate != nil {
		pln.TargetDate = *up.TargetDate
	}
	pln.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePlan(ctx, pln)
}

// Delete removes the plan; only the owner may do so.
func (svc *Service) Delete(ctx context.Context, id, actorID string) error {
	pln, err := svc.Get(ctx, id, actorID)
	if err != nil {
		return err
	}
	if !pln.IsOwner(actorID) {
		return ErrForbidden
	}
	return svc.repo.DeletePlansByID(ctx, id)
}

// Checklist

func (svc *Service) AddItem(ctx context.Context, planID, actorID string, ni NewChecklistItem) (ProgramPlan, error) {
	pln, err := svc.getEditable(ctx, planID, actorID)
	if err != nil {
		return ProgramPlan{}, err
	}
	pln.Checklist = append(pln.Checklist, ChecklistItem{
		ID:      uuid.New().String(),
		Text:    ni.Text,
		DueDate: ni.DueDate,
	})
	pln.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePlan(ctx, pln)
}

func (svc *Service) UpdateItem(ctx context.Context, planID, itemID, actorID string, ui UpdateChecklistItem) (ProgramPlan, error) {
	pln, err := svc.getEditable(ctx, planID, actorID)
	if err != nil {
		return ProgramPlan{}, err
	}
	idx, ok := pln.item(itemID)
	if !ok {
		return ProgramPlan{}, ErrNotFound
	}

	if ui.Text != "" {
		pln.Checklist[idx].Text = ui.Text
	}
	if ui.Done != nil {
		pln.Checklist[idx].Done = *ui.Done
	}
	if ui.DueDate != nil {
		pln.Checklist[idx].DueDate = *ui.DueDate
	}
	pln.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePlan(ctx, pln)
}

func (svc *Service) RemoveItem(ctx context.Context, planID, itemID, actorID string) (ProgramPlan, error) {
	pln, err := svc.getEditable(ctx, planID, actorID)
	if err != nil {
		return ProgramPlan{}, err
	}
	idx, ok := pln.item(itemID)
	if !ok {
		return ProgramPlan{}, ErrNotFound
	}
	pln.Checklist = append(pln.Checklist[:idx], pln.Checklist[idx+1:]...)
	pln.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePlan(ctx, pln)
}

// Collaborators

// AddCollaborator shares the plan; only the owner manages collaborators.
func (svc *Service) AddCollaborator(ctx context.Context, planID, actorID string, nc NewCollaborator) (ProgramPlan, error) {
	pln, err := svc.Get(ctx, planID, actorID)
	if err != nil {
		return ProgramPlan{}, err
	}
	if !pln.IsOwner(actorID) {
		return ProgramPlan{}, ErrForbidden
	}
	if nc.UserID == pln.OwnerID {
		return ProgramPlan{}, core.NewValidationError(nil,
			core.FieldError{Field: "user_id", Error: "owner cannot be added as collaborator"})
	}
	if _, err = svc.users.GetByID(ctx, nc.UserID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return ProgramPlan{}, core.NewValidationError(err, core.FieldError{Field: "user_id", Error: err.Error()})
		}
		return ProgramPlan{}, errors.Wrap(err, "resolving collaborator")
	}

	// upsert: re-sharing with a new role replaces the old entry
	for i := range pln.Collaborators {
		if pln.Collaborators[i].UserID == nc.UserID {
			pln.Collaborators[i].Role = nc.Role
			pln.UpdatedAt = time.Now().UTC()
			return svc.repo.UpdatePlan(ctx, pln)
		}
	}
	pln.Collaborators = append(pln.Collaborators, Collaborator{UserID: nc.UserID, Role: nc.Role})
	pln.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdatePlan(ctx, pln)
}

func (svc *Service) RemoveCollaborator(ctx context.Context, planID, actorID, userID string) (ProgramPlan, error) {
	pln, err := svc.Get(ctx, planID, actorID)
	if err != nil {
		return ProgramPlan{}, err
	}
	// collaborators may remove themselves; otherwise owner-only
	if !pln.IsOwner(actorID) && actorID != userID {
		return ProgramPlan{}, ErrForbidden
	}
	for i := range pln.Collaborators {
		if pln.Collaborators[i].UserID == userID {
			pln.Collaborators = append(pln.Collaborators[:i], pln.Collaborators[i+1:]...)
			pln.UpdatedAt = time.Now().UTC()
			return svc.repo.UpdatePlan(ctx, pln)
		}
	}
	return ProgramPlan{}, ErrNotFound
}

// Reminder sweep support

func (svc *Service) PlansWithDueItems(ctx context.Context, from, to time.Time) ([]ProgramPlan, error) {
	return svc.repo.PlansWithDueItems(ctx, from, to)
}

func (svc *Service) MarkItemsReminded(ctx context.Context, planID string, itemIDs []string, at time.Time) error {
	return svc.repo.MarkItemsReminded(ctx, planID, itemIDs, at)
}

// CanLink verifies actorID may attach other resources (events) to the plan.
func (svc *Service) CanLink(ctx context.Context, planID, actorID string) error {
	_, err := svc.getEditable(ctx, planID, actorID)
	return err
}

func (svc *Service) getEditable(ctx context.Context, id, actorID string) (ProgramPlan, error) {
	pln, err := svc.Get(ctx, id, actorID)
	if err != nil {
		return ProgramPlan{}, err
	}
	if !pln.CanEdit(actorID) {
		return ProgramPlan{}, ErrForbidden
	}
	return pln, nil
}
