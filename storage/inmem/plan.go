package inmem

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kazimoto/mipango/core/plan"
)

type planRepository struct {
	db *DB
}

func NewPlanRepository(db *DB) plan.Repository {
	return &planRepository{db: db}
}

func (repo *planRepository) query() []plan.ProgramPlan {
	plans := make([]plan.ProgramPlan, 0, len(repo.db.plans))
	for _, p := range repo.db.plans {
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].UpdatedAt.After(plans[j].UpdatedAt) })
	return plans
}

func (repo *planRepository) CreatePlan(_ context.Context, pln plan.ProgramPlan) (plan.ProgramPlan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	pln.ID = newID()
	repo.db.plans[pln.ID] = pln
	return pln, nil
}

func (repo *planRepository) GetPlanByID(_ context.Context, id string) (plan.ProgramPlan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if pln, ok := repo.db.plans[id]; ok {
		return pln, nil
	}
	return plan.ProgramPlan{}, plan.ErrNotFound
}

func (repo *planRepository) FilterPlansForUser(_ context.Context, userID string, filter plan.QueryFilter) ([]plan.ProgramPlan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	plans := make([]plan.ProgramPlan, 0)
	for _, pln := range repo.query() {
		if !pln.CanView(userID) {
			continue
		}
		if matchPlan(pln, filter) {
			plans = append(plans, pln)
		}
	}
	return plans, nil
}

func matchPlan(pln plan.ProgramPlan, filter plan.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(pln.Title), search) &&
			!strings.Contains(strings.ToLower(pln.Description), search) {
			return false
		}
	}
	if filter.Status != "" && pln.Status != filter.Status {
		return false
	}
	if filter.ProgramType != "" && pln.ProgramType != filter.ProgramType {
		return false
	}
	return true
}

func (repo *planRepository) UpdatePlan(_ context.Context, pln plan.ProgramPlan) (plan.ProgramPlan, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.plans[pln.ID]; !ok {
		return plan.ProgramPlan{}, plan.ErrNotFound
	}
	repo.db.plans[pln.ID] = pln
	return pln, nil
}

func (repo *planRepository) DeletePlansByID(_ context.Context, ids ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for _, id := range ids {
		delete(repo.db.plans, id)
	}
	return nil
}

func (repo *planRepository) PlansWithDueItems(_ context.Context, from, to time.Time) ([]plan.ProgramPlan, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	plans := make([]plan.ProgramPlan, 0)
	for _, pln := range repo.query() {
		for _, item := range pln.Checklist {
			if item.Done || item.DueDate.IsZero() {
				continue
			}
			if item.DueDate.Before(from) || item.DueDate.After(to) {
				continue
			}
			plans = append(plans, pln)
			break
		}
	}
	return plans, nil
}

func (repo *planRepository) MarkItemsReminded(_ context.Context, planID string, itemIDs []string, at time.Time) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	pln, ok := repo.db.plans[planID]
	if !ok {
		return plan.ErrNotFound
	}
	marked := make(map[string]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		marked[id] = struct{}{}
	}
	for i := range pln.Checklist {
		if _, ok = marked[pln.Checklist[i].ID]; ok {
			pln.Checklist[i].LastRemindedAt = at
		}
	}
	repo.db.plans[planID] = pln
	return nil
}
