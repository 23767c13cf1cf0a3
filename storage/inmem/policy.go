package inmem

import (
	"context"
	"sort"

	"github.com/kazimoto/mipango/core/policy"
)

type policyRepository struct {
	db *DB
}

func NewPolicyRepository(db *DB) policy.Repository {
	return &policyRepository{db: db}
}

func (repo *policyRepository) query() []policy.Policy {
	pols := make([]policy.Policy, 0, len(repo.db.policies))
	for _, p := range repo.db.policies {
		pols = append(pols, p)
	}
	sort.Slice(pols, func(i, j int) bool { return pols[i].Code < pols[j].Code })
	return pols
}

func (repo *policyRepository) CheckCodeUniqueness(_ context.Context, code string, excluded ...policy.Policy) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excl := make(map[string]struct{}, len(excluded))
	for _, pol := range excluded {
		excl[pol.ID] = struct{}{}
	}
	for _, pol := range repo.query() {
		if _, ok := excl[pol.ID]; ok {
			continue
		}
		if pol.Code == code {
			return policy.ErrCodeExists
		}
	}
	return nil
}

func (repo *policyRepository) CreatePolicy(_ context.Context, pol policy.Policy) (policy.Policy, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	pol.ID = newID()
	repo.db.policies[pol.ID] = pol
	return pol, nil
}

func (repo *policyRepository) QueryAllPolicies(_ context.Context) ([]policy.Policy, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.query(), nil
}

func (repo *policyRepository) GetPolicyByID(_ context.Context, id string) (policy.Policy, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if pol, ok := repo.db.policies[id]; ok {
		return pol, nil
	}
	return policy.Policy{}, policy.ErrNotFound
}

func (repo *policyRepository) UpdatePolicy(_ context.Context, pol policy.Policy) (policy.Policy, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	// only save set fields
	orig, ok := repo.db.policies[pol.ID]
	if !ok {
		return policy.Policy{}, policy.ErrNotFound
	}
	if pol.Title != "" {
		orig.Title = pol.Title
	}
	if pol.Body != "" {
		orig.Body = pol.Body
	}
	if pol.Keywords != nil {
		orig.Keywords = pol.Keywords
	}
	if pol.Category != "" {
		orig.Category = pol.Category
	}
	if !pol.UpdatedAt.IsZero() {
		orig.UpdatedAt = pol.UpdatedAt
	}

	repo.db.policies[pol.ID] = orig
	return orig, nil
}

func (repo *policyRepository) DeletePoliciesByID(_ context.Context, ids ...string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	for _, id := range ids {
		delete(repo.db.policies, id)
	}
	return nil
}
