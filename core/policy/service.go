package policy

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core"
)

var (
	// errors
	ErrNotFound   = errors.New("policy not found")
	ErrCodeExists = errors.New("a policy with this code already exists")

	wordRegex = regexp.MustCompile(`[a-z0-9]+`)

	// words too generic to carry relevance signal
	stopWords = map[string]struct{}{
		"the": {}, "and": {}, "for": {}, "with": {}, "can": {}, "how": {},
		"what": {}, "our": {}, "are": {}, "you": {}, "have": {}, "about": {},
		"this": {}, "that": {}, "not": {}, "any": {}, "all": {}, "get": {},
	}
)

type (
	Repository interface {
		CheckCodeUniqueness(ctx context.Context, code string, excluded ...Policy) error
		CreatePolicy(ctx context.Context, pol Policy) (Policy, error)
		QueryAllPolicies(ctx context.Context) ([]Policy, error)
		GetPolicyByID(ctx context.Context, id string) (Policy, error)
		UpdatePolicy(ctx context.Context, pol Policy) (Policy, error)
		DeletePoliciesByID(ctx context.Context, ids ...string) error
	}

	// Service serves the policy catalog. Reads used for relevance matching hit
	// an in-memory snapshot; writes go to the repository and refresh the snapshot.
	Service struct {
		repo Repository

		mu       sync.RWMutex
		snapshot []Policy
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckCodeUniqueness(ctx context.Context, code string, excl ...Policy) error {
	if err := svc.repo.CheckCodeUniqueness(ctx, code, excl...); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, np NewPolicy) (Policy, error) {
	pol := Policy{
		Code:      np.Code,
		Title:     np.Title,
		Body:      np.Body,
		Keywords:  np.Keywords,
		Category:  np.Category,
		UpdatedAt: time.Now().UTC(),
	}
	pol, err := svc.repo.CreatePolicy(ctx, pol)
	if err != nil {
		return Policy{}, err
	}
	return pol, svc.Refresh(ctx)
}

func (svc *Service) QueryAll(ctx context.Context) ([]Policy, error) {
	return svc.repo.QueryAllPolicies(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Policy, error) {
	return svc.repo.GetPolicyByID(ctx, id)
}

func (svc *Service) Update(ctx context.Context, id string, up UpdatePolicy) (Policy, error) {
	pol := Policy{
		ID:        id,
		Title:     up.Title,
		Body:      up.Body,
		Keywords:  up.Keywords,
		Category:  up.Category,
		UpdatedAt: time.Now().UTC(),
	}
	pol, err := svc.repo.UpdatePolicy(ctx, pol)
	if err != nil {
		return Policy{}, err
	}
	return pol, svc.Refresh(ctx)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	if err := svc.repo.DeletePoliciesByID(ctx, ids...); err != nil {
		return err
	}
	return svc.Refresh(ctx)
}

// Refresh reloads the in-memory snapshot from the repository.
// Called at startup and after every catalog write.
func (svc *Service) Refresh(ctx context.Context) error {
	pols, err := svc.repo.QueryAllPolicies(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing policy snapshot")
	}
	svc.mu.Lock()
	svc.snapshot = pols
	svc.mu.Unlock()
	return nil
}

// Relevant scores the catalog snapshot against `text` and returns the top
// `limit` policies by keyword overlap. Keyword hits weigh 2, title-word hits 1;
// zero-score policies are excluded; ties break on Code.
func (svc *Service) Relevant(text string, limit int) []Match {
	if limit <= 0 {
		return nil
	}
	terms := tokenize(text)
	if len(terms) == 0 {
		return nil
	}

	svc.mu.RLock()
	pols := svc.snapshot
	svc.mu.RUnlock()

	matches := make([]Match, 0, len(pols))
	for _, pol := range pols {
		score := scorePolicy(pol, terms)
		if score > 0 {
			matches = append(matches, Match{Policy: pol, Score: score})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Policy.Code < matches[j].Policy.Code
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func scorePolicy(pol Policy, terms map[string]struct{}) int {
	var score int
	for _, kw := range pol.Keywords {
		for term := range tokenize(kw) { // keywords may be multi-word
			if _, ok := terms[term]; ok {
				score += 2
			}
		}
	}
	for term := range tokenize(pol.Title) {
		if _, ok := terms[term]; ok {
			score++
		}
	}
	return score
}

// tokenize lowercases text and extracts significant terms.
func tokenize(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, w := range wordRegex.FindAllString(strings.ToLower(text), -1) {
		if len(w) < 3 {
			continue
		}
		if _, ok := stopWords[w]; ok {
			continue
		}
		terms[w] = struct{}{}
	}
	return terms
}
