package workflow

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dukex/renflow/pkg/models"
	"github.com/google/uuid"
)

var ErrWorkflowNotFound = errors.New("workflow not found")

// Repository keeps the compiled workflows loaded into the process.
type Repository struct {
	mu        sync.RWMutex
	workflows map[string]*models.CompiledWorkflow
}

func NewRepository(workflows ...*models.CompiledWorkflow) *Repository {
	r := &Repository{workflows: make(map[string]*models.CompiledWorkflow, len(workflows))}

	for _, wf := range workflows {
		_, _ = r.Save(wf)
	}

	return r
}

// FetchAll returns the workflows ordered by id.
func (r *Repository) FetchAll() []*models.CompiledWorkflow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.CompiledWorkflow, 0, len(r.workflows))
	for _, wf := range r.workflows {
		out = append(out, wf)
	}

	slices.SortFunc(out, func(a, b *models.CompiledWorkflow) int {
		return strings.Compare(a.ID, b.ID)
	})

	return out
}

func (r *Repository) FetchByID(id string) (*models.CompiledWorkflow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wf, ok := r.workflows[id]
	if !ok {
		return nil, ErrWorkflowNotFound
	}

	return wf, nil
}

// Save stores wf, replacing any workflow with the same id. A missing id is
// generated and timestamps are filled in.
func (r *Repository) Save(wf *models.CompiledWorkflow) (*models.CompiledWorkflow, error) {
	if wf == nil {
		return nil, ErrUnrecognizedGraphShape
	}

	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}

	now := time.Now().UnixMilli()
	if wf.CreatedAt == 0 {
		wf.CreatedAt = now
	}

	if wf.UpdatedAt == 0 {
		wf.UpdatedAt = now
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.workflows[wf.ID] = wf

	return wf, nil
}

func (r *Repository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workflows[id]; !ok {
		return ErrWorkflowNotFound
	}

	delete(r.workflows, id)

	return nil
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.workflows)
}
