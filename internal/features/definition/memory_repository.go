package definition

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tiendc/go-deepcopy"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryDefinitionRepository is a map-backed DefinitionRepository used by
// tests and local development. Reads and writes exchange deep copies so a
// caller can never reach into the stored document.
type MemoryDefinitionRepository struct {
	mu   sync.RWMutex
	defs map[string]*ProcessDefinition
}

func NewMemoryDefinitionRepository() *MemoryDefinitionRepository {
	return &MemoryDefinitionRepository{defs: make(map[string]*ProcessDefinition)}
}

func cloneDefinition(src *ProcessDefinition) *ProcessDefinition {
	var dst ProcessDefinition
	_ = deepcopy.Copy(&dst, src)
	return &dst
}

func (r *MemoryDefinitionRepository) Insert(_ context.Context, def *ProcessDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if def.ID.IsZero() {
		def.ID = primitive.NewObjectID()
	}
	r.defs[def.ID.Hex()] = cloneDefinition(def)
	return nil
}

func (r *MemoryDefinitionRepository) FindByID(_ context.Context, id string) (*ProcessDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok {
		return nil, nil
	}
	return cloneDefinition(def), nil
}

func (r *MemoryDefinitionRepository) FindActiveByName(_ context.Context, name string) (*ProcessDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, def := range r.defs {
		if def.Name == name && def.Active {
			return cloneDefinition(def), nil
		}
	}
	return nil, nil
}

func (r *MemoryDefinitionRepository) List(_ context.Context, includeInactive bool) ([]ProcessDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ProcessDefinition
	for _, def := range r.defs {
		if !includeInactive && !def.Active {
			continue
		}
		out = append(out, *cloneDefinition(def))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProcessType != out[j].ProcessType {
			return out[i].ProcessType < out[j].ProcessType
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *MemoryDefinitionRepository) ListByType(_ context.Context, processType ProcessType, includeInactive bool) ([]ProcessDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ProcessDefinition
	for _, def := range r.defs {
		if def.ProcessType != processType {
			continue
		}
		if !includeInactive && !def.Active {
			continue
		}
		out = append(out, *cloneDefinition(def))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryDefinitionRepository) FindDefault(_ context.Context, processType ProcessType) (*ProcessDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, def := range r.defs {
		if def.ProcessType == processType && def.IsDefault && def.Active {
			return cloneDefinition(def), nil
		}
	}
	return nil, nil
}

func (r *MemoryDefinitionRepository) ClearDefault(_ context.Context, processType ProcessType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range r.defs {
		if def.ProcessType == processType && def.IsDefault {
			def.IsDefault = false
			def.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (r *MemoryDefinitionRepository) MarkDefault(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if def, ok := r.defs[id]; ok {
		def.IsDefault = true
		def.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryDefinitionRepository) SetActive(_ context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if def, ok := r.defs[id]; ok {
		def.Active = active
		def.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryDefinitionRepository) EnsureIndexes(_ context.Context) error { return nil }
