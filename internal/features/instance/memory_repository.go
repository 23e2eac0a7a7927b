package instance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tiendc/go-deepcopy"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryInstanceRepository mirrors the Mongo repository's semantics in a map,
// including the version check in Replace. Tests lean on that to exercise the
// engine's retry path without a database.
type MemoryInstanceRepository struct {
	mu    sync.RWMutex
	insts map[string]*ProcessInstance
}

func NewMemoryInstanceRepository() *MemoryInstanceRepository {
	return &MemoryInstanceRepository{insts: make(map[string]*ProcessInstance)}
}

func cloneInstance(src *ProcessInstance) *ProcessInstance {
	var dst ProcessInstance
	_ = deepcopy.Copy(&dst, src)
	return &dst
}

func (r *MemoryInstanceRepository) Insert(_ context.Context, inst *ProcessInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst.ID.IsZero() {
		inst.ID = primitive.NewObjectID()
	}
	r.insts[inst.ID.Hex()] = cloneInstance(inst)
	return nil
}

func (r *MemoryInstanceRepository) FindByID(_ context.Context, id string) (*ProcessInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.insts[id]
	if !ok {
		return nil, nil
	}
	return cloneInstance(inst), nil
}

func (r *MemoryInstanceRepository) ListBySubject(_ context.Context, subjectID string) ([]ProcessInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ProcessInstance
	for _, inst := range r.insts {
		if inst.SubjectID == subjectID {
			out = append(out, *cloneInstance(inst))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryInstanceRepository) ListByStatuses(_ context.Context, statuses []ProcessStatus) ([]ProcessInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := make(map[ProcessStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []ProcessInstance
	for _, inst := range r.insts {
		if want[inst.Status] {
			out = append(out, *cloneInstance(inst))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryInstanceRepository) Replace(_ context.Context, inst *ProcessInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.insts[inst.ID.Hex()]
	if !ok || stored.Version != inst.Version {
		return ErrStale
	}
	inst.Version++
	inst.UpdatedAt = time.Now()
	r.insts[inst.ID.Hex()] = cloneInstance(inst)
	return nil
}

func (r *MemoryInstanceRepository) EnsureIndexes(_ context.Context) error { return nil }
