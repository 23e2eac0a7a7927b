package automation

import (
	"context"
	"sync"
	"time"

	"dealerflow/internal/features/definition"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MemoryHookRepository struct {
	mu    sync.RWMutex
	hooks map[string]StepHook
}

func NewMemoryHookRepository() *MemoryHookRepository {
	return &MemoryHookRepository{hooks: make(map[string]StepHook)}
}

func (r *MemoryHookRepository) Create(_ context.Context, hook *StepHook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hook.ID.IsZero() {
		hook.ID = primitive.NewObjectID()
	}
	now := time.Now()
	hook.CreatedAt = now
	hook.UpdatedAt = now
	r.hooks[hook.ID.Hex()] = *hook
	return nil
}

func (r *MemoryHookRepository) FindByID(_ context.Context, id string) (*StepHook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hook, ok := r.hooks[id]
	if !ok {
		return nil, nil
	}
	return &hook, nil
}

func (r *MemoryHookRepository) FindActive(_ context.Context, processType definition.ProcessType, event HookEvent) (*StepHook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var newest *StepHook
	for id := range r.hooks {
		hook := r.hooks[id]
		if hook.ProcessType != processType || hook.Event != event || !hook.Active {
			continue
		}
		if newest == nil || hook.CreatedAt.After(newest.CreatedAt) {
			h := hook
			newest = &h
		}
	}
	return newest, nil
}

func (r *MemoryHookRepository) List(_ context.Context) ([]StepHook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StepHook, 0, len(r.hooks))
	for _, hook := range r.hooks {
		out = append(out, hook)
	}
	return out, nil
}

func (r *MemoryHookRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hooks, id)
	return nil
}
