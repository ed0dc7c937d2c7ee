package templates

import (
	"sync"

	"PulseTrigger/internal/models"
)

// Registry maps trigger types to their ordered campaign templates.
// It is populated at startup and read by the trigger API and the dispatcher.
type Registry struct {
	mu     sync.RWMutex
	byType map[models.TriggerType][]models.EmailTemplate
	byID   map[string]models.EmailTemplate
}

func NewRegistry(tpls ...models.EmailTemplate) *Registry {
	r := &Registry{
		byType: make(map[models.TriggerType][]models.EmailTemplate),
		byID:   make(map[string]models.EmailTemplate),
	}
	for _, t := range tpls {
		r.Register(t)
	}
	return r
}

// Register adds t to the end of its trigger type's campaign.
// Re-registering an id under the same trigger type keeps its campaign
// position; a changed trigger type moves it to the end of the new campaign.
func (r *Registry) Register(t models.EmailTemplate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, exists := r.byID[t.ID]; exists {
		if old.TriggerType == t.TriggerType {
			bound := r.byType[t.TriggerType]
			for i := range bound {
				if bound[i].ID == t.ID {
					bound[i] = t
				}
			}
			r.byID[t.ID] = t
			return
		}
		r.removeLocked(t.ID)
	}
	r.byID[t.ID] = t
	r.byType[t.TriggerType] = append(r.byType[t.TriggerType], t)
}

// TemplatesFor returns a copy of the campaign bound to tt. Unknown or unbound
// types yield an empty slice.
func (r *Registry) TemplatesFor(tt models.TriggerType) []models.EmailTemplate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bound := r.byType[tt]
	out := make([]models.EmailTemplate, len(bound))
	copy(out, bound)
	return out
}

func (r *Registry) Lookup(id string) (models.EmailTemplate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byID[id]
	return t, ok
}

// Remove drops a template. Events that already reference it fail at dispatch.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false
	}
	r.removeLocked(id)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *Registry) removeLocked(id string) {
	t := r.byID[id]
	delete(r.byID, id)

	bound := r.byType[t.TriggerType]
	kept := bound[:0:0]
	for _, b := range bound {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		delete(r.byType, t.TriggerType)
		return
	}
	r.byType[t.TriggerType] = kept
}
