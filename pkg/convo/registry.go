package convo

import "sync"

// Registry maps conversation ids to live conversations. Inserts are
// insert-if-absent: delivering the same invite twice must not duplicate
// or reset conversation state.
type Registry struct {
	mu     sync.RWMutex
	convos map[string]Conversation
}

func NewRegistry() *Registry {
	return &Registry{convos: make(map[string]Conversation)}
}

// Get looks a conversation up by id.
func (r *Registry) Get(id string) (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.convos[id]
	return c, ok
}

// Insert registers a conversation if its id is absent. It returns the
// registered conversation and whether the insert happened; when the id
// already existed, the existing conversation is returned untouched.
func (r *Registry) Insert(c Conversation) (Conversation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.convos[c.ID()]; ok {
		return existing, false
	}
	r.convos[c.ID()] = c
	return c, true
}

// Remove drops a conversation by id. Used to roll a registration back
// when the invite announcing it could not be dispatched.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.convos, id)
}

// IDs returns the registered conversation ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.convos))
	for id := range r.convos {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered conversations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.convos)
}
