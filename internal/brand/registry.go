package brand

import "sync"

// Registry is a read-mostly, ordered set of brands.
//
// Replace swaps the whole set atomically (config reload); readers get copies.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	brands map[string]Brand
}

func NewRegistry(brands []Brand) *Registry {
	r := &Registry{}
	r.Replace(brands)
	return r
}

// Replace installs a new brand set, keeping the given order.
// Later duplicates overwrite earlier ones but keep the first position.
func (r *Registry) Replace(brands []Brand) {
	order := make([]string, 0, len(brands))
	m := make(map[string]Brand, len(brands))
	for _, b := range brands {
		b = b.WithDefaults()
		if b.ID == "" {
			continue
		}
		if _, ok := m[b.ID]; !ok {
			order = append(order, b.ID)
		}
		m[b.ID] = b
	}

	r.mu.Lock()
	r.order = order
	r.brands = m
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (Brand, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.brands[id]
	return b, ok
}

// All returns the brands in registration order.
func (r *Registry) All() []Brand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Brand, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.brands[id])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
