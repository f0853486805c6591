package forecast

// Registry holds the registered forecast models in a stable order.
type Registry struct {
	order  []string
	models map[string]Model
}

// NewRegistry returns a registry with all built-in models registered.
func NewRegistry() *Registry {
	r := &Registry{models: make(map[string]Model)}
	for _, m := range []Model{
		MovingAverage{},
		ExponentialSmoothing{},
		Holt{},
		HoltWinters{},
		SeasonalNaive{},
	} {
		r.Register(m)
	}
	return r
}

// Register adds a model. A model with a duplicate id replaces the original.
func (r *Registry) Register(m Model) {
	if _, exists := r.models[m.ID()]; !exists {
		r.order = append(r.order, m.ID())
	}
	r.models[m.ID()] = m
}

// Get returns the model with the given id.
func (r *Registry) Get(id string) (Model, bool) {
	m, ok := r.models[id]
	return m, ok
}

// List returns all models in registration order.
func (r *Registry) List() []Model {
	out := make([]Model, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

// HasTunableParams reports whether the model declares at least one parameter
// range, i.e. whether it is eligible for grid search.
func HasTunableParams(m Model) bool {
	return len(m.Ranges()) > 0
}
