package adjustment

// Type describes a registered adjustment type. Weight orders adjustments for
// presentation: lower weights sort first.
type Type struct {
	ID     string
	Label  string
	Weight int
}

// Registry resolves adjustment type identifiers to their metadata.
type Registry interface {
	Get(id string) (Type, bool)
}

// MapRegistry is a Registry backed by a fixed set of types registered at
// composition time.
type MapRegistry struct {
	types map[string]Type
}

// NewRegistry builds a MapRegistry from the given types.
func NewRegistry(types ...Type) *MapRegistry {
	m := make(map[string]Type, len(types))
	for _, t := range types {
		m[t.ID] = t
	}
	return &MapRegistry{types: m}
}

// Get returns the type registered under id.
func (r *MapRegistry) Get(id string) (Type, bool) {
	t, ok := r.types[id]
	return t, ok
}

// DefaultTypes returns the standard adjustment types: promotions sort before
// fees and shipping, taxes after, manual entries last.
func DefaultTypes() []Type {
	return []Type{
		{ID: "promotion", Label: "Promotion", Weight: 10},
		{ID: "fee", Label: "Fee", Weight: 20},
		{ID: "shipping", Label: "Shipping", Weight: 30},
		{ID: "tax", Label: "Tax", Weight: 40},
		{ID: TypeCustom, Label: "Custom", Weight: 50},
	}
}

// DefaultRegistry returns a registry preloaded with DefaultTypes.
func DefaultRegistry() *MapRegistry {
	return NewRegistry(DefaultTypes()...)
}
