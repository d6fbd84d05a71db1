package correlate

// Registry holds rules keyed by provider plus the cross-cutting rules that
// apply to every event.
type Registry struct {
	byProvider map[string][]*Rule
	cross      []*Rule
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byProvider: make(map[string][]*Rule)}
}

// Register appends rules, in order, to the list of each named provider.
// Providers registered together form an alias group sharing the same rules.
func (r *Registry) Register(providers []string, rules ...Rule) {
	for i := range rules {
		rule := &rules[i]
		for _, p := range providers {
			r.byProvider[p] = append(r.byProvider[p], rule)
		}
	}
}

// RegisterCross appends rules to the cross-cutting list.
func (r *Registry) RegisterCross(rules ...Rule) {
	for i := range rules {
		r.cross = append(r.cross, &rules[i])
	}
}

// For returns the provider rules for an exact provider name.
func (r *Registry) For(provider string) []*Rule { return r.byProvider[provider] }

// Cross returns the cross-cutting rules.
func (r *Registry) Cross() []*Rule { return r.cross }
