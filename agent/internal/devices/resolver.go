package devices

import "strings"

// Resolver maps a device instance id or kernel device name to a friendly name.
type Resolver interface {
	Resolve(id string) (string, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(id string) (string, bool)

// Resolve calls f.
func (f ResolverFunc) Resolve(id string) (string, bool) { return f(id) }

// NopResolver knows no devices.
var NopResolver Resolver = ResolverFunc(func(string) (string, bool) { return "", false })

// StaticResolver looks ids up case-insensitively in a fixed table.
type StaticResolver map[string]string

// NewStaticResolver copies names, normalising keys for lookup.
func NewStaticResolver(names map[string]string) StaticResolver {
	r := make(StaticResolver, len(names))
	for id, name := range names {
		r[strings.ToUpper(strings.TrimSpace(id))] = name
	}
	return r
}

func (r StaticResolver) Resolve(id string) (string, bool) {
	name, ok := r[strings.ToUpper(strings.TrimSpace(id))]
	return name, ok && name != ""
}
