package connector

import "github.com/and161185/postpilot/internal/model"

// Registry is the closed dispatch table built at startup. Lookups are keyed
// by the Platform enum, so an unknown platform is impossible to register and
// a missing one is an explicit miss, not a runtime default branch.
type Registry struct {
	byPlatform map[model.Platform]Connector
}

// NewRegistry builds the table from the given connectors. Registering two
// connectors for one platform keeps the last; that is a wiring bug the tests
// catch, not a runtime condition.
func NewRegistry(conns ...Connector) *Registry {
	r := &Registry{byPlatform: make(map[model.Platform]Connector, len(conns))}
	for _, c := range conns {
		r.byPlatform[c.Platform()] = c
	}
	return r
}

// Lookup returns the connector for a platform, if one was registered.
func (r *Registry) Lookup(p model.Platform) (Connector, bool) {
	c, ok := r.byPlatform[p]
	return c, ok
}
