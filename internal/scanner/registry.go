package scanner

import (
	"fmt"
	"sort"

	"github.com/buemura/scanhub/pkg/types"
)

// Registry manages scan profiles by scan type.
type Registry struct {
	profiles map[types.ScanType]Profile
}

// NewRegistry creates a registry holding the given profiles.
func NewRegistry(profiles ...Profile) *Registry {
	r := &Registry{profiles: make(map[types.ScanType]Profile)}
	for _, p := range profiles {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the profile for p.Type.
func (r *Registry) Register(p Profile) {
	r.profiles[p.Type] = p
}

// Get retrieves the profile for a scan type.
func (r *Registry) Get(st types.ScanType) (Profile, error) {
	p, ok := r.profiles[st]
	if !ok {
		return Profile{}, fmt.Errorf("scan type %q not registered", st)
	}
	return p, nil
}

// All returns all registered profiles ordered by duration.
func (r *Registry) All() []Profile {
	result := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Duration < result[j].Duration
	})
	return result
}
