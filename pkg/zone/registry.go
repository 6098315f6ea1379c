package zone

import (
	"sync"
)

// Registry holds the known zones in insertion order.
type Registry struct {
	mu sync.RWMutex

	// zones holds all zones in the order the core announced them.
	zones []Zone
}

// NewRegistry creates an empty zone registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Apply applies a subscription event and reports whether the registry
// changed shape (a zone was inserted, removed, or replaced).
func (r *Registry) Apply(ev Event) bool {
	switch ev.Kind {
	case EventSubscribed:
		r.HandleSubscribed(ev.Zones)
		return true
	case EventChanged:
		n := r.HandleChanged(ev.Added, ev.Removed)
		n += r.HandleUpdated(ev.Changed)
		return n > 0
	case EventUnsubscribed:
		r.Clear()
		return true
	default:
		return false
	}
}

// HandleSubscribed replaces the registry contents with zones.
// A zone repeating an earlier zone's identifier is dropped.
func (r *Registry) HandleSubscribed(zones []Zone) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.zones = make([]Zone, 0, len(zones))
	for _, z := range zones {
		if r.indexByID(z.ID) >= 0 {
			continue
		}
		r.zones = append(r.zones, z.Clone())
	}
}

// HandleChanged inserts added zones and deletes removed zone IDs.
// An added zone is skipped when its display name or ID is already known.
// Removing an unknown ID is a no-op. Returns the number of mutations.
func (r *Registry) HandleChanged(added []Zone, removed []string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, z := range added {
		if r.indexByName(z.DisplayName) >= 0 || r.indexByID(z.ID) >= 0 {
			continue
		}
		r.zones = append(r.zones, z.Clone())
		n++
	}

	for _, id := range removed {
		i := r.indexByID(id)
		if i < 0 {
			continue
		}
		r.zones = append(r.zones[:i], r.zones[i+1:]...)
		n++
	}
	return n
}

// HandleUpdated replaces zones in place by ID. Unknown IDs are ignored.
// Returns the number of zones replaced.
func (r *Registry) HandleUpdated(changed []Zone) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, z := range changed {
		i := r.indexByID(z.ID)
		if i < 0 {
			continue
		}
		r.zones[i] = z.Clone()
		n++
	}
	return n
}

// FindByDisplayName returns the first zone whose display name equals name.
func (r *Registry) FindByDisplayName(name string) (Zone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexByName(name)
	if i < 0 {
		return Zone{}, false
	}
	return r.zones[i].Clone(), true
}

// FindByID returns the zone with the given ID.
func (r *Registry) FindByID(id string) (Zone, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexByID(id)
	if i < 0 {
		return Zone{}, false
	}
	return r.zones[i].Clone(), true
}

// Lookup resolves a display name, falling back to a zone ID.
// Returns ErrZoneNotFound when neither matches.
func (r *Registry) Lookup(nameOrID string) (Zone, error) {
	if z, ok := r.FindByDisplayName(nameOrID); ok {
		return z, nil
	}
	if z, ok := r.FindByID(nameOrID); ok {
		return z, nil
	}
	return Zone{}, ErrZoneNotFound
}

// Zones returns a snapshot of all zones in insertion order.
func (r *Registry) Zones() []Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	zones := make([]Zone, len(r.zones))
	for i, z := range r.zones {
		zones[i] = z.Clone()
	}
	return zones
}

// Len returns the number of zones.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.zones)
}

// Clear removes all zones.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zones = nil
}

func (r *Registry) indexByID(id string) int {
	for i := range r.zones {
		if r.zones[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) indexByName(name string) int {
	for i := range r.zones {
		if r.zones[i].DisplayName == name {
			return i
		}
	}
	return -1
}
