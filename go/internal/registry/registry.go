package registry

// Participant is a connected party who may cast votes under a
// self-declared display name. Names are not authenticated and not
// guaranteed unique; the vote ledger keys on the name, so two live
// connections sharing a name count as a single voter.
type Participant struct {
	ConnID string
	Name   string
}

// Registry tracks which open connections are participants and which
// are presenters. It is pure membership bookkeeping with no poll
// logic. All access happens on the session goroutine, so the registry
// carries no lock of its own.
type Registry struct {
	participants map[string]Participant
	order        []string // participant conn ids, insertion order
	presenters   map[string]struct{}
}

func New() *Registry {
	return &Registry{
		participants: make(map[string]Participant),
		presenters:   make(map[string]struct{}),
	}
}

// RegisterParticipant binds a display name to a connection. Re-registering
// an already-known connection replaces its name in place.
func (r *Registry) RegisterParticipant(connID, name string) {
	if _, known := r.participants[connID]; !known {
		r.order = append(r.order, connID)
	}
	r.participants[connID] = Participant{ConnID: connID, Name: name}
}

// RegisterPresenter marks a connection as a presenter. Idempotent.
func (r *Registry) RegisterPresenter(connID string) {
	r.presenters[connID] = struct{}{}
}

// RemoveParticipant drops a participant entry. Reports whether the
// connection was a registered participant.
func (r *Registry) RemoveParticipant(connID string) bool {
	if _, ok := r.participants[connID]; !ok {
		return false
	}
	delete(r.participants, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// RemovePresenter drops a presenter entry. Reports whether the
// connection was a registered presenter.
func (r *Registry) RemovePresenter(connID string) bool {
	if _, ok := r.presenters[connID]; !ok {
		return false
	}
	delete(r.presenters, connID)
	return true
}

// Participant returns the entry for a connection, if registered.
func (r *Registry) Participant(connID string) (Participant, bool) {
	p, ok := r.participants[connID]
	return p, ok
}

// IsPresenter reports whether the connection registered as a presenter.
func (r *Registry) IsPresenter(connID string) bool {
	_, ok := r.presenters[connID]
	return ok
}

// FindParticipantByName returns the connection id currently bound to a
// display name. Used by the kick path. If several connections share the
// name, the earliest-registered one wins.
func (r *Registry) FindParticipantByName(name string) (string, bool) {
	for _, id := range r.order {
		if r.participants[id].Name == name {
			return id, true
		}
	}
	return "", false
}

// ParticipantNames returns the roster in registration order.
func (r *Registry) ParticipantNames() []string {
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		names = append(names, r.participants[id].Name)
	}
	return names
}

// PresenterIDs returns the connection ids of all presenters.
func (r *Registry) PresenterIDs() []string {
	ids := make([]string, 0, len(r.presenters))
	for id := range r.presenters {
		ids = append(ids, id)
	}
	return ids
}

// ParticipantCount returns the number of currently connected participants.
func (r *Registry) ParticipantCount() int {
	return len(r.participants)
}
