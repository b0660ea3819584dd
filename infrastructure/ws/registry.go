package ws

import (
	"sync"

	"chat-relay/contract"
)

type set map[contract.Connection]struct{}

// Registry maps identity uids to the set of live connections bound to them.
// An identity may have zero, one, or many member connections (multiple
// devices or tabs). Reads hand out snapshots so fan-out never iterates a map
// under mutation.
type Registry struct {
	mu     sync.RWMutex
	rooms  map[string]set
	owners map[contract.Connection]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:  make(map[string]set),
		owners: make(map[contract.Connection]string),
	}
}

// Join adds the connection to the identity's room. A connection belongs to
// exactly one room for its whole life, established on authentication success.
func (r *Registry) Join(uid string, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[uid]
	if !ok {
		members = make(set)
		r.rooms[uid] = members
	}
	members[conn] = struct{}{}
	r.owners[conn] = uid
}

// Leave removes the connection from its room, if it ever joined one. Empty
// rooms are dropped so the registry only ever reflects live bindings.
func (r *Registry) Leave(conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uid, ok := r.owners[conn]
	if !ok {
		return
	}
	delete(r.owners, conn)

	members := r.rooms[uid]
	delete(members, conn)
	if len(members) == 0 {
		delete(r.rooms, uid)
	}
}

// Members returns a snapshot of the room for the given identity.
func (r *Registry) Members(uid string) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[uid]
	if !ok {
		return nil
	}
	snapshot := make([]contract.Connection, 0, len(members))
	for conn := range members {
		snapshot = append(snapshot, conn)
	}
	return snapshot
}
