package relay

import "watchsync/internal/core/domain"

// ConnID identifies one live relay connection.
type ConnID string

// Tag is the room and display name a connection last announced.
type Tag struct {
	Room        domain.RoomCode
	DisplayName string
}

// Registry maps connections to rooms. It is not safe for concurrent use;
// the hub's dispatch goroutine is its only owner.
type Registry struct {
	tags  map[ConnID]Tag
	rooms map[domain.RoomCode]map[ConnID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		tags:  make(map[ConnID]Tag),
		rooms: make(map[domain.RoomCode]map[ConnID]struct{}),
	}
}

// Tag associates id with room and name, replacing any previous tag.
func (r *Registry) Tag(id ConnID, room domain.RoomCode, displayName string) {
	r.Untag(id)

	r.tags[id] = Tag{Room: room, DisplayName: displayName}
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[ConnID]struct{})
		r.rooms[room] = members
	}
	members[id] = struct{}{}
}

// Untag removes the association and returns what it was. Untagging an
// untagged connection is a no-op.
func (r *Registry) Untag(id ConnID) (Tag, bool) {
	tag, ok := r.tags[id]
	if !ok {
		return Tag{}, false
	}
	delete(r.tags, id)

	if members, ok := r.rooms[tag.Room]; ok {
		delete(members, id)
		if len(members) == 0 {
			delete(r.rooms, tag.Room)
		}
	}
	return tag, true
}

func (r *Registry) TagOf(id ConnID) (Tag, bool) {
	tag, ok := r.tags[id]
	return tag, ok
}

// MembersOf returns the connections currently tagged with room.
func (r *Registry) MembersOf(room domain.RoomCode) []ConnID {
	members := r.rooms[room]
	out := make([]ConnID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// Occupied reports whether room has at least one member.
func (r *Registry) Occupied(room domain.RoomCode) bool {
	return len(r.rooms[room]) > 0
}

// RoomCount is the number of rooms with at least one member.
func (r *Registry) RoomCount() int {
	return len(r.rooms)
}
