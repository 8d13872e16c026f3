package hub

// RoomIndex is the inverse index tenantID -> set of connection IDs. Rooms are
// implicit: a room exists exactly while it has members, so an empty member set
// is removed immediately and the index never grows with dead tenants.
//
// Like Registry, it relies on the Hub's mutex for serialization.
type RoomIndex struct {
	rooms map[string]map[string]struct{}
}

// NewRoomIndex returns an empty room membership index.
func NewRoomIndex() *RoomIndex {
	return &RoomIndex{rooms: make(map[string]map[string]struct{})}
}

// Join adds connectionID to the tenant's room. Joining twice is a no-op.
func (ri *RoomIndex) Join(tenantID, connectionID string) {
	room, ok := ri.rooms[tenantID]
	if !ok {
		room = make(map[string]struct{})
		ri.rooms[tenantID] = room
	}
	room[connectionID] = struct{}{}
}

// Leave removes connectionID from the tenant's room and drops the room entry
// entirely once its member set is empty.
func (ri *RoomIndex) Leave(tenantID, connectionID string) {
	room, ok := ri.rooms[tenantID]
	if !ok {
		return
	}
	delete(room, connectionID)
	if len(room) == 0 {
		delete(ri.rooms, tenantID)
	}
}

// MembersOf returns the set of connection IDs currently in the tenant's room.
// The returned map is the live set; callers must not mutate it.
func (ri *RoomIndex) MembersOf(tenantID string) map[string]struct{} {
	return ri.rooms[tenantID]
}

// IsEmpty reports whether the tenant has no members.
func (ri *RoomIndex) IsEmpty(tenantID string) bool {
	return len(ri.rooms[tenantID]) == 0
}

// Count returns the number of members in the tenant's room.
func (ri *RoomIndex) Count(tenantID string) int {
	return len(ri.rooms[tenantID])
}

// Tenants returns the member count per tenant with at least one member.
func (ri *RoomIndex) Tenants() map[string]int {
	out := make(map[string]int, len(ri.rooms))
	for tenantID, room := range ri.rooms {
		out[tenantID] = len(room)
	}
	return out
}
