package realtime

// RoomKind distinguishes the room namespaces.
type RoomKind string

const (
	// RoomKindClass rooms carry class-wide events and are staff-gated.
	RoomKindClass RoomKind = "class"

	// RoomKindStudent rooms carry per-student events; each student is
	// auto-joined to their own on authentication.
	RoomKindStudent RoomKind = "student"

	// RoomKindSession rooms hold the student participants of one live
	// session; polls and the session-ended notice fan out through them.
	RoomKindSession RoomKind = "session"
)

// Room is a typed room handle.
type Room struct {
	Kind RoomKind
	ID   string
}

// RoomClass returns the class room for a class ID.
func RoomClass(classID string) Room {
	return Room{Kind: RoomKindClass, ID: classID}
}

// RoomStudent returns the personal room for a student ID.
func RoomStudent(studentID string) Room {
	return Room{Kind: RoomKindStudent, ID: studentID}
}

// RoomSession returns the participant room for a session ID.
func RoomSession(sessionID string) Room {
	return Room{Kind: RoomKindSession, ID: sessionID}
}

// Key returns the room's string form, also used as the Redis presence
// room name.
func (r Room) Key() string {
	return string(r.Kind) + ":" + r.ID
}

// registry tracks which connections are members of which rooms. It
// holds no locks of its own; the hub's mutex guards all access.
type registry struct {
	members map[Room]map[string]*Connection // room -> connection ID -> connection
}

func newRegistry() *registry {
	return &registry{members: make(map[Room]map[string]*Connection)}
}

// join adds a connection to a room. Returns false if it was already a
// member.
func (r *registry) join(room Room, conn *Connection) bool {
	conns, ok := r.members[room]
	if !ok {
		conns = make(map[string]*Connection)
		r.members[room] = conns
	}
	if _, exists := conns[conn.id]; exists {
		return false
	}
	conns[conn.id] = conn
	conn.rooms[room] = struct{}{}
	return true
}

// leave removes a connection from a room. Empty rooms are dropped.
func (r *registry) leave(room Room, conn *Connection) {
	delete(conn.rooms, room)
	conns, ok := r.members[room]
	if !ok {
		return
	}
	delete(conns, conn.id)
	if len(conns) == 0 {
		delete(r.members, room)
	}
}

// leaveAll removes a connection from every room it joined and returns
// the rooms it left.
func (r *registry) leaveAll(conn *Connection) []Room {
	rooms := make([]Room, 0, len(conn.rooms))
	for room := range conn.rooms {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		r.leave(room, conn)
	}
	return rooms
}

// connections returns the current members of a room.
func (r *registry) connections(room Room) []*Connection {
	conns, ok := r.members[room]
	if !ok {
		return nil
	}
	out := make([]*Connection, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// size returns the number of members in a room.
func (r *registry) size(room Room) int {
	return len(r.members[room])
}
