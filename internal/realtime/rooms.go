package realtime

type room struct {
	members map[string]Conn
	order   []string
}

// Rooms maps conversation ids to subscribed connections. Members are returned
// in join order so fan-out is deterministic.
type Rooms struct {
	subs   map[string]*room
	byConn map[string]map[string]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		subs:   make(map[string]*room),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join subscribes conn to conversationID. It reports false when conn was
// already subscribed.
func (r *Rooms) Join(conn Conn, conversationID string) bool {
	rm, ok := r.subs[conversationID]
	if !ok {
		rm = &room{members: make(map[string]Conn)}
		r.subs[conversationID] = rm
	}
	if _, dup := rm.members[conn.ID()]; dup {
		return false
	}
	rm.members[conn.ID()] = conn
	rm.order = append(rm.order, conn.ID())

	convs, ok := r.byConn[conn.ID()]
	if !ok {
		convs = make(map[string]struct{})
		r.byConn[conn.ID()] = convs
	}
	convs[conversationID] = struct{}{}
	return true
}

func (r *Rooms) Members(conversationID string) []Conn {
	rm, ok := r.subs[conversationID]
	if !ok {
		return nil
	}
	out := make([]Conn, 0, len(rm.order))
	for _, id := range rm.order {
		out = append(out, rm.members[id])
	}
	return out
}

func (r *Rooms) IsMember(conn Conn, conversationID string) bool {
	_, ok := r.byConn[conn.ID()][conversationID]
	return ok
}

// Drop removes every subscription held by conn.
func (r *Rooms) Drop(conn Conn) {
	convs, ok := r.byConn[conn.ID()]
	if !ok {
		return
	}
	delete(r.byConn, conn.ID())
	for convID := range convs {
		rm := r.subs[convID]
		if rm == nil {
			continue
		}
		delete(rm.members, conn.ID())
		for i, id := range rm.order {
			if id == conn.ID() {
				rm.order = append(rm.order[:i], rm.order[i+1:]...)
				break
			}
		}
		if len(rm.order) == 0 {
			delete(r.subs, convID)
		}
	}
}

func (r *Rooms) Len() int { return len(r.subs) }
