package signaling

import "time"

// Conn is the transport handle the core tracks. The hub never owns the
// underlying socket; the WebSocket layer implements this interface and keeps
// ownership of reads, writes and closing.
type Conn interface {
	// Send writes one message best-effort. It must not block indefinitely;
	// failures are swallowed (delivery is at-most-once, no retries).
	Send(msg Message)

	// Ping sends a transport-level liveness probe.
	Ping()

	// Kill force-closes the underlying transport.
	Kill()

	// RemoteAddr is for logging only.
	RemoteAddr() string
}

// record is the registration state for one connection.
type record struct {
	role     Role
	streamID string
	peerID   string

	// alive is cleared when a probe is sent and set again by the pong
	// handler. A record that is still not alive at the next sweep is evicted.
	alive bool

	connectedAt time.Time
}

// registry maps live connections to their registration records. It has no
// locking of its own: every access happens under the hub mutex.
//
// Iteration order is whatever the map gives us. That is part of the
// contract: peerId uniqueness is not enforced, and forwarding stops at the
// first match encountered, so duplicate peerIds shadow each other until the
// first one disconnects.
type registry struct {
	records map[Conn]*record
}

func newRegistry() *registry {
	return &registry{records: make(map[Conn]*record)}
}

// register inserts or replaces the record for c. Replacement has no side
// effects; in particular it never triggers a disconnect broadcast.
func (r *registry) register(c Conn, rec *record) {
	r.records[c] = rec
}

func (r *registry) lookup(c Conn) (*record, bool) {
	rec, ok := r.records[c]
	return rec, ok
}

// remove deletes the record for c. Removing an absent connection is a no-op.
func (r *registry) remove(c Conn) {
	delete(r.records, c)
}

func (r *registry) len() int {
	return len(r.records)
}

// forEach visits every (conn, record) pair in unspecified order. The visitor
// returns false to stop early; firstMatch relies on this.
func (r *registry) forEach(visit func(Conn, *record) bool) {
	for c, rec := range r.records {
		if !visit(c, rec) {
			return
		}
	}
}

// firstMatch returns the first connection satisfying pred, or nil. See the
// registry doc comment for what first-match means with duplicate peerIds.
func (r *registry) firstMatch(pred func(Conn, *record) bool) Conn {
	var found Conn
	r.forEach(func(c Conn, rec *record) bool {
		if pred(c, rec) {
			found = c
			return false
		}
		return true
	})
	return found
}

// byPeerID locates the first connection registered with the given peerId.
// When role is non-empty the match is additionally restricted to that role.
func (r *registry) byPeerID(role Role, peerID string) Conn {
	if peerID == "" {
		return nil
	}
	return r.firstMatch(func(_ Conn, rec *record) bool {
		if role != "" && rec.role != role {
			return false
		}
		return rec.peerID == peerID
	})
}

// hasStreamer reports whether any registered streamer still carries the
// given streamId.
func (r *registry) hasStreamer(streamID string) bool {
	if streamID == "" {
		return false
	}
	return r.firstMatch(func(_ Conn, rec *record) bool {
		return rec.role == RoleStreamer && rec.streamID == streamID
	}) != nil
}

// streamSet is the index of streamIds with a live streamer. A member exists
// iff at least one registered streamer carries it; the hub maintains that
// invariant on register and disconnect.
type streamSet map[string]struct{}

func (s streamSet) add(id string) {
	if id != "" {
		s[id] = struct{}{}
	}
}

func (s streamSet) remove(id string) {
	delete(s, id)
}

func (s streamSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// snapshot returns the members as a fresh slice. Order is unspecified; the
// wire format is a set, not a sequence.
func (s streamSet) snapshot() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}
