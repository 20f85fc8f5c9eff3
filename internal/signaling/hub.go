package signaling

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/streamglass/signal-relay/internal/metrics"
)

// Hub owns the connection registry and the active-stream set and routes
// every signaling event: inbound messages, disconnects and liveness ticks.
//
// One coarse mutex serializes all of it. Each event reads and writes across
// both collections (a register may broadcast, a disconnect mutates the
// stream set mid-broadcast decision), so the entire
// register/forward/broadcast/remove sequence for one event must not
// interleave with another.
type Hub struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	reg     *registry
	streams streamSet
}

// NewHub returns an empty hub. logger must be non-nil; m may be nil to run
// without counters.
func NewHub(logger *slog.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		log:     logger,
		metrics: m,
		reg:     newRegistry(),
		streams: make(streamSet),
	}
}

// HandleMessage routes one raw inbound message from c.
//
// A payload that fails to decode is logged and dropped; the connection stays
// open. One bad message never deregisters or terminates a peer.
func (h *Hub) HandleMessage(c Conn, data []byte) {
	msg, err := ParseMessage(data)
	if err != nil {
		h.metrics.Inc(metrics.MalformedMessage)
		h.log.Warn("dropping malformed signaling message", "remote_addr", c.RemoteAddr(), "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch msg.Type {
	case MessageTypeRegister:
		h.registerLocked(c, msg)

	case MessageTypeOffer:
		// Offers can only sensibly land on a viewer.
		h.forwardLocked(metrics.ForwardOffer, RoleViewer, msg.Target, Message{
			Type:       MessageTypeOffer,
			Offer:      msg.Offer,
			StreamID:   msg.StreamID,
			FromPeerID: msg.FromPeerID,
		})

	case MessageTypeAnswer:
		h.forwardLocked(metrics.ForwardAnswer, RoleStreamer, msg.Target, Message{
			Type:       MessageTypeAnswer,
			Answer:     msg.Answer,
			StreamID:   msg.StreamID,
			FromPeerID: msg.FromPeerID,
		})

	case MessageTypeICECandidate:
		// Candidates flow both ways, so any role may be the target.
		h.forwardLocked(metrics.ForwardCandidate, "", msg.Target, Message{
			Type:       MessageTypeICECandidate,
			Candidate:  msg.Candidate,
			FromPeerID: msg.FromPeerID,
		})

	default:
		// Unknown message types are ignored, not errors.
		h.log.Debug("ignoring unknown message type", "type", string(msg.Type), "remote_addr", c.RemoteAddr())
	}
}

func (h *Hub) registerLocked(c Conn, msg Message) {
	// Replacement of an existing record is silent: no unregister broadcast,
	// no stream set cleanup for the old identity.
	h.reg.register(c, &record{
		role:        msg.Role,
		streamID:    msg.StreamID,
		peerID:      msg.PeerID,
		alive:       true,
		connectedAt: time.Now(),
	})

	switch msg.Role {
	case RoleStreamer:
		h.metrics.Inc(metrics.RegisterStreamer)
		h.streams.add(msg.StreamID)
		h.broadcastActiveStreamsLocked()
		h.log.Info("streamer registered",
			"peer_id", msg.PeerID,
			"stream_id", msg.StreamID,
			"remote_addr", c.RemoteAddr(),
		)

	case RoleMultiViewer:
		h.metrics.Inc(metrics.RegisterMultiViewer)
		// Direct snapshot to just this connection; nobody else is notified.
		snap := h.streams.snapshot()
		c.Send(Message{
			Type:    MessageTypeActiveStreams,
			Streams: &snap,
		})
		h.log.Info("multi-viewer registered", "peer_id", msg.PeerID, "remote_addr", c.RemoteAddr())

	case RoleViewer:
		h.metrics.Inc(metrics.RegisterViewer)
		h.log.Info("viewer registered",
			"peer_id", msg.PeerID,
			"stream_id", msg.StreamID,
			"remote_addr", c.RemoteAddr(),
		)
		// Tell the first streamer carrying this stream that a viewer wants
		// in. No streamer yet means no notification at all: the viewer is
		// expected to time out on its own.
		streamer := h.reg.firstMatch(func(_ Conn, rec *record) bool {
			return rec.role == RoleStreamer && rec.streamID == msg.StreamID
		})
		if streamer != nil {
			streamer.Send(Message{
				Type:     MessageTypeViewerReady,
				ViewerID: msg.PeerID,
				StreamID: msg.StreamID,
			})
		}

	default:
		// Stored but invisible to routing.
		h.metrics.Inc(metrics.RegisterUnknownRole)
		h.log.Warn("registered connection with unknown role", "role", string(msg.Role), "remote_addr", c.RemoteAddr())
	}
}

// forwardLocked delivers out to the first connection whose peerId equals
// target (restricted to role when non-empty). No match is a silent drop.
func (h *Hub) forwardLocked(counter string, role Role, target string, out Message) {
	dst := h.reg.byPeerID(role, target)
	if dst == nil {
		h.metrics.Inc(metrics.DropUnmatchedTarget)
		return
	}
	h.metrics.Inc(counter)
	dst.Send(out)
}

// broadcastActiveStreamsLocked pushes the current stream snapshot to every
// registered multi-viewer. The snapshot is taken once; within a single
// event every multi-viewer sees the identical list.
func (h *Hub) broadcastActiveStreamsLocked() {
	snap := h.streams.snapshot()
	out := Message{
		Type:    MessageTypeActiveStreams,
		Streams: &snap,
	}
	h.metrics.Inc(metrics.BroadcastActiveStreams)
	h.reg.forEach(func(c Conn, rec *record) bool {
		if rec.role == RoleMultiViewer {
			c.Send(out)
		}
		return true
	})
}

// HandleDisconnect runs the cleanup path for a closing connection: stream
// set maintenance, the peer-disconnected broadcast and registry removal.
// It is idempotent: closing twice, or closing a connection that never
// registered, is a no-op.
func (h *Hub) HandleDisconnect(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(c)
}

func (h *Hub) disconnectLocked(c Conn) {
	rec, ok := h.reg.lookup(c)
	if !ok {
		return
	}

	// Removal first: the closing connection must never be a broadcast
	// recipient, and removal is guaranteed even if every send below fails.
	h.reg.remove(c)

	var streamID string
	if rec.role == RoleStreamer {
		streamID = rec.streamID
		// The id stays in the set while another registered streamer still
		// carries it.
		if !h.reg.hasStreamer(rec.streamID) {
			h.streams.remove(rec.streamID)
		}
		h.broadcastActiveStreamsLocked()
	}

	out := Message{
		Type:     MessageTypePeerDisconnected,
		PeerID:   rec.peerID,
		StreamID: streamID,
	}
	h.metrics.Inc(metrics.BroadcastPeerDisconnected)
	h.reg.forEach(func(other Conn, _ *record) bool {
		other.Send(out)
		return true
	})

	h.log.Info("peer disconnected",
		"peer_id", rec.peerID,
		"role", string(rec.role),
		"stream_id", streamID,
		"remote_addr", c.RemoteAddr(),
		"connected_for", time.Since(rec.connectedAt).Round(time.Millisecond),
	)
}

// MarkAlive records a liveness acknowledgment from c. Acks from connections
// that are not (or no longer) registered are ignored.
func (h *Hub) MarkAlive(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rec, ok := h.reg.lookup(c); ok {
		rec.alive = true
	}
}

// Run drives the liveness sweep until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep()
		}
	}
}

// Sweep performs one liveness tick. Connections that answered since the
// last tick are probed again; connections that did not are evicted through
// the same cleanup path as a graceful close, then force-closed.
func (h *Hub) Sweep() {
	h.mu.Lock()
	var evict, probe []Conn
	h.reg.forEach(func(c Conn, rec *record) bool {
		if !rec.alive {
			evict = append(evict, c)
		} else {
			rec.alive = false
			probe = append(probe, c)
		}
		return true
	})
	for _, c := range evict {
		h.metrics.Inc(metrics.LivenessEviction)
		h.log.Warn("evicting unresponsive connection", "remote_addr", c.RemoteAddr())
		h.disconnectLocked(c)
	}
	h.mu.Unlock()

	// Probes and hard closes happen outside the lock; both are fire-and-forget.
	for _, c := range evict {
		c.Kill()
	}
	for _, c := range probe {
		c.Ping()
	}
}

// ActiveStreams returns a snapshot of the active-stream set.
func (h *Hub) ActiveStreams() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.streams.snapshot()
}

// ConnectionCount reports the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reg.len()
}
