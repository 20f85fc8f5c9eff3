// Package metrics holds the relay's in-process event counters.
package metrics

import "sync"

// Counter names. The registry is schemaless; these constants exist so the
// hub, the WebSocket server and the tests agree on spelling.
const (
	RegisterStreamer    = "register_streamer"
	RegisterViewer      = "register_viewer"
	RegisterMultiViewer = "register_multi_viewer"
	RegisterUnknownRole = "register_unknown_role"

	ForwardOffer     = "forward_offer"
	ForwardAnswer    = "forward_answer"
	ForwardCandidate = "forward_candidate"

	DropUnmatchedTarget = "drop_unmatched_target"
	DropRateLimited     = "drop_rate_limited"

	BroadcastActiveStreams    = "broadcast_active_streams"
	BroadcastPeerDisconnected = "broadcast_peer_disconnected"

	MalformedMessage = "malformed_message"
	LivenessEviction = "liveness_eviction"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// Deployments that need a real metrics backend scrape these counters through
// the Prometheus text handler; keeping the registry a plain map keeps the
// signaling logic free of a metrics-library dependency.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

// Inc is a nil-safe increment so callers can run without metrics wired.
func (m *Metrics) Inc(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name]++
	m.mu.Unlock()
}

func (m *Metrics) Add(name string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
