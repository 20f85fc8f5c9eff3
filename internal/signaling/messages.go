package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// MessageType tags every wire message. Unknown tags are deliberately not an
// error: the router treats them as a no-op so older or newer clients can talk
// to the relay without being disconnected.
type MessageType string

const (
	// Inbound.
	MessageTypeRegister     MessageType = "register"
	MessageTypeOffer        MessageType = "offer"
	MessageTypeAnswer       MessageType = "answer"
	MessageTypeICECandidate MessageType = "ice-candidate"

	// Outbound.
	MessageTypeActiveStreams    MessageType = "active-streams"
	MessageTypeViewerReady      MessageType = "viewer-ready"
	MessageTypePeerDisconnected MessageType = "peer-disconnected"
)

// Role is the declared purpose of a registered connection.
//
// Values outside the three known roles are stored verbatim but never matched
// by any routing rule, so peers registering with an unknown role are
// effectively invisible to forwarding and broadcasts.
type Role string

const (
	RoleStreamer    Role = "streamer"
	RoleViewer      Role = "viewer"
	RoleMultiViewer Role = "multi-viewer"
)

// SDP mirrors the browser RTCSessionDescriptionInit shape used by offer and
// answer payloads. The relay forwards it untouched; the pion conversions
// exist for the Go peers in e2e/ and the integration tests.
type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

func SDPFromPion(desc webrtc.SessionDescription) SDP {
	return SDP{
		Type: desc.Type.String(),
		SDP:  desc.SDP,
	}
}

func (s SDP) ToPion() (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch s.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", s.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: s.SDP}, nil
}

// Candidate mirrors RTCIceCandidateInit.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

func CandidateFromPion(init webrtc.ICECandidateInit) Candidate {
	return Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func (c Candidate) ToPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// Message is the single envelope for all inbound and outbound signaling
// traffic, a tagged union on Type. Fields not used by a given type stay zero
// and are omitted on the wire.
type Message struct {
	Type MessageType `json:"type"`

	// register
	Role     Role   `json:"role,omitempty"`
	StreamID string `json:"streamId,omitempty"`
	PeerID   string `json:"peerId,omitempty"`

	// Targeted forwarding.
	Target     string `json:"target,omitempty"`
	FromPeerID string `json:"fromPeerId,omitempty"`

	Offer     *SDP       `json:"offer,omitempty"`
	Answer    *SDP       `json:"answer,omitempty"`
	Candidate *Candidate `json:"candidate,omitempty"`

	// active-streams. A pointer so the field is omitted on every other
	// message type yet still serializes as [] when the set is empty:
	// clients distinguish "no streams" from a missing field.
	Streams *[]string `json:"streams,omitempty"`

	// viewer-ready
	ViewerID string `json:"viewerId,omitempty"`
}

// ParseMessage decodes one inbound signaling message.
//
// Parsing is deliberately lenient: unknown fields and unknown type tags are
// accepted, and missing fields inside a recognized type are not validated
// here. Routing lookups on absent fields simply fail to match, which the
// router turns into a silent drop. Only syntactically invalid JSON is an
// error.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("decode signaling message: %w", err)
	}
	return msg, nil
}
