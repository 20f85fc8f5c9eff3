// Command streamer-go is an E2E harness peer: it registers with the relay as
// a streamer and pushes numbered frames over a "media" DataChannel to every
// viewer the relay announces.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/streamglass/signal-relay/internal/peerlink"
	"github.com/streamglass/signal-relay/internal/signaling"
)

func main() {
	relayURL := envOrDefault("RELAY_URL", "ws://127.0.0.1:5000/ws")
	streamID := envOrDefault("STREAM_ID", "e2e-stream")
	peerID := envOrDefault("PEER_ID", "e2e-streamer")

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ws, _, err := websocket.DefaultDialer.Dial(relayURL, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dial %s: %v\n", relayURL, err)
		os.Exit(1)
	}
	defer ws.Close()

	api, err := peerlink.NewAPI(peerlink.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "webrtc api: %v\n", err)
		os.Exit(1)
	}

	var writeMu sync.Mutex
	send := func(msg signaling.Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := ws.WriteJSON(msg); err != nil {
			logger.Error("relay write failed", "type", string(msg.Type), "err", err)
		}
	}

	send(signaling.Message{
		Type:     signaling.MessageTypeRegister,
		Role:     signaling.RoleStreamer,
		StreamID: streamID,
		PeerID:   peerID,
	})
	logger.Info("registered", "stream_id", streamID, "peer_id", peerID)

	// One peer connection per announced viewer.
	var peersMu sync.Mutex
	peers := map[string]*webrtc.PeerConnection{}

	offerViewer := func(viewerID string) {
		pc, err := api.NewPeerConnection(webrtc.Configuration{})
		if err != nil {
			logger.Error("new peer connection", "err", err)
			return
		}
		peersMu.Lock()
		peers[viewerID] = pc
		peersMu.Unlock()

		pc.OnICECandidate(func(c *webrtc.ICECandidate) {
			if c == nil {
				return
			}
			wire := signaling.CandidateFromPion(c.ToJSON())
			send(signaling.Message{
				Type:       signaling.MessageTypeICECandidate,
				Target:     viewerID,
				FromPeerID: peerID,
				Candidate:  &wire,
			})
		})

		dc, err := pc.CreateDataChannel("media", nil)
		if err != nil {
			logger.Error("create datachannel", "err", err)
			return
		}
		dc.OnOpen(func() {
			logger.Info("datachannel open", "viewer_id", viewerID)
			go func() {
				for i := 0; ; i++ {
					if err := dc.SendText(fmt.Sprintf("frame %06d", i)); err != nil {
						return
					}
					time.Sleep(100 * time.Millisecond)
				}
			}()
		})

		offer, err := pc.CreateOffer(nil)
		if err != nil {
			logger.Error("create offer", "err", err)
			return
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			logger.Error("set local description", "err", err)
			return
		}
		wire := signaling.SDPFromPion(offer)
		send(signaling.Message{
			Type:       signaling.MessageTypeOffer,
			Target:     viewerID,
			FromPeerID: peerID,
			StreamID:   streamID,
			Offer:      &wire,
		})
		logger.Info("offer sent", "viewer_id", viewerID)
	}

	go func() {
		for {
			var msg signaling.Message
			if err := ws.ReadJSON(&msg); err != nil {
				logger.Error("relay connection lost", "err", err)
				os.Exit(1)
			}
			switch msg.Type {
			case signaling.MessageTypeViewerReady:
				logger.Info("viewer ready", "viewer_id", msg.ViewerID)
				offerViewer(msg.ViewerID)

			case signaling.MessageTypeAnswer:
				peersMu.Lock()
				pc := peers[msg.FromPeerID]
				peersMu.Unlock()
				if pc == nil || msg.Answer == nil {
					continue
				}
				desc, err := msg.Answer.ToPion()
				if err != nil {
					logger.Error("bad answer", "err", err)
					continue
				}
				if err := pc.SetRemoteDescription(desc); err != nil {
					logger.Error("set remote description", "err", err)
				}

			case signaling.MessageTypeICECandidate:
				peersMu.Lock()
				pc := peers[msg.FromPeerID]
				peersMu.Unlock()
				if pc == nil || msg.Candidate == nil {
					continue
				}
				if err := pc.AddICECandidate(msg.Candidate.ToPion()); err != nil {
					logger.Error("add candidate", "err", err)
				}

			case signaling.MessageTypePeerDisconnected:
				peersMu.Lock()
				if pc := peers[msg.PeerID]; pc != nil {
					_ = pc.Close()
					delete(peers, msg.PeerID)
				}
				peersMu.Unlock()
			}
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch
}

func envOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
