// Command viewer-go is an E2E harness peer: it registers with the relay as a
// viewer and prints every frame it receives on the streamer's "media"
// DataChannel.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/streamglass/signal-relay/internal/peerlink"
	"github.com/streamglass/signal-relay/internal/signaling"
)

func main() {
	relayURL := envOrDefault("RELAY_URL", "ws://127.0.0.1:5000/ws")
	streamID := envOrDefault("STREAM_ID", "e2e-stream")
	peerID := envOrDefault("PEER_ID", "e2e-viewer")

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
	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "new peer connection: %v\n", err)
		os.Exit(1)
	}
	defer pc.Close()

	var writeMu sync.Mutex
	send := func(msg signaling.Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := ws.WriteJSON(msg); err != nil {
			logger.Error("relay write failed", "type", string(msg.Type), "err", err)
		}
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		logger.Info("datachannel", "label", dc.Label())
		dc.OnMessage(func(m webrtc.DataChannelMessage) {
			fmt.Println(string(m.Data))
		})
	})

	// The relay tells the streamer we exist; the streamer answers with an
	// offer addressed to our peerId.
	send(signaling.Message{
		Type:     signaling.MessageTypeRegister,
		Role:     signaling.RoleViewer,
		StreamID: streamID,
		PeerID:   peerID,
	})
	logger.Info("registered", "stream_id", streamID, "peer_id", peerID)

	go func() {
		var streamerID string
		for {
			var msg signaling.Message
			if err := ws.ReadJSON(&msg); err != nil {
				logger.Error("relay connection lost", "err", err)
				os.Exit(1)
			}
			switch msg.Type {
			case signaling.MessageTypeOffer:
				if msg.Offer == nil {
					continue
				}
				streamerID = msg.FromPeerID
				desc, err := msg.Offer.ToPion()
				if err != nil {
					logger.Error("bad offer", "err", err)
					continue
				}
				if err := pc.SetRemoteDescription(desc); err != nil {
					logger.Error("set remote description", "err", err)
					continue
				}

				pc.OnICECandidate(func(c *webrtc.ICECandidate) {
					if c == nil {
						return
					}
					wire := signaling.CandidateFromPion(c.ToJSON())
					send(signaling.Message{
						Type:       signaling.MessageTypeICECandidate,
						Target:     streamerID,
						FromPeerID: peerID,
						Candidate:  &wire,
					})
				})

				answer, err := pc.CreateAnswer(nil)
				if err != nil {
					logger.Error("create answer", "err", err)
					continue
				}
				if err := pc.SetLocalDescription(answer); err != nil {
					logger.Error("set local description", "err", err)
					continue
				}
				wire := signaling.SDPFromPion(answer)
				send(signaling.Message{
					Type:       signaling.MessageTypeAnswer,
					Target:     streamerID,
					FromPeerID: peerID,
					Answer:     &wire,
				})
				logger.Info("answer sent", "streamer_id", streamerID)

			case signaling.MessageTypeICECandidate:
				if msg.Candidate == nil {
					continue
				}
				if err := pc.AddICECandidate(msg.Candidate.ToPion()); err != nil {
					logger.Error("add candidate", "err", err)
				}

			case signaling.MessageTypePeerDisconnected:
				if msg.PeerID == streamerID && streamerID != "" {
					logger.Info("streamer left", "peer_id", msg.PeerID)
					os.Exit(0)
				}
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
