package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"
)

const (
	streamDialTimeout  = 10 * time.Second
	streamTrackTimeout = 15 * time.Second
	streamPollInterval = 50 * time.Millisecond
	decodeInterval     = 100 * time.Millisecond
)

// Stream consumes a WebRTC video feed published through a GStreamer-style
// signalling server (welcome / list / startSession). It keeps the most
// recently decoded frame and serves it from Image.
type Stream struct {
	name          string
	signallingURL string
	producer      string
	logger        *slog.Logger

	ws      *websocket.Conn
	pc      *webrtc.PeerConnection
	wsMutex sync.Mutex

	peerID     string
	producerID string
	sessionID  string

	frameMutex  sync.RWMutex
	latestFrame *Frame
	trackReady  chan struct{}

	closed atomic.Bool
}

// NewStream creates a stream camera and connects it. producer selects which
// publisher to consume by its advertised meta name; empty takes the first
// one listed. Connection setup blocks until video arrives or ctx expires.
func NewStream(ctx context.Context, name, signallingURL, producer string, logger *slog.Logger) (*Stream, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Stream{
		name:          name,
		signallingURL: signallingURL,
		producer:      producer,
		logger:        logger.With("camera", name),
		trackReady:    make(chan struct{}, 1),
	}

	if err := s.connect(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("camera %s: %w", name, err)
	}
	return s, nil
}

// Name returns the registered camera name.
func (s *Stream) Name() string { return s.name }

func (s *Stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: streamDialTimeout,
	}

	ws, _, err := dialer.DialContext(ctx, s.signallingURL, nil)
	if err != nil {
		return fmt.Errorf("signalling connect: %w", err)
	}
	s.ws = ws

	if err := s.waitForWelcome(); err != nil {
		return fmt.Errorf("welcome: %w", err)
	}
	s.logger.Debug("signalling connected", "peer_id", s.peerID)

	if err := s.findProducer(); err != nil {
		return fmt.Errorf("find producer: %w", err)
	}
	s.logger.Debug("producer selected", "producer_id", s.producerID)

	if err := s.createPeerConnection(); err != nil {
		return fmt.Errorf("peer connection: %w", err)
	}

	if err := s.startSession(); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	go s.handleSignalling()

	select {
	case <-s.trackReady:
		s.logger.Info("video stream connected")
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(streamTrackTimeout):
		return fmt.Errorf("timeout waiting for video track")
	}
	return nil
}

func (s *Stream) waitForWelcome() error {
	s.ws.SetReadDeadline(time.Now().Add(streamDialTimeout))
	_, msg, err := s.ws.ReadMessage()
	s.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var welcome struct {
		Type   string `json:"type"`
		PeerID string `json:"peerId"`
	}
	if err := json.Unmarshal(msg, &welcome); err != nil {
		return err
	}
	if welcome.Type != "welcome" {
		return fmt.Errorf("expected welcome, got %s", welcome.Type)
	}
	s.peerID = welcome.PeerID
	return nil
}

func (s *Stream) findProducer() error {
	s.wsMutex.Lock()
	err := s.ws.WriteJSON(map[string]string{"type": "list"})
	s.wsMutex.Unlock()
	if err != nil {
		return err
	}

	s.ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := s.ws.ReadMessage()
	s.ws.SetReadDeadline(time.Time{})
	if err != nil {
		return err
	}

	var listResp struct {
		Type      string `json:"type"`
		Producers []struct {
			ID   string            `json:"id"`
			Meta map[string]string `json:"meta"`
		} `json:"producers"`
	}
	if err := json.Unmarshal(msg, &listResp); err != nil {
		return err
	}

	for _, p := range listResp.Producers {
		if s.producer == "" || p.Meta["name"] == s.producer {
			s.producerID = p.ID
			return nil
		}
	}
	return fmt.Errorf("producer %q not found among %d producers", s.producer, len(listResp.Producers))
}

func (s *Stream) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	s.pc = pc

	// Receive-only video.
	if _, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		s.logger.Debug("track received", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go s.handleVideoTrack(track)
		}
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate != nil {
			s.sendICECandidate(candidate)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.logger.Debug("connection state", "state", state.String())
	})

	return nil
}

func (s *Stream) startSession() error {
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()
	return s.ws.WriteJSON(map[string]string{
		"type":   "startSession",
		"peerId": s.producerID,
	})
}

func (s *Stream) handleSignalling() {
	for !s.closed.Load() {
		_, msg, err := s.ws.ReadMessage()
		if err != nil {
			if !s.closed.Load() {
				s.logger.Warn("signalling read failed", "error", err)
			}
			return
		}

		var baseMsg struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		json.Unmarshal(msg, &baseMsg)

		switch baseMsg.Type {
		case "sessionStarted":
			s.sessionID = baseMsg.SessionID
		case "peer":
			s.handlePeerMessage(msg)
		case "endSession":
			return
		}
	}
}

func (s *Stream) handlePeerMessage(msg []byte) {
	var peerMsg struct {
		SDP *struct {
			Type string `json:"type"`
			SDP  string `json:"sdp"`
		} `json:"sdp"`
		ICE *struct {
			Candidate     string  `json:"candidate"`
			SDPMid        *string `json:"sdpMid"`
			SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
		} `json:"ice"`
	}
	if err := json.Unmarshal(msg, &peerMsg); err != nil {
		s.logger.Warn("bad peer message", "error", err)
		return
	}

	if peerMsg.SDP != nil && peerMsg.SDP.Type == "offer" {
		offer := webrtc.SessionDescription{
			Type: webrtc.SDPTypeOffer,
			SDP:  peerMsg.SDP.SDP,
		}
		if err := s.pc.SetRemoteDescription(offer); err != nil {
			s.logger.Warn("set remote description failed", "error", err)
			return
		}

		answer, err := s.pc.CreateAnswer(nil)
		if err != nil {
			s.logger.Warn("create answer failed", "error", err)
			return
		}
		if err := s.pc.SetLocalDescription(answer); err != nil {
			s.logger.Warn("set local description failed", "error", err)
			return
		}
		s.sendSDP(answer)
	}

	if peerMsg.ICE != nil {
		s.pc.AddICECandidate(webrtc.ICECandidateInit{
			Candidate:     peerMsg.ICE.Candidate,
			SDPMid:        peerMsg.ICE.SDPMid,
			SDPMLineIndex: peerMsg.ICE.SDPMLineIndex,
		})
	}
}

func (s *Stream) sendSDP(sdp webrtc.SessionDescription) {
	msg := map[string]interface{}{
		"type":      "peer",
		"sessionId": s.sessionID,
		"sdp": map[string]string{
			"type": sdp.Type.String(),
			"sdp":  sdp.SDP,
		},
	}
	s.wsMutex.Lock()
	s.ws.WriteJSON(msg)
	s.wsMutex.Unlock()
}

func (s *Stream) sendICECandidate(candidate *webrtc.ICECandidate) {
	if s.sessionID == "" {
		return
	}

	init := candidate.ToJSON()
	msg := map[string]interface{}{
		"type":      "peer",
		"sessionId": s.sessionID,
		"ice": map[string]interface{}{
			"candidate":     init.Candidate,
			"sdpMid":        init.SDPMid,
			"sdpMLineIndex": init.SDPMLineIndex,
		},
	}
	s.wsMutex.Lock()
	s.ws.WriteJSON(msg)
	s.wsMutex.Unlock()
}

func (s *Stream) handleVideoTrack(track *webrtc.TrackRemote) {
	select {
	case s.trackReady <- struct{}{}:
	default:
	}

	// Reassemble Annex-B H264 from the RTP payloads, decode a still every
	// decodeInterval.
	var depacketizer codecs.H264Packet
	var nalBuffer bytes.Buffer
	lastDecode := time.Now()

	for !s.closed.Load() {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}

		nal, err := depacketizer.Unmarshal(pkt.Payload)
		if err != nil {
			continue
		}
		nalBuffer.Write(nal)

		if time.Since(lastDecode) > decodeInterval {
			s.decodeToJPEG(nalBuffer.Bytes())
			nalBuffer.Reset()
			lastDecode = time.Now()
		}
	}
}

// decodeToJPEG shells out to ffmpeg to extract one still from the
// accumulated H264 data. Requires ffmpeg on PATH.
func (s *Stream) decodeToJPEG(h264Data []byte) {
	if len(h264Data) < 100 {
		return
	}

	tmpH264 := filepath.Join(os.TempDir(), "camera-"+s.name+".h264")
	tmpJPEG := filepath.Join(os.TempDir(), "camera-"+s.name+".jpg")

	if err := os.WriteFile(tmpH264, h264Data, 0644); err != nil {
		return
	}

	cmd := exec.Command("ffmpeg", "-y", "-i", tmpH264, "-vframes", "1", "-f", "image2", tmpJPEG)
	if err := cmd.Run(); err != nil {
		return
	}

	jpegData, err := os.ReadFile(tmpJPEG)
	if err != nil || len(jpegData) < 1000 {
		return
	}

	s.frameMutex.Lock()
	s.latestFrame = &Frame{
		Data:       jpegData,
		MIMEType:   "image/jpeg",
		CapturedAt: time.Now(),
	}
	s.frameMutex.Unlock()
}

// Image returns the most recently decoded frame, waiting for the first one
// if the stream has not produced any yet.
func (s *Stream) Image(ctx context.Context) (*Frame, error) {
	for {
		s.frameMutex.RLock()
		frame := s.latestFrame
		s.frameMutex.RUnlock()

		if frame != nil {
			return frame, nil
		}
		if s.closed.Load() {
			return nil, fmt.Errorf("camera %s: stream closed", s.name)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("camera %s: %w", s.name, ctx.Err())
		case <-time.After(streamPollInterval):
		}
	}
}

// Close tears down the peer connection and the signalling socket.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.pc != nil {
		s.pc.Close()
	}
	if s.ws != nil {
		s.ws.Close()
	}
	return nil
}

var _ Camera = (*Stream)(nil)
