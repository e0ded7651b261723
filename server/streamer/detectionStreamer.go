package streamer

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/log"
	"github.com/fabiobrasileiroo/consciencia-espacial-PCD-visual/server/monitor"
	"github.com/gorilla/websocket"
)

type webSocketMsg int

const (
	webSocketMsgPause  webSocketMsg = iota // pause stream (eg browser tab deactivated)
	webSocketMsgResume                     // resume stream (eg browser tab reactivated)
)

// Sent by client over websocket
type webSocketJSON struct {
	Command string `json:"command"`
}

// Every message that we send is a TEXT frame holding this
type webSocketSendMessage struct {
	Type      string                 `json:"type"` // Only type of message is "detection"
	Detection *monitor.AnalysisState `json:"detection"`
}

// Number of analysis results that we will buffer on the send side, before dropping
const WebSocketSendBufferSize = 50

// Time allowed to write a single message
const writeTimeout = 5 * time.Second

var nextWebSocketStreamerID int64

// DetectionWebSocketStreamer sends tracker output to a websocket client
type DetectionWebSocketStreamer struct {
	log           logs.Log
	streamerID    int64 // Intended to aid in logging/debugging
	closed        atomic.Bool
	paused        atomic.Bool
	fromWebSocket chan webSocketMsg
	sendQueue     chan *monitor.AnalysisState
	detections    chan *monitor.AnalysisState
	lastDropMsg   time.Time
	nDropped      int64
	nSent         int64
}

// RunDetectionWebSocketStreamer blocks until the websocket is closed, or the detections channel is closed
func RunDetectionWebSocketStreamer(logger logs.Log, conn *websocket.Conn, detections chan *monitor.AnalysisState) {
	streamerID := atomic.AddInt64(&nextWebSocketStreamerID, 1)

	streamer := &DetectionWebSocketStreamer{
		streamerID: streamerID,
		log:        log.NewPrefixLogger(logger, fmt.Sprintf("Detection WebSocket %v:", streamerID)),
		sendQueue:  make(chan *monitor.AnalysisState, WebSocketSendBufferSize),
		detections: detections,
	}
	streamer.run(conn)
}

func (s *DetectionWebSocketStreamer) onDetection(detection *monitor.AnalysisState) {
	// We really don't want to block on a full channel here, because that would cause
	// the monitor's watcher channel to fill up.
	now := time.Now()
	if len(s.sendQueue) >= WebSocketSendBufferSize*3/4 {
		s.nDropped++
		if now.Sub(s.lastDropMsg) > 5*time.Second {
			s.log.Infof("Dropped %v/%v messages", s.nDropped, s.nDropped+s.nSent)
			s.lastDropMsg = now
		}
		return
	}
	s.nSent++
	s.sendQueue <- detection
}

func (s *DetectionWebSocketStreamer) run(conn *websocket.Conn) {
	defer conn.Close()

	s.fromWebSocket = make(chan webSocketMsg, 1)
	go s.webSocketReader(conn)
	writerDone := make(chan bool)
	go func() {
		s.webSocketWriter(conn)
		close(writerDone)
	}()

	s.log.Infof("Started")

	for !s.closed.Load() {
		select {
		case wsMsg, ok := <-s.fromWebSocket:
			if !ok {
				s.closed.Store(true)
				break
			}
			switch wsMsg {
			case webSocketMsgPause:
				s.paused.Store(true)
			case webSocketMsgResume:
				s.paused.Store(false)
			}
		case detection, ok := <-s.detections:
			if !ok {
				s.closed.Store(true)
				break
			}
			if !s.paused.Load() {
				s.onDetection(detection)
			}
		}
	}
	close(s.sendQueue)
	<-writerDone
	s.log.Infof("Closed after sending %v messages", s.nSent)
}

// Read from the websocket and post to our own channel, so that we can
// run a single loop that handles reads from websocket and reads from the monitor.
func (s *DetectionWebSocketStreamer) webSocketReader(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType == websocket.TextMessage {
			msg := webSocketJSON{}
			if err := json.Unmarshal(data, &msg); err != nil {
				s.log.Infof("webSocketReader failed to decode JSON: %v", err)
			} else {
				switch msg.Command {
				case "pause":
					s.fromWebSocket <- webSocketMsgPause
				case "resume":
					s.fromWebSocket <- webSocketMsgResume
				default:
					s.log.Infof("Unknown websocket message from client: '%v'", msg.Command)
				}
			}
		}
	}
	close(s.fromWebSocket)
}

// Run a thread that is responsible for writing to the websocket, so that a slow
// client doesn't block the main loop.
func (s *DetectionWebSocketStreamer) webSocketWriter(conn *websocket.Conn) {
	for state := range s.sendQueue {
		if s.paused.Load() || s.closed.Load() {
			continue
		}
		msg := webSocketSendMessage{
			Type:      "detection",
			Detection: state,
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(&msg); err != nil {
			s.log.Infof("Write failed: %v", err)
			s.closed.Store(true)
			// Unblock the reader, which will in turn unblock the main loop
			conn.Close()
			// Drain, so that the main loop never blocks on a full queue
			for range s.sendQueue {
			}
			return
		}
	}
}
