// Package transport implements the message-framed full-duplex channel to
// the caller peer: a small Adapter interface over gorilla/websocket and the
// fixed set of JSON wire events the core speaks.
package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event discriminators recognized on the wire, in both directions.
const (
	EventMedia      = "media"
	EventState      = "state"
	EventTranscript = "transcript"
	EventClear      = "clear"
)

// Message is the envelope for every JSON object exchanged with the peer.
// Only the fields relevant to the discriminator are populated.
type Message struct {
	Event string `json:"event"`
	Media *Media `json:"media,omitempty"`
	State string `json:"state,omitempty"`
	Role  string `json:"role,omitempty"`
	Text  string `json:"text,omitempty"`
}

// Media carries one base64-encoded audio frame.
type Media struct {
	Payload string `json:"payload"`
}

// Adapter is a message-framed bidirectional channel to one caller. A session
// calls WriteMessage from its ingest, egress and cognition goroutines at
// once, so implementations serialize concurrent writes themselves.
type Adapter interface {
	ReadMessage() (Message, error)
	WriteMessage(Message) error
	Close() error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSAdapter adapts a gorilla/websocket connection to Adapter, serializing
// writes with a mutex.
type WSAdapter struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Upgrade promotes an HTTP request to a WSAdapter.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WSAdapter, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	return &WSAdapter{conn: conn}, nil
}

// FrameDecodeError reports that a frame was received intact but could not be
// parsed as a Message (bad JSON, or a non-text frame). It is distinct from a
// transport-level error (connection closed, read failure) so callers can
// skip the malformed message and keep reading instead of tearing the
// connection down.
type FrameDecodeError struct {
	Err error
}

func (e *FrameDecodeError) Error() string { return "transport: " + e.Err.Error() }
func (e *FrameDecodeError) Unwrap() error { return e.Err }

// ReadMessage blocks for the next text frame and decodes it as a Message.
// A malformed frame (non-text, or invalid JSON) is returned as a
// *FrameDecodeError; any other error indicates the underlying connection
// itself failed.
func (a *WSAdapter) ReadMessage() (Message, error) {
	msgType, data, err := a.conn.ReadMessage()
	if err != nil {
		return Message{}, err
	}
	if msgType != websocket.TextMessage {
		return Message{}, &FrameDecodeError{Err: fmt.Errorf("unexpected binary frame")}
	}
	var m Message
	if err = json.Unmarshal(data, &m); err != nil {
		return Message{}, &FrameDecodeError{Err: err}
	}
	return m, nil
}

// WriteMessage marshals and writes m as a single text frame.
func (a *WSAdapter) WriteMessage(m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("transport: marshal: %w", err)
	}
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	a.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return a.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection.
func (a *WSAdapter) Close() error {
	return a.conn.Close()
}

// EncodeFrame base64-encodes a raw audio frame into a media Message.
func EncodeFrame(frame []byte) Message {
	return Message{Event: EventMedia, Media: &Media{Payload: base64.StdEncoding.EncodeToString(frame)}}
}

// DecodeFrame extracts and base64-decodes the payload from a media Message.
func DecodeFrame(m Message) ([]byte, error) {
	if m.Media == nil {
		return nil, fmt.Errorf("transport: media event missing payload")
	}
	frame, err := base64.StdEncoding.DecodeString(m.Media.Payload)
	if err != nil {
		return nil, fmt.Errorf("transport: bad base64: %w", err)
	}
	return frame, nil
}

// StateMessage builds a {event:"state"} message.
func StateMessage(state string) Message {
	return Message{Event: EventState, State: state}
}

// TranscriptMessage builds a {event:"transcript"} message.
func TranscriptMessage(role, text string) Message {
	return Message{Event: EventTranscript, Role: role, Text: text}
}

// ClearMessage builds a {event:"clear"} barge-in message.
func ClearMessage() Message {
	return Message{Event: EventClear}
}
