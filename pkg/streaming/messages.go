package streaming

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message type constants of the playback streaming protocol.
const (
	// server -> client
	TypeHello   = "hello"
	TypeFrame   = "frame"
	TypeStatus  = "status"
	TypeAck     = "ack"
	TypeError   = "error"
	TypeOverlay = "overlay"

	// client -> server
	TypeSeek     = "seek"
	TypeSeekTime = "seek_time"
	TypePlay     = "play"
	TypePause    = "pause"
	TypeGetState = "get_status"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"` // echoed back in ack/error
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the server's acknowledgement of a command.
type AckMessage struct {
	Type   string `json:"type"` // always "ack"
	For    string `json:"for"`  // the message type being acknowledged
	ID     string `json:"id,omitempty"`
	Result any    `json:"result,omitempty"`
}

// ErrorMessage reports a rejected command.
type ErrorMessage struct {
	Type  string `json:"type"` // always "error"
	For   string `json:"for"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
}

// HelloPayload is sent once per connection.
type HelloPayload struct {
	ClientID   string    `json:"clientId"`
	Session    string    `json:"session,omitempty"`
	Resolution int       `json:"resolution"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Entities   []string  `json:"entities"`
}

// StatusPayload describes the controller state.
type StatusPayload struct {
	Playing    bool      `json:"playing"`
	Position   int       `json:"position"`
	Resolution int       `json:"resolution"`
	Instant    time.Time `json:"instant"`
}

// SeekPayload moves the playhead to a position in [0, resolution].
type SeekPayload struct {
	Position float64 `json:"position"`
}

// SeekTimePayload moves the playhead to the position closest to an instant.
type SeekTimePayload struct {
	Time time.Time `json:"time"`
}

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType, id string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		raw = b
	}
	data, err := json.Marshal(Envelope{Type: msgType, ID: id, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
