package events

import "encoding/json"

// Inbound message kinds.
const (
	TypeJoinRoom     = "join-room"
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
	TypePing         = "ping"
)

// Outbound message kinds.
const (
	TypeConnected        = "connected"
	TypeUserConnected    = "user-connected"
	TypeUserDisconnected = "user-disconnected"
	TypeError            = "error"
	TypePong             = "pong"
)

// Message is the envelope for every frame in both directions.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals payload into a Message envelope.
func NewMessage(msgType string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: msgType}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{Type: msgType, Data: data}, nil
}

// JoinEvent asks to join a room. Room names are opaque strings chosen
// by the client.
type JoinEvent struct {
	RoomName string `json:"roomName"`
}

// SignalEvent is the client side of offer, answer and ice-candidate.
// SDP and Candidate stay raw: the relay forwards them verbatim and
// never parses negotiation payloads.
type SignalEvent struct {
	Target    string          `json:"target"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// RelayedSignal is what the target receives. From is stamped by the
// server with the sending connection's id, never taken from the payload.
type RelayedSignal struct {
	From      string          `json:"from"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// ConnectedEvent tells a freshly accepted client its own connection id.
type ConnectedEvent struct {
	ID string `json:"id"`
}

// PresenceEvent carries the subject of a user-connected or
// user-disconnected broadcast.
type PresenceEvent struct {
	ID string `json:"id"`
}

// ErrorEvent is sent for locally recoverable protocol errors.
type ErrorEvent struct {
	Message string `json:"message"`
}
