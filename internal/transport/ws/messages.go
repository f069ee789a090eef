package ws

import (
	"encoding/json"

	"github.com/cwrk-planet/chat-relay/internal/domain"
)

// Frame types exchanged over the socket
const (
	TypeChat    = "chat"     // message, both directions
	TypeChatAck = "chat_ack" // publish accepted, only to the sender
	TypeError   = "error"    // publish rejected, only to the sender
)

type Message struct {
	Type    string `json:"type"`
	MsgID   string `json:"msg_id,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// inbound defers payload decoding until the type is known.
type inbound struct {
	Type    string          `json:"type"`
	MsgID   string          `json:"msg_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type ChatAckPayload struct {
	Room string `json:"room"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func chatFrame(m domain.Message) Message {
	return Message{Type: TypeChat, Payload: m}
}
