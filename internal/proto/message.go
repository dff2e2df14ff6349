package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello = "hello"
	InboundTypeBye   = "bye"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventOnlineUsers = "onlineUsers"
	EventNewMessage  = "newMessage"
)

// HelloData authenticates a session that did not pass a credential in the URL.
type HelloData struct {
	Token    string `json:"token,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Message is the wire form of a direct message.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User is the public wire form of an account.
type User struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Bio        string    `json:"bio"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
