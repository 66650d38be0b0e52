package transport

import (
	"encoding/json"
	"time"
)

// Client → server events.
const (
	EvtUserAuthenticate  = "user:authenticate"
	EvtConversationJoin  = "conversation:join"
	EvtConversationLeave = "conversation:leave"
	EvtMessageSend       = "message:send"
	EvtMessageRead       = "message:read"
	EvtTypingStart       = "typing:start"
	EvtTypingStop        = "typing:stop"
)

// Server → client events.
const (
	EvtUserOnline       = "user:online"
	EvtUserOffline      = "user:offline"
	EvtUserJoined       = "user:joined:conversation"
	EvtUserLeft         = "user:left:conversation"
	EvtMessageReceive   = "message:receive"
	EvtReadConfirmation = "message:read:confirmation"
	EvtNotificationNew  = "notification:new"
	EvtError            = "error"
)

// Frame is the wire envelope: a named event with a JSON payload.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthenticatePayload struct {
	UserID string `json:"userId"`
	// Token, when present, is a signed connection token; its subject must
	// match UserID.
	Token string `json:"token,omitempty"`
}

type ConversationPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

type SendPayload struct {
	ConversationID string  `json:"conversationId"`
	SenderID       string  `json:"senderId"`
	MessageType    string  `json:"messageType"`
	Content        string  `json:"content,omitempty"`
	ImageID        *string `json:"imageId,omitempty"`
	SharedPostID   *string `json:"sharedPostId,omitempty"`
}

type ReadPayload struct {
	MessageID      string `json:"messageId"`
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

type PresencePayload struct {
	UserID string `json:"userId"`
}

type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// MessagePayload is the enriched message pushed to room subscribers.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	MessageType    string    `json:"messageType"`
	Content        string    `json:"content,omitempty"`
	ImageRef       *string   `json:"imageRef,omitempty"`
	SharedPostID   *string   `json:"sharedPostId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type ReadConfirmationPayload struct {
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

type NotificationNewPayload struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	MessagePreview string `json:"messagePreview"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
