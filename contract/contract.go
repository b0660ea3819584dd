//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/session"
)

// Connection is a live transport-level channel as seen by the services.
// Emit never blocks the caller: a slow or dead peer drops its copy instead of
// stalling delivery to other room members.
type Connection interface {
	// Session returns the authentication state owned by this connection.
	Session() *session.Session
	// Emit queues an event envelope for delivery to this connection.
	Emit(event string, data any)
	// Close tears the transport down. Safe to call more than once.
	Close()
	// RemoteAddr identifies the peer for logging.
	RemoteAddr() string
}

// IRoomRegistry is the routing primitive: a dynamic set of connections keyed
// by identity uid. Membership is mutated only by the session manager (join on
// auth success, leave on the disconnect callback).
type IRoomRegistry interface {
	Join(uid string, conn Connection)
	Leave(conn Connection)
	// Members returns a snapshot of the room; iterating it never races a
	// concurrent join or leave. A missing room yields an empty slice.
	Members(uid string) []Connection
}

// Client -> server events.
const (
	EventAuthenticate  = "authenticate"
	EventSendMessage   = "sendMessage"
	EventTyping        = "typing"
	EventUpdateProfile = "updateProfile"
)

// Server -> client events.
const (
	EventAuthenticationSuccess   = "authenticationSuccess"
	EventAuthenticationFailed    = "authenticationFailed"
	EventReceiveMessage          = "receiveMessage"
	EventMessageSentConfirmation = "messageSentConfirmation"
	EventTypingStatus            = "typingStatus"
	EventProfileUpdateSuccess    = "profileUpdateSuccess"
	EventProfileUpdateError      = "profileUpdateError"
	EventError                   = "error"
)

type AuthenticationSuccess struct {
	UID           string  `json:"uid"`
	PhoneNumber   string  `json:"phoneNumber"`
	Username      *string `json:"username"`
	ProfilePicURL *string `json:"profilePicUrl"`
}

type AuthenticationFailed struct {
	Message string `json:"message"`
}

type ReceiveMessage struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type MessageSentConfirmation struct {
	TempID    string `json:"tempId"`
	DBID      string `json:"dbId"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

type TypingStatus struct {
	SenderUID string `json:"senderUid"`
	IsTyping  bool   `json:"isTyping"`
}

type ProfileUpdateSuccess struct {
	Username      *string `json:"username"`
	ProfilePicURL *string `json:"profilePicUrl"`
}

type ProfileUpdateError struct {
	Message string `json:"message"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}
