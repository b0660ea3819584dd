package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"chat-relay/contract"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
)

const (
	msgMalformedMessage = "Invalid message format."
	msgSendFailed       = "Failed to send message."

	// timestampLayout is the display format carried by receiveMessage and
	// messageSentConfirmation events.
	timestampLayout = "15:04"
)

// IMessageRouter delivers direct messages and typing signals to every live
// connection bound to the recipient identity.
type IMessageRouter interface {
	Send(ctx context.Context, conn contract.Connection, payload json.RawMessage)
	RelayTyping(conn contract.Connection, payload json.RawMessage)
}

type MessageRouter struct {
	messages  repositories.IMessageRepository
	registry  contract.IRoomRegistry
	moderator *moderation.Moderator
	monitor   *observability.Monitor
	log       *slog.Logger
}

func NewMessageRouter(
	messages repositories.IMessageRepository,
	registry contract.IRoomRegistry,
	moderator *moderation.Moderator,
	monitor *observability.Monitor,
	log *slog.Logger,
) *MessageRouter {
	return &MessageRouter{
		messages:  messages,
		registry:  registry,
		moderator: moderator,
		monitor:   monitor,
		log:       log,
	}
}

func (r *MessageRouter) Send(ctx context.Context, conn contract.Connection, payload json.RawMessage) {
	identity, bound := conn.Session().Identity()
	if !bound {
		r.log.Debug("Rejected send", "remote", conn.RemoteAddr(), "err", errors.ErrUnauthorized)
		conn.Emit(contract.EventError, contract.ErrorMessage{Message: msgNotAuthenticated})
		return
	}

	var req sendMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		r.log.Debug("Rejected send", "uid", identity.UID, "err", errors.ErrMalformedMessage)
		conn.Emit(contract.EventError, contract.ErrorMessage{Message: msgMalformedMessage})
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if err := validate.Struct(req); err != nil {
		r.log.Debug("Rejected send", "uid", identity.UID, "err", errors.ErrMalformedMessage)
		conn.Emit(contract.EventError, contract.ErrorMessage{Message: msgMalformedMessage})
		return
	}

	content := req.Content
	if review := r.moderator.Review(content); len(review.CensoredWords) > 0 {
		r.monitor.IncrCensored()
		r.log.Warn("Message censored",
			"sender", identity.UID,
			"lang", review.Lang,
			"words", len(review.CensoredWords))
		content = review.Content
	}

	// Persistence failure fails the whole send: nothing reaches the
	// recipient and nothing is retried.
	msg, err := r.messages.Append(ctx, identity.UID, req.RecipientUID, content)
	if err != nil {
		r.log.Error("Message persistence failed", "sender", identity.UID, "recipient", req.RecipientUID, "err", err)
		conn.Emit(contract.EventError, contract.ErrorMessage{Message: msgSendFailed})
		return
	}

	timestamp := msg.CreatedAt.Format(timestampLayout)

	// Zero live recipient connections is not an error: the message is
	// persisted and simply delivered to nobody.
	for _, member := range r.registry.Members(req.RecipientUID) {
		member.Emit(contract.EventReceiveMessage, contract.ReceiveMessage{
			ID:        msg.ID,
			Sender:    msg.SenderUID,
			Content:   msg.Content,
			Timestamp: timestamp,
		})
	}

	conn.Emit(contract.EventMessageSentConfirmation, contract.MessageSentConfirmation{
		TempID:    req.TempID,
		DBID:      msg.ID,
		Timestamp: timestamp,
		Status:    msg.Status,
	})
	r.monitor.IncrRelayed()
}

// RelayTyping is best-effort: unauthenticated or malformed signals vanish
// without an error event, and nothing is persisted or acknowledged.
func (r *MessageRouter) RelayTyping(conn contract.Connection, payload json.RawMessage) {
	identity, bound := conn.Session().Identity()
	if !bound {
		return
	}

	var req struct {
		RecipientUID string `json:"recipientUid"`
		IsTyping     bool   `json:"isTyping"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.RecipientUID == "" {
		return
	}

	status := contract.TypingStatus{SenderUID: identity.UID, IsTyping: req.IsTyping}
	for _, member := range r.registry.Members(req.RecipientUID) {
		// Never echo the signal back to the emitting connection (matters
		// in the self-chat case, where the sender is in the room).
		if member == conn {
			continue
		}
		member.Emit(contract.EventTypingStatus, status)
	}
	r.monitor.IncrTyping()
}

type sendMessage struct {
	RecipientUID string `json:"recipientUid" validate:"required"`
	Content      string `json:"content" validate:"required"`
	TempID       string `json:"tempId"`
}
