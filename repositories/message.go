//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StatusSent is the initial (and, for now, only) delivery status. The column
// is reserved for future read/delivered tracking.
const StatusSent = "sent"

// Message is a persisted direct message. Rows are append-only: never mutated
// or deleted by the relay.
type Message struct {
	ID           string
	SenderUID    string
	RecipientUID string
	Content      string
	CreatedAt    time.Time
	Status       string
}

type IMessageRepository interface {
	// Append persists a direct message and returns it with the generated id
	// and server timestamp. Ids are UUIDs, never derived from wall-clock
	// time, so concurrent sends cannot collide.
	Append(ctx context.Context, senderUID, recipientUID, content string) (Message, error)
}

type MessageRepository struct {
	db *sql.DB
}

func NewMessageRepository(db *sql.DB) IMessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Append(ctx context.Context, senderUID, recipientUID, content string) (Message, error) {
	msg := Message{
		ID:           uuid.New().String(),
		SenderUID:    senderUID,
		RecipientUID: recipientUID,
		Content:      content,
		CreatedAt:    time.Now().UTC(),
		Status:       StatusSent,
	}

	const insert = `
		INSERT INTO messages (id, sender_uid, recipient_uid, content, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := r.db.ExecContext(ctx, insert,
		msg.ID, msg.SenderUID, msg.RecipientUID, msg.Content, msg.CreatedAt, msg.Status); err != nil {
		return Message{}, fmt.Errorf("append message from %s to %s: %w", senderUID, recipientUID, err)
	}

	return msg, nil
}
