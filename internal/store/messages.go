package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Message roles. A conversation alternates user/assistant by construction;
// the store does not enforce the alternation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one immutable chat turn. ConversationID is nil for turns stored
// in the conversation-less degraded mode.
type Message struct {
	ID             string
	OwnerUserID    string
	ConversationID *string
	Role           string
	Content        string
	CreatedAt      int64
}

// AppendMessage inserts a new turn. Messages are append-only; there is no
// update or delete of individual rows.
func (s *Store) AppendMessage(ctx context.Context, ownerUserID string, conversationID *string, role, content string) (Message, error) {
	msg := Message{
		ID:             uuid.NewString(),
		OwnerUserID:    ownerUserID,
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      time.Now().Unix(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, owner_user_id, conversation_id, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.OwnerUserID, msg.ConversationID, msg.Role, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return Message{}, errors.Wrap(err, "insert message")
	}
	return msg, nil
}

// ListMessagesByConversation returns a conversation's turns in creation
// order, ties broken by insertion order. Scoped by owner.
func (s *Store) ListMessagesByConversation(ctx context.Context, conversationID, ownerUserID string) ([]Message, error) {
	return s.listMessages(ctx,
		`SELECT id, owner_user_id, conversation_id, role, content, created_at
		 FROM messages WHERE conversation_id = ? AND owner_user_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		conversationID, ownerUserID,
	)
}

// ListMessagesByOwner returns all of the owner's turns in creation order.
// Used when reading degraded-mode history that has no conversation.
func (s *Store) ListMessagesByOwner(ctx context.Context, ownerUserID string) ([]Message, error) {
	return s.listMessages(ctx,
		`SELECT id, owner_user_id, conversation_id, role, content, created_at
		 FROM messages WHERE owner_user_id = ?
		 ORDER BY created_at ASC, rowid ASC`,
		ownerUserID,
	)
}

// DeleteMessagesByOwner removes every message belonging to the owner,
// including degraded-mode ones with no conversation.
func (s *Store) DeleteMessagesByOwner(ctx context.Context, ownerUserID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE owner_user_id = ?`, ownerUserID)
	return errors.Wrap(err, "delete messages")
}

func (s *Store) listMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list messages")
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		var convID sql.NullString
		if err := rows.Scan(&msg.ID, &msg.OwnerUserID, &convID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan message")
		}
		if convID.Valid {
			msg.ConversationID = &convID.String
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}
