package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Conversation is a titled thread of messages owned by a single user.
// owner_user_id never changes after creation.
type Conversation struct {
	ID          string
	OwnerUserID string
	Title       string
	CreatedAt   int64
	UpdatedAt   int64
}

// CreateConversation inserts a new conversation for the owner with the given
// title and returns it.
func (s *Store) CreateConversation(ctx context.Context, ownerUserID, title string) (Conversation, error) {
	conv := Conversation{
		ID:          uuid.NewString(),
		OwnerUserID: ownerUserID,
		Title:       title,
		CreatedAt:   time.Now().Unix(),
	}
	conv.UpdatedAt = conv.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, owner_user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.OwnerUserID, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	if err != nil {
		return Conversation{}, errors.Wrap(err, "insert conversation")
	}
	return conv, nil
}

// GetConversation loads a conversation scoped by owner. Returns ErrNotFound
// when the id does not exist or belongs to another user.
func (s *Store) GetConversation(ctx context.Context, id, ownerUserID string) (Conversation, error) {
	var conv Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner_user_id, title, created_at, updated_at
		 FROM conversations WHERE id = ? AND owner_user_id = ?`,
		id, ownerUserID,
	).Scan(&conv.ID, &conv.OwnerUserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, errors.Wrap(err, "select conversation")
	}
	return conv, nil
}

// RenameConversation overwrites the title unconditionally and bumps
// updated_at. Renaming with the same title is a no-op in effect.
func (s *Store) RenameConversation(ctx context.Context, id, title string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = unixepoch() WHERE id = ?`,
		title, id,
	)
	if err != nil {
		return errors.Wrap(err, "rename conversation")
	}
	return nil
}

// TouchConversation bumps updated_at so recency ordering tracks activity.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = unixepoch() WHERE id = ?`, id,
	)
	if err != nil {
		return errors.Wrap(err, "touch conversation")
	}
	return nil
}

// ListConversationsByOwner returns the owner's conversations, most recently
// updated first.
func (s *Store) ListConversationsByOwner(ctx context.Context, ownerUserID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_user_id, title, created_at, updated_at
		 FROM conversations WHERE owner_user_id = ?
		 ORDER BY updated_at DESC, rowid DESC`,
		ownerUserID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list conversations")
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var conv Conversation
		if err := rows.Scan(&conv.ID, &conv.OwnerUserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "scan conversation")
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// DeleteConversationsByOwner removes all of the owner's conversations and
// cascades to their messages.
func (s *Store) DeleteConversationsByOwner(ctx context.Context, ownerUserID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin delete conversations")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id IN
		   (SELECT id FROM conversations WHERE owner_user_id = ?)`,
		ownerUserID,
	)
	if err != nil {
		return errors.Wrap(err, "delete conversation messages")
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM conversations WHERE owner_user_id = ?`, ownerUserID)
	if err != nil {
		return errors.Wrap(err, "delete conversations")
	}
	return errors.Wrap(tx.Commit(), "commit delete conversations")
}
