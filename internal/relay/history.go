package relay

import (
	"context"

	"chatrelay/internal/store"
)

// ConversationSummary is one row of the history listing.
type ConversationSummary struct {
	ID        string
	Title     string
	CreatedAt int64
}

// ConversationDetail is a conversation's title plus its ordered turns.
type ConversationDetail struct {
	Title    string
	Messages []store.Message
}

// History lists the owner's conversations, most recently updated first.
func (o *Orchestrator) History(ctx context.Context, ownerUserID string) ([]ConversationSummary, error) {
	convs, err := o.Store.ListConversationsByOwner(ctx, ownerUserID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		out = append(out, ConversationSummary{ID: conv.ID, Title: conv.Title, CreatedAt: conv.CreatedAt})
	}
	return out, nil
}

// Show returns one owned conversation with its messages in creation order.
func (o *Orchestrator) Show(ctx context.Context, conversationID, ownerUserID string) (ConversationDetail, error) {
	conv, err := o.Store.GetConversation(ctx, conversationID, ownerUserID)
	if err != nil {
		return ConversationDetail{}, err
	}
	msgs, err := o.Store.ListMessagesByConversation(ctx, conv.ID, ownerUserID)
	if err != nil {
		return ConversationDetail{}, err
	}
	return ConversationDetail{Title: conv.Title, Messages: msgs}, nil
}

// Purge irreversibly deletes all of the owner's conversations and messages,
// including degraded-mode messages that belong to no conversation.
// Purging an already-empty history is a no-op.
func (o *Orchestrator) Purge(ctx context.Context, ownerUserID string) error {
	if err := o.Store.DeleteConversationsByOwner(ctx, ownerUserID); err != nil {
		return err
	}
	return o.Store.DeleteMessagesByOwner(ctx, ownerUserID)
}
