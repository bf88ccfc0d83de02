// Package relay orchestrates conversation lifecycle, turn persistence, and
// provider calls for one chat exchange.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"chatrelay/internal/gemini"
	"chatrelay/internal/store"
)

// DefaultTitle is the placeholder a conversation starts with. It is
// rewritten exactly once by the title step.
const DefaultTitle = "New conversation"

// FallbackTitle replaces the placeholder when title generation fails, so a
// later message never re-triggers the title call.
const FallbackTitle = "Conversation"

var (
	// ErrEmptyPrompt rejects a chat request with no message text.
	ErrEmptyPrompt = errors.New("message must not be empty")
	// ErrNoAPIKey reports a missing provider API key. Operator-fixable.
	ErrNoAPIKey = errors.New("provider API key is not configured")
)

// Generator is the provider abstraction the orchestrator calls.
type Generator interface {
	Generate(ctx context.Context, prompt string, timeout time.Duration) (gemini.Result, error)
}

// Orchestrator runs the per-request chat state machine.
type Orchestrator struct {
	Store        *store.Store
	Provider     Generator
	APIKey       string
	ChatTimeout  time.Duration
	TitleTimeout time.Duration
	Logger       zerolog.Logger
}

// ChatResult is the unified success response of one chat exchange.
type ChatResult struct {
	Reply          string
	ConversationID string
	Title          string
}

// Chat handles one exchange. Side effects are strictly ordered: conversation
// creation, user-turn persistence, generation, assistant-turn persistence,
// title step. Nothing is rolled back on later failure; a stored user message
// with no assistant reply is an accepted state.
func (o *Orchestrator) Chat(ctx context.Context, ownerUserID, message, conversationID string) (ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return ChatResult{}, ErrEmptyPrompt
	}

	var conv store.Conversation
	var isNew bool
	var err error
	if conversationID == "" {
		conv, err = o.Store.CreateConversation(ctx, ownerUserID, DefaultTitle)
		if err != nil {
			return ChatResult{}, err
		}
		isNew = true
	} else {
		conv, err = o.Store.GetConversation(ctx, conversationID, ownerUserID)
		if err != nil {
			return ChatResult{}, err
		}
	}

	logger := o.Logger.With().Str("conversation_id", conv.ID).Str("owner", ownerUserID).Logger()

	// The user's input is never lost, whatever happens next.
	if _, err := o.Store.AppendMessage(ctx, ownerUserID, &conv.ID, store.RoleUser, message); err != nil {
		return ChatResult{}, err
	}

	if o.APIKey == "" {
		logger.Error().Msg("chat refused: GEMINI_API_KEY is not set")
		return ChatResult{}, ErrNoAPIKey
	}

	res, err := o.Provider.Generate(ctx, message, o.ChatTimeout)
	if err != nil {
		logger.Warn().Err(err).Msg("provider call failed")
		return ChatResult{}, err
	}

	if _, err := o.Store.AppendMessage(ctx, ownerUserID, &conv.ID, store.RoleAssistant, res.Text); err != nil {
		return ChatResult{}, err
	}
	if err := o.Store.TouchConversation(ctx, conv.ID); err != nil {
		logger.Warn().Err(err).Msg("failed to touch conversation")
	}

	title := conv.Title
	if isNew {
		title = o.generateTitle(ctx, logger, conv.ID, message)
	}

	return ChatResult{
		Reply:          res.Text,
		ConversationID: conv.ID,
		Title:          title,
	}, nil
}

// generateTitle performs the best-effort, once-only title step for a new
// conversation. Every outcome writes a title, so the placeholder never
// survives the first exchange and no later message retries the call.
func (o *Orchestrator) generateTitle(ctx context.Context, logger zerolog.Logger, conversationID, message string) string {
	title := FallbackTitle
	res, err := o.Provider.Generate(ctx, titlePrompt(message), o.TitleTimeout)
	if err != nil {
		logger.Warn().Err(err).Msg("title generation failed, using fallback")
	} else if t := strings.TrimSpace(res.Text); t != "" && t != gemini.NoResponseText {
		title = t
	}

	if err := o.Store.RenameConversation(ctx, conversationID, title); err != nil {
		logger.Warn().Err(err).Msg("failed to rename conversation")
	}
	return title
}

func titlePrompt(message string) string {
	return fmt.Sprintf(
		"Generate a very short title (five words at most) for a conversation that starts with this message: %q. "+
			"Reply with the title only, no quotes and no extra punctuation.",
		message,
	)
}
