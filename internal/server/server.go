// Package server exposes the relay over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/auth"
	"chatrelay/internal/gemini"
	"chatrelay/internal/relay"
	"chatrelay/internal/store"
)

// Server wires the authenticator and the orchestrator to the HTTP surface.
type Server struct {
	auth   auth.Authenticator
	relay  *relay.Orchestrator
	logger zerolog.Logger
}

// New creates a Server.
func New(a auth.Authenticator, o *relay.Orchestrator, logger zerolog.Logger) *Server {
	return &Server{auth: a, relay: o, logger: logger}
}

// Handler builds the route table. Every route requires an authenticated user.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.authed(s.handleChat))
	mux.HandleFunc("GET /history", s.authed(s.handleHistory))
	mux.HandleFunc("GET /conversations/{id}", s.authed(s.handleShow))
	mux.HandleFunc("DELETE /history", s.authed(s.handlePurge))
	return s.logged(mux)
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Reply          string `json:"reply"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, userID string) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be valid JSON")
		return
	}

	res, err := s.relay.Chat(r.Context(), userID, req.Message, req.ConversationID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:          res.Reply,
		ConversationID: res.ConversationID,
		Title:          res.Title,
	})
}

type conversationSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, userID string) {
	summaries, err := s.relay.History(r.Context(), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := make([]conversationSummary, 0, len(summaries))
	for _, c := range summaries {
		out = append(out, conversationSummary{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

type messageView struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Text string `json:"text"`
}

func (s *Server) handleShow(w http.ResponseWriter, r *http.Request, userID string) {
	detail, err := s.relay.Show(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	msgs := make([]messageView, 0, len(detail.Messages))
	for _, m := range detail.Messages {
		msgs = append(msgs, messageView{ID: m.ID, Role: m.Role, Text: m.Content})
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "title": detail.Title})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.relay.Purge(r.Context(), userID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chat history deleted."})
}

// authed resolves the user identity before the handler runs.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.auth.UserID(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next(w, r, userID)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logged(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("latency", time.Since(start)).
			Msg("request")
	})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Unclassified
// errors are logged and reported generically; raw internals never reach the
// caller.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, relay.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, "message is required")
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	case errors.Is(err, relay.ErrNoAPIKey):
		writeError(w, http.StatusInternalServerError, "API key missing. Configure GEMINI_API_KEY.")
		return
	}

	var provErr *gemini.Error
	if errors.As(err, &provErr) {
		switch provErr.Kind {
		case gemini.KindUnavailable:
			writeError(w, http.StatusGatewayTimeout, "The AI service took too long to respond. Try again shortly.")
		case gemini.KindRateLimited:
			writeError(w, http.StatusTooManyRequests, "Request limit reached. Try again in a few seconds.")
		case gemini.KindNotConfigured:
			writeError(w, http.StatusInternalServerError, "Model not found. Check the service configuration.")
		case gemini.KindInterrupted:
			writeError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("The AI could not complete the reply (reason: %s).", provErr.Reason))
		default:
			writeError(w, http.StatusBadGateway,
				fmt.Sprintf("AI service error (%d): %s", provErr.Status, provErr.Message))
		}
		return
	}

	s.logger.Error().Err(err).Msg("unhandled error")
	writeError(w, http.StatusInternalServerError, "An internal error occurred while processing the request.")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
