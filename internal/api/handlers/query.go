package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/nutrirag/internal/api"
	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/logger"
	"github.com/cloo-solutions/nutrirag/internal/service"
)

// LivenessAnswer is the fixed /test reply
const LivenessAnswer = "RAG service is up and running"

type QueryRouter interface {
	Answer(ctx context.Context, query string, history []domain.ConversationTurn) (*service.Outcome, error)
}

type QueryHandler struct {
	router QueryRouter
}

func NewQueryHandler(router QueryRouter) *QueryHandler {
	return &QueryHandler{router: router}
}

type HistoryTurn struct {
	Sender    string     `json:"sender" validate:"max=32"`
	Text      string     `json:"text" validate:"max=8000"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

type QueryRequest struct {
	Query   string        `json:"query" validate:"max=4000"`
	History []HistoryTurn `json:"history,omitempty" validate:"max=100,dive"`
}

func (req QueryRequest) turns() []domain.ConversationTurn {
	if len(req.History) == 0 {
		return nil
	}
	turns := make([]domain.ConversationTurn, len(req.History))
	for i, h := range req.History {
		turns[i] = domain.ConversationTurn{Sender: h.Sender, Text: h.Text, Timestamp: h.Timestamp}
	}
	return turns
}

// Query answers POST /query. Failures still return an answer string.
func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	req, err := api.DecodeJSON[QueryRequest](r)
	if err != nil {
		logger.FromContext(r.Context()).Warn("invalid query request", zap.Error(err))
		api.HandleError(w, err)
		return
	}

	outcome, err := h.router.Answer(r.Context(), req.Query, req.turns())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Answer(w, outcome.Answer)
}

// Test answers GET /test
func (h *QueryHandler) Test(w http.ResponseWriter, r *http.Request) {
	api.Answer(w, LivenessAnswer)
}
