package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/nutrirag/internal/api"
	"github.com/cloo-solutions/nutrirag/internal/domain"
	"github.com/cloo-solutions/nutrirag/internal/service"
)

type MockQueryRouter struct {
	mock.Mock
}

func (m *MockQueryRouter) Answer(ctx context.Context, query string, history []domain.ConversationTurn) (*service.Outcome, error) {
	args := m.Called(ctx, query, history)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Outcome), args.Error(1)
}

func postQuery(t *testing.T, h *QueryHandler, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(http.MethodPost, "/query", &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.Query(w, req)
	return w
}

func decodeAnswer(t *testing.T, w *httptest.ResponseRecorder) api.AnswerResponse {
	t.Helper()
	var resp api.AnswerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestQueryHandler_Success(t *testing.T) {
	router := new(MockQueryRouter)
	router.On("Answer", mock.Anything, "How much vitamin C is in an orange?", []domain.ConversationTurn(nil)).
		Return(&service.Outcome{Answer: "About 53 mg per 100 g.", State: domain.StateDone}, nil)

	w := postQuery(t, NewQueryHandler(router), QueryRequest{Query: "How much vitamin C is in an orange?"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"About 53 mg per 100 g."}`, w.Body.String())
	router.AssertExpectations(t)
}

func TestQueryHandler_PassesHistory(t *testing.T) {
	router := new(MockQueryRouter)
	ts := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	router.On("Answer", mock.Anything, "and after running?", mock.MatchedBy(func(turns []domain.ConversationTurn) bool {
		return len(turns) == 2 &&
			turns[0].Sender == "user" && turns[0].Timestamp != nil && turns[0].Timestamp.Equal(ts) &&
			turns[1].Sender == "ai" && turns[1].Timestamp == nil
	})).Return(&service.Outcome{Answer: "ok"}, nil)

	body := `{"query":"and after running?","history":[
		{"sender":"user","text":"what should I eat?","timestamp":"2026-03-01T09:00:00Z"},
		{"sender":"ai","text":"oats"}]}`
	w := postQuery(t, NewQueryHandler(router), body)

	assert.Equal(t, http.StatusOK, w.Code)
	router.AssertExpectations(t)
}

func TestQueryHandler_Refusal(t *testing.T) {
	router := new(MockQueryRouter)
	router.On("Answer", mock.Anything, "", mock.Anything).
		Return(&service.Outcome{Answer: service.RefusalText, State: domain.StateDone}, nil)

	w := postQuery(t, NewQueryHandler(router), `{"query":""}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.RefusalText, decodeAnswer(t, w).Answer)
}

func TestQueryHandler_InvalidJSON(t *testing.T) {
	router := new(MockQueryRouter)

	w := postQuery(t, NewQueryHandler(router), `{"query":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeAnswer(t, w)
	assert.Equal(t, api.Apology, resp.Answer)
	assert.Equal(t, domain.ErrCodeValidation, resp.Error)
	router.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
}

func TestQueryHandler_QueryTooLong(t *testing.T) {
	router := new(MockQueryRouter)

	w := postQuery(t, NewQueryHandler(router), QueryRequest{Query: strings.Repeat("a", 4001)})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	router.AssertNotCalled(t, "Answer", mock.Anything, mock.Anything, mock.Anything)
}

func TestQueryHandler_PipelineErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unavailable", domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, domain.ErrCodeRetrievalUnavailable},
		{"retrieval timeout", domain.ErrRetrievalTimeout, http.StatusGatewayTimeout, domain.ErrCodeRetrievalTimeout},
		{"generation timeout", domain.ErrGenerationTimeout, http.StatusGatewayTimeout, domain.ErrCodeGenerationTimeout},
		{"generation failure", domain.ErrGenerationFailure, http.StatusBadGateway, domain.ErrCodeGenerationFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := new(MockQueryRouter)
			router.On("Answer", mock.Anything, "protein in eggs", mock.Anything).
				Return(&service.Outcome{State: domain.StateErrored}, tt.err)

			w := postQuery(t, NewQueryHandler(router), QueryRequest{Query: "protein in eggs"})

			assert.Equal(t, tt.status, w.Code)
			resp := decodeAnswer(t, w)
			assert.Equal(t, api.Apology, resp.Answer)
			assert.Equal(t, tt.code, resp.Error)
		})
	}
}

func TestQueryHandler_Test(t *testing.T) {
	w := httptest.NewRecorder()

	NewQueryHandler(new(MockQueryRouter)).Test(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"RAG service is up and running"}`, w.Body.String())
}
