package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"estatechat/internal/history"
	"estatechat/internal/model"
	"estatechat/internal/schema"
	"estatechat/internal/service"
)

type fixedCompleter struct {
	reply string
}

func (f *fixedCompleter) Complete(_ context.Context, _ string, _ []model.Turn) (string, error) {
	return f.reply, nil
}

func (f *fixedCompleter) IsEnabled() bool { return true }

type emptyStore struct{}

func (emptyStore) Find(context.Context, string, map[string]any, []string) ([]model.Document, error) {
	return nil, nil
}

func (emptyStore) UnionFind(context.Context, string, map[string]any, []string, []model.Stage) ([]model.Document, error) {
	return nil, nil
}

func newTestRouter(t *testing.T, completer service.TextCompleter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	catalog := schema.NewCatalog()

	sessions := service.NewSessionManager(service.ConversationDeps{
		Log:       log,
		Completer: completer,
		Intents:   service.NewIntentParser(log),
		Builder:   service.NewQueryBuilder(catalog, log),
		Executor:  service.NewQueryExecutor(emptyStore{}, "apartments", log),
	}, func(string) (history.Store, error) {
		return history.NewMemoryStore(), nil
	})

	promptPath := filepath.Join(t.TempDir(), "classify.txt")
	require.NoError(t, os.WriteFile(promptPath, []byte("{history}\n{turn}\n{user_input}"), 0o644))

	h, err := NewChatHandler(sessions, promptPath, log)
	require.NoError(t, err)

	router := gin.New()
	router.POST("/api/v1/chat", h.Chat)
	router.GET("/api/v1/sessions/:id/history", h.History)
	return router
}

func postChat(t *testing.T, router *gin.Engine, body map[string]string) (*httptest.ResponseRecorder, model.ChatResponse) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp model.ChatResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestChat_NewSessionGetsAnID(t *testing.T) {
	router := newTestRouter(t, &fixedCompleter{
		reply: `{"query_type": "general_query", "response": "Hi there!"}`,
	})

	w, resp := postChat(t, router, map[string]string{"message": "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "Hi there!", resp.Reply)
}

func TestChat_MissingMessageIsRejected(t *testing.T) {
	router := newTestRouter(t, &fixedCompleter{})

	w, _ := postChat(t, router, map[string]string{"session_id": "s1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChat_ExitShortCircuitsTheClassifier(t *testing.T) {
	router := newTestRouter(t, &fixedCompleter{
		reply: `{"query_type": "general_query", "response": "should not be used"}`,
	})

	w, resp := postChat(t, router, map[string]string{"message": "  QUIT  "})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, goodbyeMessage, resp.Reply)
}

func TestChat_SessionIsReusedAcrossTurns(t *testing.T) {
	router := newTestRouter(t, &fixedCompleter{
		reply: `{"query_type": "general_query", "response": "Sure."}`,
	})

	_, first := postChat(t, router, map[string]string{"message": "one"})
	_, second := postChat(t, router, map[string]string{
		"session_id": first.SessionID,
		"message":    "two",
	})
	assert.Equal(t, first.SessionID, second.SessionID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+first.SessionID+"/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var hist model.HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	// Two full turns, finalized replies in place of the raw drafts
	require.Len(t, hist.Turns, 4)
	assert.Equal(t, "Sure.", hist.Turns[1].Text)
	assert.Equal(t, "Sure.", hist.Turns[3].Text)
}

func TestHistory_UnknownSessionIs404(t *testing.T) {
	router := newTestRouter(t, &fixedCompleter{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope/history", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
