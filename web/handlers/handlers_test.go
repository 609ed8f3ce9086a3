package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"power-atlas/database"
	apperrors "power-atlas/errors"
	"power-atlas/rag"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGraph struct {
	query   string
	params  map[string]any
	results []map[string]any
	err     error
	seeded  bool
}

func (s *stubGraph) ExecuteCypher(_ context.Context, query string, params map[string]any) ([]map[string]any, error) {
	s.query = query
	s.params = params
	return s.results, s.err
}

func (s *stubGraph) SeedDemoGraph(context.Context) (*database.SeedResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.seeded = true
	return &database.SeedResult{Status: "success", Message: "Demo graph created with 3 persons and 2 relationships"}, nil
}

type stubAnswers struct {
	question string
	topK     int
	filters  rag.FilterSpec
	answer   *rag.Answer
	err      error
}

func (s *stubAnswers) Search(_ context.Context, question string, topK int, filters rag.FilterSpec) (*rag.Answer, error) {
	s.question = question
	s.topK = topK
	s.filters = filters
	return s.answer, s.err
}

func newTestRouter(graph GraphService, answers AnswerService) *gin.Engine {
	r := gin.New()
	r.GET("/", Root)
	r.GET("/health", Health)
	gh := NewGraphHandler(graph, nil)
	r.POST("/cypher", gh.Cypher)
	r.POST("/seed", gh.Seed)
	r.POST("/retrieve", NewRetrieveHandler(answers, 5, nil).Retrieve)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w.Code, out
}

func TestHealthAndRoot(t *testing.T) {
	r := newTestRouter(nil, nil)

	code, body := do(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"status": "ok", "message": "Backend is healthy"}, body)

	code, body = do(t, r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Power Atlas API", body["message"])
	assert.Equal(t, "0.1.0", body["version"])
	assert.Equal(t, "/docs", body["docs"])
}

func TestGraphEndpointsNotConfigured(t *testing.T) {
	r := newTestRouter(nil, nil)

	code, body := do(t, r, http.MethodPost, "/cypher", `{"query":"MATCH (n) RETURN n"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Graph query service is not configured", body["error"])

	code, body = do(t, r, http.MethodPost, "/seed", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Graph seed service is not configured", body["error"])
}

func TestCypher(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		graph    *stubGraph
		wantCode int
	}{
		{"ok", `{"query":"MATCH (n) RETURN n","params":{"name":"Alice"}}`,
			&stubGraph{results: []map[string]any{{"result": `{"id": 1}::vertex`}}}, http.StatusOK},
		{"empty query", `{"query":"   "}`, &stubGraph{}, http.StatusBadRequest},
		{"bad json", `{`, &stubGraph{}, http.StatusBadRequest},
		{"db failure", `{"query":"MATCH (n) RETURN n"}`, &stubGraph{err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := do(t, newTestRouter(tt.graph, nil), http.MethodPost, "/cypher", tt.body)
			assert.Equal(t, tt.wantCode, code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "MATCH (n) RETURN n", tt.graph.query)
				assert.Equal(t, map[string]any{"name": "Alice"}, tt.graph.params)
				assert.Equal(t, []any{map[string]any{"result": `{"id": 1}::vertex`}}, body["results"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestSeed(t *testing.T) {
	g := &stubGraph{}
	code, body := do(t, newTestRouter(g, nil), http.MethodPost, "/seed", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, g.seeded)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Demo graph created with 3 persons and 2 relationships", body["message"])
}

func TestRetrieve(t *testing.T) {
	content := "[source: /data/a.pdf | hitChunk: 2 | score: 0.9]\nhit window (chunk 2 | score: 0.9)\nLina Park chaired the hearing."
	answers := &stubAnswers{answer: &rag.Answer{
		Question:          "Who chaired?",
		Text:              "- Lina Park chaired the hearing. [source: /data/a.pdf | hitChunk: 2 | score: 0.9]",
		Traces:            []string{"/data/a.pdf#chunk2"},
		DuplicatesRemoved: 1,
		Items:             []rag.ContextItem{{Content: content, Metadata: map[string]any{"hit_index": 2}}},
	}}

	code, body := do(t, newTestRouter(nil, answers), http.MethodPost, "/retrieve",
		`{"query":"Who chaired?","corpus":" demo ","doc_type":"FACTS"}`)
	require.Equal(t, http.StatusOK, code)

	assert.Equal(t, "Who chaired?", answers.question)
	assert.Equal(t, 5, answers.topK)
	require.NotNil(t, answers.filters.DocType)
	assert.Equal(t, "facts", *answers.filters.DocType)
	assert.Equal(t, "demo", *answers.filters.Corpus)
	assert.Nil(t, answers.filters.DocumentPath)

	assert.Equal(t, []any{"/data/a.pdf#chunk2"}, body["traces"])
	assert.Equal(t, float64(1), body["duplicates_removed"])
	assert.Contains(t, body["answer_html"], "<li>")
	assert.Equal(t, map[string]any{"corpus": "demo", "doc_type": "facts", "document_path": nil}, body["filters"])

	contexts := body["contexts"].([]any)
	require.Len(t, contexts, 1)
	preview := contexts[0].(map[string]any)["preview"].(string)
	assert.NotContains(t, preview, "\n")
	assert.True(t, strings.HasPrefix(preview, "[source: /data/a.pdf | hitChunk: 2"))
}

func TestRetrieveErrors(t *testing.T) {
	code, body := do(t, newTestRouter(nil, nil), http.MethodPost, "/retrieve", `{"query":"q"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "Retrieval service is not configured", body["error"])

	answers := &stubAnswers{}
	code, body = do(t, newTestRouter(nil, answers), http.MethodPost, "/retrieve", `{"query":"q","doc_type":"memo"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], `"memo"`)
	assert.Empty(t, answers.question)

	answers = &stubAnswers{err: apperrors.WrapError(errors.New("llm down"), "generate answer")}
	code, _ = do(t, newTestRouter(nil, answers), http.MethodPost, "/retrieve", `{"query":"q"}`)
	assert.Equal(t, http.StatusBadGateway, code)

	answers = &stubAnswers{err: apperrors.WrapError(apperrors.ErrServiceUnavailable, "embed query")}
	code, _ = do(t, newTestRouter(nil, answers), http.MethodPost, "/retrieve", `{"query":"q"}`)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestStatusForError(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusForError(apperrors.ErrInvalidInput, 500))
	assert.Equal(t, http.StatusNotFound, statusForError(apperrors.WrapError(apperrors.ErrNotFound, "x"), 500))
	assert.Equal(t, http.StatusTeapot, statusForError(errors.New("other"), http.StatusTeapot))
}
