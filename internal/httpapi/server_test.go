package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/chunker"
	"ragchat/internal/corpus"
	"ragchat/internal/domain"
	"ragchat/internal/fakes"
	"ragchat/internal/history"
	"ragchat/internal/observability"
	"ragchat/internal/prompt"
	"ragchat/internal/service"
)

const testDim = 32

type testEnv struct {
	dir       string
	embedder  *fakes.Embedder
	completer *fakes.Completer
	assistant *service.Assistant
	handler   http.Handler
}

func newEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	dir := t.TempDir()
	emb := fakes.NewEmbedder(testDim)
	comp := &fakes.Completer{Reply: "Conor is a software engineer."}
	loader, err := corpus.NewLoader(emb, chunker.NewParagraphChunker(0, 0), nil, corpus.Options{Dimension: testDim})
	require.NoError(t, err)
	rag := service.NewRAGService(emb, comp, prompt.NewBuilder(prompt.Limits{}), service.Options{})
	a := service.NewAssistant(loader, rag, history.NewStore(6, 400), service.AssistantOptions{DataDir: dir})
	opts.Mode = gin.TestMode
	srv := NewServer(a, observability.NewMetrics("test"), opts)
	return &testEnv{dir: dir, embedder: emb, completer: comp, assistant: a, handler: srv.Handler()}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func postJSON(path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestChat_AnswersWithCitations(t *testing.T) {
	env := newEnv(t, Options{})
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "cv.md"), []byte("Conor is a software engineer."), 0o644))
	env.assistant.Reload(context.Background())

	w := env.do(postJSON("/chat", map[string]string{"session_id": "abc", "query": "What does Conor do?"}))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Conor is a software engineer.", resp.Answer)
	assert.Equal(t, "abc", resp.SessionID)
	require.NotEmpty(t, resp.Citations)
	assert.Equal(t, domain.Citation{Source: "cv", Chunk: 0}, resp.Citations[0])
}

func TestChat_MintsSessionAndReturnsEmptyCitations(t *testing.T) {
	env := newEnv(t, Options{})

	w := env.do(postJSON("/chat", map[string]string{"query": "hello"}))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["session_id"])
	assert.Equal(t, []any{}, body["citations"])
}

func TestChat_ProviderFailureIs502WithAnswer(t *testing.T) {
	env := newEnv(t, Options{})
	env.embedder.Err = errors.New("timeout")

	w := env.do(postJSON("/chat", map[string]string{"session_id": "s", "query": "What does Conor do?"}))

	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, body["error"], body["answer"])
	assert.Equal(t, []any{}, body["citations"])
}

func TestChat_BadRequests(t *testing.T) {
	env := newEnv(t, Options{})

	w := env.do(postJSON("/chat", map[string]string{"session_id": "s"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(postJSON("/chat", map[string]string{"query": "   "}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
}

func TestIngest_FormTextRebuildsIndex(t *testing.T) {
	env := newEnv(t, Options{})
	form := url.Values{"text": {"Q: Where is the blog?\n\nA: Under /blog."}}
	req := httptest.NewRequest(http.MethodPost, "/ingest/site", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := env.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(1), body["indexed_chunks"])
	assert.FileExists(t, filepath.Join(env.dir, "site_faqs.md"))

	health := decode(t, env.do(httptest.NewRequest(http.MethodGet, "/health", nil)))
	assert.Equal(t, map[string]any{"status": "ok", "corpus_loaded": true}, health)
}

func TestIngest_MultipartFile(t *testing.T) {
	env := newEnv(t, Options{})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "resume.md")
	require.NoError(t, err)
	_, err = fw.Write([]byte("# Conor\n\nSoftware engineer."))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/ingest/cv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := env.do(req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data, err := os.ReadFile(filepath.Join(env.dir, "cv.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Conor\n\nSoftware engineer.\n", string(data))
}

func TestIngest_RawBodyAndErrors(t *testing.T) {
	env := newEnv(t, Options{})

	req := httptest.NewRequest(http.MethodPost, "/ingest/cv", strings.NewReader("Plain CV text."))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusOK, env.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/ingest/cv", strings.NewReader("   "))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/ingest/photos", strings.NewReader("x"))
	assert.Equal(t, http.StatusNotFound, env.do(req).Code)
}

func TestIngest_UploadTooLarge(t *testing.T) {
	env := newEnv(t, Options{MaxUploadBytes: 8})
	req := httptest.NewRequest(http.MethodPost, "/ingest/cv", strings.NewReader(strings.Repeat("x", 64)))
	req.Header.Set("Content-Type", "text/plain")

	assert.Equal(t, http.StatusRequestEntityTooLarge, env.do(req).Code)
}

func TestHealthAndStats(t *testing.T) {
	env := newEnv(t, Options{})

	health := decode(t, env.do(httptest.NewRequest(http.MethodGet, "/health", nil)))
	assert.Equal(t, map[string]any{"status": "ok", "corpus_loaded": false}, health)

	stats := decode(t, env.do(httptest.NewRequest(http.MethodGet, "/debug/stats", nil)))
	assert.Equal(t, float64(0), stats["indexed_chunks"])
	assert.Equal(t, float64(service.DefaultTopK), stats["top_k"])

	w := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestCORS(t *testing.T) {
	env := newEnv(t, Options{AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := env.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	assert.Empty(t, env.do(req).Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	env := newEnv(t, Options{RateLimit: 0.001, RateBurst: 2})

	codes := make([]int, 3)
	for i := range codes {
		codes[i] = env.do(postJSON("/chat", map[string]string{"query": "hi"})).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestRateLimit_NegativeRateDisables(t *testing.T) {
	env := newEnv(t, Options{RateLimit: -1, RateBurst: 1})

	for range 5 {
		assert.Equal(t, http.StatusOK, env.do(postJSON("/chat", map[string]string{"query": "hi"})).Code)
	}
}

func TestIPLimiter_EvictsIdleClients(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := newIPLimiter(1, 1)
	l.now = func() time.Time { return now }
	l.lastSweep = now

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
	assert.False(t, l.allow("10.0.0.1"))
	assert.Equal(t, 2, l.size())

	now = now.Add(limiterIdleTTL / 2)
	assert.True(t, l.allow("10.0.0.2"))

	now = now.Add(limiterIdleTTL / 2)
	assert.True(t, l.allow("10.0.0.3"))
	assert.Equal(t, 2, l.size(), "10.0.0.1 was idle for a full ttl")
	_, kept := l.clients["10.0.0.2"]
	assert.True(t, kept)
}
