// Package httpapi exposes the assistant over HTTP.
package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ragchat/internal/domain"
	"ragchat/internal/extract"
	"ragchat/internal/observability"
	"ragchat/internal/service"
)

// DefaultMaxUploadBytes caps ingest request bodies.
const DefaultMaxUploadBytes = 10 << 20

// Options configures the HTTP shell.
type Options struct {
	// Mode is the gin mode: debug, release or test.
	Mode           string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	MaxUploadBytes int64
}

// Server routes HTTP requests to the assistant.
type Server struct {
	assistant *service.Assistant
	metrics   *observability.Metrics
	opts      Options
	router    *gin.Engine
}

// NewServer builds the router. metrics may be nil.
func NewServer(assistant *service.Assistant, metrics *observability.Metrics, opts Options) *Server {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{assistant: assistant, metrics: metrics, opts: opts, router: gin.New()}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery(), requestLogger(), corsMiddleware(s.opts.AllowedOrigins))
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware())
	}
}

func (s *Server) setupRoutes() {
	limited := rateLimitMiddleware(s.opts.RateLimit, s.opts.RateBurst)
	s.router.POST("/chat", limited, s.chat)
	s.router.POST("/ingest/:kind", limited, s.ingest)
	s.router.GET("/health", s.health)
	s.router.GET("/debug/stats", s.stats)
	if s.metrics != nil {
		s.router.GET("/metrics", s.metrics.Handler())
	}
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query" binding:"required"`
}

type chatResponse struct {
	Answer    string            `json:"answer"`
	Citations []domain.Citation `json:"citations"`
	SessionID string            `json:"session_id"`
	Error     string            `json:"error,omitempty"`
}

func (s *Server) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	outcome, err := s.assistant.Chat(c.Request.Context(), req.SessionID, req.Query)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	switch o := outcome.(type) {
	case domain.Success:
		c.JSON(http.StatusOK, chatResponse{Answer: o.Answer, Citations: o.Citations, SessionID: req.SessionID})
	case domain.Degraded:
		c.JSON(http.StatusBadGateway, chatResponse{
			Answer:    o.Message,
			Citations: []domain.Citation{},
			SessionID: req.SessionID,
			Error:     o.Message,
		})
	}
}

func (s *Server) ingest(c *gin.Context) {
	kind := c.Param("kind")
	if !slices.Contains(s.assistant.Kinds(), kind) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown ingest kind %q", kind)})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)

	text, err := readDocument(c)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	res, err := s.assistant.Ingest(c.Request.Context(), kind, text)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	body := gin.H{"ok": true, "indexed_chunks": res.IndexedChunks}
	if len(res.Failures) > 0 {
		failures := make([]string, len(res.Failures))
		for i, f := range res.Failures {
			failures[i] = f.Error()
		}
		body["failures"] = failures
	}
	c.JSON(http.StatusOK, body)
}

// readDocument accepts a multipart "file" upload, a "text" form field or a
// raw text body.
func readDocument(c *gin.Context) (string, error) {
	ct := c.ContentType()
	switch {
	case ct == "multipart/form-data":
		fh, err := c.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return c.PostForm("text"), nil
		}
		if err != nil {
			return "", err
		}
		f, err := fh.Open()
		if err != nil {
			return "", err
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", err
		}
		return extract.Text(fh.Filename, data)
	case ct == "application/x-www-form-urlencoded":
		return c.PostForm("text"), nil
	default:
		data, err := io.ReadAll(c.Request.Body)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "corpus_loaded": s.assistant.Loaded()})
}

func (s *Server) stats(c *gin.Context) {
	c.JSON(http.StatusOK, s.assistant.Stats())
}

func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, domain.ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
