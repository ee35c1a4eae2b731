package service

import (
	"context"
	"fmt"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/prompt"
)

// DefaultPersona is the system persona used when none is configured.
const DefaultPersona = "You are the site guide of a personal portfolio. " +
	"You help visitors navigate the site, answer questions about the owner's professional background " +
	"and point them to relevant sections or actions. You have access to the CV, the site content and the navigation map. " +
	"Be conversational, helpful and concise. When the context does not cover something, say so and suggest a next step or contact. " +
	"Include up to 3 relevant links when helpful."

// Defaults for RAGService options.
const (
	DefaultTopK        = 5
	DefaultCitations   = 3
	DefaultPromptTurns = 3
)

// RAGService answers one question against one corpus generation. It keeps no
// per-request state and never touches the index or the history store.
type RAGService struct {
	embedder    domain.Embedder
	completer   domain.Completer
	builder     *prompt.Builder
	topK        int
	citations   int
	promptTurns int
	system      string
}

// Options configures a RAGService. Zero fields take the defaults.
type Options struct {
	TopK        int
	Citations   int
	PromptTurns int
	Persona     string
}

// NewRAGService creates the answering pipeline.
func NewRAGService(embedder domain.Embedder, completer domain.Completer, builder *prompt.Builder, opts Options) *RAGService {
	s := &RAGService{
		embedder:    embedder,
		completer:   completer,
		builder:     builder,
		topK:        DefaultTopK,
		citations:   DefaultCitations,
		promptTurns: DefaultPromptTurns,
		system:      prompt.SystemMessage(DefaultPersona),
	}
	if opts.TopK > 0 {
		s.topK = opts.TopK
	}
	if opts.Citations > 0 {
		s.citations = opts.Citations
	}
	if opts.PromptTurns > 0 {
		s.promptTurns = opts.PromptTurns
	}
	if strings.TrimSpace(opts.Persona) != "" {
		s.system = prompt.SystemMessage(opts.Persona)
	}
	return s
}

// TopK returns the number of passages retrieved per question.
func (s *RAGService) TopK() int { return s.topK }

// Answer retrieves context for query from c and asks the completion model.
// Provider failures come back as domain.Degraded, never as errors.
func (s *RAGService) Answer(ctx context.Context, c *Corpus, query string, history []domain.Turn) domain.Outcome {
	vecs, err := s.embedder.Embed(ctx, []string{query})
	if err == nil && len(vecs) != 1 {
		err = fmt.Errorf("%w: expected 1 query vector, got %d", domain.ErrEmbedding, len(vecs))
	}
	if err != nil {
		logger.Warn("SERVICE: query embedding failed: %v", err)
		return domain.Degraded{
			Message: fmt.Sprintf("Sorry, I can't search the knowledge base right now (%v). Please try again shortly.", err),
			Err:     err,
		}
	}

	var results []domain.SearchResult
	if c.Len() > 0 {
		results = c.Index.Search(vecs[0], s.topK)
	}

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: s.system},
		{Role: domain.RoleUser, Content: prompt.UserMessage(
			query,
			prompt.RenderHistory(history, s.promptTurns),
			s.builder.Build(query, results, c.Sitemap),
		)},
	}
	text, err := s.completer.Complete(ctx, messages)
	if err != nil {
		logger.Warn("SERVICE: completion failed: %v", err)
		return domain.Degraded{
			Message: fmt.Sprintf("Sorry, I couldn't generate an answer right now (%v). Please try again shortly.", err),
			Err:     err,
		}
	}

	citations := make([]domain.Citation, 0, min(len(results), s.citations))
	for _, r := range results[:min(len(results), s.citations)] {
		citations = append(citations, domain.Citation{Source: r.Payload.Source, Chunk: r.Payload.Chunk})
	}
	return domain.Success{Answer: text, Citations: citations}
}
