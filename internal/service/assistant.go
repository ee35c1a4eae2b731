package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ragchat/internal/corpus"
	"ragchat/internal/domain"
	"ragchat/internal/history"
	"ragchat/internal/logger"
)

// DefaultIngestKinds maps ingest kinds to the document they replace.
var DefaultIngestKinds = map[string]string{
	"cv":   "cv.md",
	"site": "site_faqs.md",
}

// Corpus is one published corpus generation. It is immutable.
type Corpus struct {
	Index    domain.VectorIndex
	Sitemap  domain.Sitemap
	Failures []corpus.Failure
	LoadedAt time.Time
}

// Len returns the number of indexed chunks.
func (c *Corpus) Len() int {
	if c == nil || c.Index == nil {
		return 0
	}
	return c.Index.Len()
}

// CorpusLoader builds a corpus generation from a directory.
type CorpusLoader interface {
	Load(ctx context.Context, dir string) corpus.Result
}

// Observer receives events for metrics. Implementations must be safe for
// concurrent use.
type Observer interface {
	ChatAnswered(outcome string, elapsed time.Duration)
	CorpusReloaded(chunks, failures int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ChatAnswered(string, time.Duration)     {}
func (nopObserver) CorpusReloaded(int, int, time.Duration) {}

// Stats is a snapshot of the assistant state.
type Stats struct {
	IndexedChunks int `json:"indexed_chunks"`
	TopK          int `json:"top_k"`
	Documents     int `json:"documents"`
	Sessions      int `json:"sessions"`
}

// IngestResult reports the corpus rebuilt after an ingest.
type IngestResult struct {
	IndexedChunks int
	Failures      []corpus.Failure
}

// Assistant is the process-scoped state shared by all requests: the current
// corpus generation, the session history and the answering pipeline.
type Assistant struct {
	loader   CorpusLoader
	rag      *RAGService
	history  *history.Store
	dataDir  string
	kinds    map[string]string
	observer Observer

	current atomic.Pointer[Corpus]
	// rebuildMu serializes document writes and reloads.
	rebuildMu sync.Mutex
}

// AssistantOptions configures an Assistant.
type AssistantOptions struct {
	DataDir     string
	IngestKinds map[string]string
	Observer    Observer
}

// NewAssistant creates an assistant holding an empty corpus. Call Reload to
// index the data directory.
func NewAssistant(loader CorpusLoader, rag *RAGService, hist *history.Store, opts AssistantOptions) *Assistant {
	a := &Assistant{
		loader:   loader,
		rag:      rag,
		history:  hist,
		dataDir:  opts.DataDir,
		kinds:    opts.IngestKinds,
		observer: opts.Observer,
	}
	if len(a.kinds) == 0 {
		a.kinds = DefaultIngestKinds
	}
	if a.observer == nil {
		a.observer = nopObserver{}
	}
	a.current.Store(&Corpus{Sitemap: domain.EmptySitemap()})
	return a
}

// Corpus returns the current corpus generation.
func (a *Assistant) Corpus() *Corpus { return a.current.Load() }

// Loaded reports whether any chunk is indexed.
func (a *Assistant) Loaded() bool { return a.Corpus().Len() > 0 }

// Kinds returns the accepted ingest kinds, sorted.
func (a *Assistant) Kinds() []string {
	return slices.Sorted(maps.Keys(a.kinds))
}

// Reload rebuilds the corpus from the data directory and publishes it.
// Readers keep using the previous generation until the swap.
func (a *Assistant) Reload(ctx context.Context) *Corpus {
	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()
	return a.reloadLocked(ctx)
}

func (a *Assistant) reloadLocked(ctx context.Context) *Corpus {
	start := time.Now()
	res := a.loader.Load(ctx, a.dataDir)
	c := &Corpus{Sitemap: res.Sitemap, Failures: res.Failures, LoadedAt: time.Now()}
	if res.Index != nil {
		c.Index = res.Index
	}
	a.current.Store(c)

	for _, f := range res.Failures {
		logger.Warn("SERVICE: corpus load issue: %v", f)
	}
	logger.Info("SERVICE: corpus ready with %d chunks from %d documents", c.Len(), len(c.Sitemap.Documents))
	a.observer.CorpusReloaded(c.Len(), len(res.Failures), time.Since(start))
	return c
}

// Ingest replaces the document behind kind with text and rebuilds the
// whole corpus before returning. The rebuild ignores cancellation of ctx.
func (a *Assistant) Ingest(ctx context.Context, kind, text string) (IngestResult, error) {
	name, ok := a.kinds[kind]
	if !ok {
		return IngestResult{}, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return IngestResult{}, fmt.Errorf("%w: empty document", domain.ErrInvalidInput)
	}

	a.rebuildMu.Lock()
	defer a.rebuildMu.Unlock()
	if err := corpus.WriteDocument(a.dataDir, name, text+"\n"); err != nil {
		return IngestResult{}, fmt.Errorf("write %s: %w", name, err)
	}
	logger.Info("SERVICE: ingested %s (%d chars)", name, len(text))
	// the rebuild replaces the corpus for every reader, so the caller going
	// away must not cut it short; the embedder's overall timeout bounds it
	c := a.reloadLocked(context.WithoutCancel(ctx))
	return IngestResult{IndexedChunks: c.Len(), Failures: c.Failures}, nil
}

// Chat answers query for a session and records the exchange on success.
func (a *Assistant) Chat(ctx context.Context, sessionID, query string) (domain.Outcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: empty session id", domain.ErrInvalidInput)
	}

	start := time.Now()
	outcome := a.rag.Answer(ctx, a.Corpus(), query, a.history.Turns(sessionID))
	switch o := outcome.(type) {
	case domain.Success:
		a.history.Append(sessionID, query, o.Answer)
		a.observer.ChatAnswered("success", time.Since(start))
	case domain.Degraded:
		a.observer.ChatAnswered("degraded", time.Since(start))
	}
	return outcome, nil
}

// Stats returns a snapshot of the assistant state.
func (a *Assistant) Stats() Stats {
	c := a.Corpus()
	return Stats{
		IndexedChunks: c.Len(),
		TopK:          a.rag.TopK(),
		Documents:     len(c.Sitemap.Documents),
		Sessions:      a.history.Len(),
	}
}
