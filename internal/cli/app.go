package cli

import (
	"fmt"

	"ragchat/internal/chunker"
	completion "ragchat/internal/completion/openai"
	"ragchat/internal/config"
	"ragchat/internal/corpus"
	"ragchat/internal/domain"
	embedding "ragchat/internal/embedding/openai"
	"ragchat/internal/history"
	"ragchat/internal/observability"
	"ragchat/internal/prompt"
	"ragchat/internal/service"
	"ragchat/internal/summarizer"
)

// Provider constructors. Tests replace them with in-process fakes.
var (
	newEmbedder = func(cfg *config.AppConfig) (domain.Embedder, error) {
		return embedding.NewClient(embedding.Config{
			BaseURL:        cfg.Embedder.BaseURL,
			APIKeyEnv:      cfg.Embedder.APIKeyEnv,
			Model:          cfg.Embedder.Model,
			Dimension:      cfg.Embedder.Dimension,
			RequestTimeout: cfg.Timeouts.Request(),
			OverallTimeout: cfg.Timeouts.Overall(),
			MaxRetries:     cfg.Timeouts.MaxRetries,
		})
	}
	newCompleter = func(cfg *config.AppConfig) (domain.Completer, error) {
		return completion.NewClient(completion.Config{
			BaseURL:        cfg.Embedder.BaseURL,
			APIKeyEnv:      cfg.Embedder.APIKeyEnv,
			Model:          cfg.Completion.Model,
			Temperature:    cfg.Completion.Temperature,
			MaxTokens:      cfg.Completion.MaxTokens,
			RequestTimeout: cfg.Timeouts.Request(),
			OverallTimeout: cfg.Timeouts.Overall(),
			MaxRetries:     cfg.Timeouts.MaxRetries,
		})
	}
)

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.AppConfig
	loader    *corpus.Loader
	assistant *service.Assistant
	metrics   *observability.Metrics
}

func newLoader(cfg *config.AppConfig, emb domain.Embedder) (*corpus.Loader, error) {
	return corpus.NewLoader(
		emb,
		chunker.NewParagraphChunker(cfg.Chunker.MaxChars, cfg.Chunker.Overlap, cfg.Chunker.Separators...),
		summarizer.NewFrequencySummarizer(),
		corpus.Options{
			Dimension:    cfg.Embedder.Dimension,
			Include:      cfg.Corpus.Include,
			SitemapFiles: cfg.Corpus.SitemapFiles,
			PreviewChars: cfg.Corpus.PreviewChars,
			Sources:      cfg.Corpus.Sources,
		},
	)
}

// newApp wires the assistant. Nothing is indexed yet; callers Reload.
func newApp(cfg *config.AppConfig) (*app, error) {
	emb, err := newEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	comp, err := newCompleter(cfg)
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}
	loader, err := newLoader(cfg, emb)
	if err != nil {
		return nil, err
	}

	builder := prompt.NewBuilder(prompt.Limits{
		ContextChunks: cfg.Retrieval.ContextChunks,
		ExcerptChars:  cfg.Retrieval.ExcerptChars,
		Routes:        cfg.Retrieval.Routes,
		CTAs:          cfg.Retrieval.CTAs,
	})
	rag := service.NewRAGService(emb, comp, builder, service.Options{
		TopK:        cfg.Retrieval.TopK,
		Citations:   cfg.Retrieval.Citations,
		PromptTurns: cfg.History.PromptTurns,
		Persona:     cfg.Assistant.Persona,
	})
	metrics := observability.NewMetrics("")
	assistant := service.NewAssistant(loader, rag,
		history.NewStore(cfg.History.Window, cfg.History.AssistantChars),
		service.AssistantOptions{
			DataDir:     cfg.Corpus.DataDir,
			IngestKinds: cfg.Server.IngestKinds,
			Observer:    metrics,
		})
	return &app{cfg: cfg, loader: loader, assistant: assistant, metrics: metrics}, nil
}
