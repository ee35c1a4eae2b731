package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned by Validate for unusable settings.
var ErrInvalidConfig = errors.New("invalid config")

// EmbedderConfig configures the OpenAI embeddings endpoint.
type EmbedderConfig struct {
	BaseURL   string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" toml:"api_key_env"`
	Model     string `yaml:"model" toml:"model"`
	Dimension int    `yaml:"dimension" toml:"dimension"`
}

// CompletionConfig configures the chat completion model.
type CompletionConfig struct {
	Model       string  `yaml:"model" toml:"model"`
	Temperature float64 `yaml:"temperature" toml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" toml:"max_tokens"`
}

// TimeoutsConfig holds the two timeout layers applied to every provider call.
type TimeoutsConfig struct {
	RequestSecs int `yaml:"request_secs" toml:"request_secs"`
	OverallSecs int `yaml:"overall_secs" toml:"overall_secs"`
	MaxRetries  int `yaml:"max_retries" toml:"max_retries"`
}

// Request returns the per-attempt timeout.
func (t TimeoutsConfig) Request() time.Duration { return time.Duration(t.RequestSecs) * time.Second }

// Overall returns the bound on a whole provider call including retries.
func (t TimeoutsConfig) Overall() time.Duration { return time.Duration(t.OverallSecs) * time.Second }

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxChars   int      `yaml:"max_chars" toml:"max_chars"`
	Overlap    int      `yaml:"overlap" toml:"overlap"`
	Separators []string `yaml:"separators,omitempty" toml:"separators,omitempty"`
}

// RetrievalConfig configures search and the context block.
type RetrievalConfig struct {
	TopK          int `yaml:"top_k" toml:"top_k"`
	ContextChunks int `yaml:"context_chunks" toml:"context_chunks"`
	ExcerptChars  int `yaml:"excerpt_chars" toml:"excerpt_chars"`
	Citations     int `yaml:"citations" toml:"citations"`
	Routes        int `yaml:"routes" toml:"routes"`
	CTAs          int `yaml:"ctas" toml:"ctas"`
}

// HistoryConfig configures the per-session conversation window.
type HistoryConfig struct {
	Window         int `yaml:"window" toml:"window"`
	PromptTurns    int `yaml:"prompt_turns" toml:"prompt_turns"`
	AssistantChars int `yaml:"assistant_chars" toml:"assistant_chars"`
}

// CorpusConfig configures where documents are read from.
type CorpusConfig struct {
	DataDir      string   `yaml:"data_dir" toml:"data_dir"`
	Include      []string `yaml:"include" toml:"include"`
	SitemapFiles []string `yaml:"sitemap_files" toml:"sitemap_files"`
	PreviewChars int      `yaml:"preview_chars" toml:"preview_chars"`
	Watch        bool     `yaml:"watch" toml:"watch"`

	// Sources maps a document path to the source name used in citations.
	Sources map[string]string `yaml:"sources" toml:"sources"`
}

// ServerConfig configures the HTTP shell.
type ServerConfig struct {
	Addr           string            `yaml:"addr" toml:"addr"`
	Mode           string            `yaml:"mode" toml:"mode"`
	AllowedOrigins []string          `yaml:"allowed_origins" toml:"allowed_origins"`
	// RateLimit is requests per second per client IP. Zero selects the
	// default; a negative value disables limiting.
	RateLimit      float64           `yaml:"rate_limit" toml:"rate_limit"`
	RateBurst      int               `yaml:"rate_burst" toml:"rate_burst"`
	IngestKinds    map[string]string `yaml:"ingest_kinds" toml:"ingest_kinds"`
}

// AssistantConfig configures the assistant persona.
type AssistantConfig struct {
	Persona string `yaml:"persona,omitempty" toml:"persona,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder   EmbedderConfig   `yaml:"embedder" toml:"embedder"`
	Completion CompletionConfig `yaml:"completion" toml:"completion"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts" toml:"timeouts"`
	Chunker    ChunkerConfig    `yaml:"chunker" toml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" toml:"retrieval"`
	History    HistoryConfig    `yaml:"history" toml:"history"`
	Corpus     CorpusConfig     `yaml:"corpus" toml:"corpus"`
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Assistant  AssistantConfig  `yaml:"assistant" toml:"assistant"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults. Files ending in .toml are decoded as TOML, anything
// else as YAML. The result is validated.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if isTOML(path) {
		err = toml.Unmarshal(data, &cfg)
	} else {
		err = yaml.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml, then ./config.toml, then
// ~/.config/ragchat/config.yaml. If none exists, it writes defaults to the
// user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	for _, p := range []string{"config.yaml", "config.toml"} {
		if _, err := os.Stat(p); err == nil {
			cfg, err := Load(p)
			return cfg, p, err
		}
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the pipeline cannot run with.
func (c *AppConfig) Validate() error {
	var problems []string
	if c.Embedder.Dimension <= 0 {
		problems = append(problems, "embedder.dimension must be positive")
	}
	if c.Embedder.APIKeyEnv == "" {
		problems = append(problems, "embedder.api_key_env must be set")
	}
	if c.Chunker.MaxChars <= 0 {
		problems = append(problems, "chunker.max_chars must be positive")
	}
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.MaxChars {
		problems = append(problems, "chunker.overlap must be in [0, max_chars)")
	}
	if c.Timeouts.RequestSecs <= 0 {
		problems = append(problems, "timeouts.request_secs must be positive")
	}
	if c.Timeouts.OverallSecs < c.Timeouts.RequestSecs {
		problems = append(problems, "timeouts.overall_secs must be at least request_secs")
	}
	if c.Timeouts.MaxRetries < 0 {
		problems = append(problems, "timeouts.max_retries must not be negative")
	}
	if c.Retrieval.TopK <= 0 {
		problems = append(problems, "retrieval.top_k must be positive")
	}
	if c.History.Window < c.History.PromptTurns {
		problems = append(problems, "history.window must be at least prompt_turns")
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		problems = append(problems, "completion.temperature must be in [0, 2]")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = "https://api.openai.com/v1/"
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 1536
	}
	if cfg.Completion.Model == "" {
		cfg.Completion.Model = "gpt-4o-mini"
		// temperature is only defaulted along with the model
		if cfg.Completion.Temperature == 0 {
			cfg.Completion.Temperature = 0.3
		}
	}
	if cfg.Timeouts.RequestSecs == 0 {
		cfg.Timeouts.RequestSecs = 30
	}
	if cfg.Timeouts.OverallSecs == 0 {
		cfg.Timeouts.OverallSecs = max(45, cfg.Timeouts.RequestSecs)
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = 1200
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = min(120, cfg.Chunker.MaxChars/10)
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.ContextChunks == 0 {
		cfg.Retrieval.ContextChunks = 3
	}
	if cfg.Retrieval.ExcerptChars == 0 {
		cfg.Retrieval.ExcerptChars = 800
	}
	if cfg.Retrieval.Citations == 0 {
		cfg.Retrieval.Citations = 3
	}
	if cfg.Retrieval.Routes == 0 {
		cfg.Retrieval.Routes = 6
	}
	if cfg.Retrieval.CTAs == 0 {
		cfg.Retrieval.CTAs = 4
	}
	if cfg.History.Window == 0 {
		cfg.History.Window = 6
	}
	if cfg.History.PromptTurns == 0 {
		cfg.History.PromptTurns = 3
	}
	if cfg.History.AssistantChars == 0 {
		cfg.History.AssistantChars = 400
	}
	if cfg.Corpus.DataDir == "" {
		cfg.Corpus.DataDir = "data"
	}
	if len(cfg.Corpus.Include) == 0 {
		cfg.Corpus.Include = []string{"*.md", "*.txt"}
	}
	if len(cfg.Corpus.SitemapFiles) == 0 {
		cfg.Corpus.SitemapFiles = []string{"sitemap.json", "sitemap.yaml", "sitemap.yml"}
	}
	if cfg.Corpus.PreviewChars == 0 {
		cfg.Corpus.PreviewChars = 160
	}
	if cfg.Corpus.Sources == nil {
		cfg.Corpus.Sources = map[string]string{"site_faqs.md": "faq"}
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 2
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 10
	}
	if len(cfg.Server.IngestKinds) == 0 {
		cfg.Server.IngestKinds = map[string]string{"cv": "cv.md", "site": "site_faqs.md"}
	}
}
