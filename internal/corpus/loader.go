// Package corpus builds a searchable index from a directory of documents.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"ragchat/internal/domain"
	"ragchat/internal/extract"
	"ragchat/internal/logger"
	"ragchat/internal/prompt"
	"ragchat/internal/vectorstore/memory"
)

// Defaults for Options.
var (
	DefaultInclude      = []string{"*.md", "*.txt"}
	DefaultSitemapFiles = []string{"sitemap.json", "sitemap.yaml", "sitemap.yml"}
)

// DefaultPreviewChars caps document previews.
const DefaultPreviewChars = 160

const previewSentences = 2

// Failure records a document or metadata file that could not be used.
type Failure struct {
	Path string
	Err  error
}

func (f Failure) Error() string { return fmt.Sprintf("%s: %v", f.Path, f.Err) }

func (f Failure) Unwrap() error { return f.Err }

// Result is one corpus generation. It is never modified after Load returns.
type Result struct {
	Index    *memory.Index
	Sitemap  domain.Sitemap
	Failures []Failure
}

// Options configures a Loader.
type Options struct {
	Dimension    int
	Include      []string
	SitemapFiles []string
	PreviewChars int
	// Sources overrides the source name of a document, keyed by its path
	// relative to the data directory: {"site_faqs.md": "faq"}.
	Sources      map[string]string
}

// Loader reads, chunks and embeds every recognized document of a directory.
type Loader struct {
	embedder     domain.Embedder
	chunker      domain.Chunker
	summarizer   domain.Summarizer
	dimension    int
	include      []string
	sitemapFiles []string
	previewChars int
	sources      map[string]string
}

// NewLoader creates a corpus loader.
func NewLoader(embedder domain.Embedder, chunker domain.Chunker, summarizer domain.Summarizer, opts Options) (*Loader, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("%w: invalid dimension %d", domain.ErrConfiguration, opts.Dimension)
	}
	for _, p := range opts.Include {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: invalid include pattern %q", domain.ErrConfiguration, p)
		}
	}
	l := &Loader{
		embedder:     embedder,
		chunker:      chunker,
		summarizer:   summarizer,
		dimension:    opts.Dimension,
		include:      opts.Include,
		sitemapFiles: opts.SitemapFiles,
		previewChars: opts.PreviewChars,
		sources:      opts.Sources,
	}
	if len(l.include) == 0 {
		l.include = DefaultInclude
	}
	if len(l.sitemapFiles) == 0 {
		l.sitemapFiles = DefaultSitemapFiles
	}
	if l.previewChars <= 0 {
		l.previewChars = DefaultPreviewChars
	}
	return l, nil
}

// Matches reports whether a file name relative to the data directory is a
// corpus document or a sitemap file.
func (l *Loader) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	if slices.Contains(l.sitemapFiles, rel) {
		return true
	}
	for _, p := range l.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Load builds a fresh corpus generation from dir. It never fails as a whole:
// a missing directory yields an empty corpus, unusable files and embedding
// errors are recorded in Failures and leave the rest of the result usable.
func (l *Loader) Load(ctx context.Context, dir string) Result {
	res := Result{Index: l.emptyIndex(), Sitemap: domain.EmptySitemap()}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		logger.Warn("INDEXER: data directory %s not available, starting with an empty corpus", dir)
		return res
	}
	fsys := os.DirFS(dir)

	res.Sitemap.Routes, res.Sitemap.CTAs = l.loadNavigation(fsys, &res)

	docs := l.readDocuments(fsys, dir, &res)
	var (
		texts    []string
		payloads []domain.Payload
	)
	for _, doc := range docs {
		chunks, err := l.chunker.Chunk(doc)
		if err != nil {
			res.Failures = append(res.Failures, Failure{Path: doc.Path, Err: err})
			continue
		}
		res.Sitemap.Documents[doc.Source] = domain.DocumentInfo{
			Source:  doc.Source,
			Path:    doc.Path,
			Chunks:  len(chunks),
			Preview: l.preview(doc.Content),
		}
		for _, c := range chunks {
			texts = append(texts, c.Content())
			payloads = append(payloads, domain.Payload{Source: c.Source, Chunk: c.Index, Text: c.Content()})
		}
	}
	if len(texts) == 0 {
		logger.Info("INDEXER: no chunks to index in %s", dir)
		return res
	}

	vectors, err := l.embedder.Embed(ctx, texts)
	if err != nil {
		logger.Error("INDEXER: embedding %d chunks failed: %v", len(texts), err)
		res.Failures = append(res.Failures, Failure{Path: dir, Err: err})
		return res
	}
	idx := l.emptyIndex()
	if err := idx.Add(vectors, payloads); err != nil {
		logger.Error("INDEXER: indexing %d chunks failed: %v", len(texts), err)
		res.Failures = append(res.Failures, Failure{Path: dir, Err: err})
		return res
	}
	res.Index = idx
	logger.Info("INDEXER: indexed %d chunks from %d documents in %s", idx.Len(), len(docs), dir)
	return res
}

func (l *Loader) emptyIndex() *memory.Index {
	idx, err := memory.NewIndex(l.dimension)
	if err != nil {
		// dimension is checked in NewLoader
		panic(err)
	}
	return idx
}

// readDocuments returns the non-empty documents matching the include
// patterns, sorted by path.
func (l *Loader) readDocuments(fsys fs.FS, dir string, res *Result) []domain.Document {
	seen := map[string]bool{}
	var paths []string
	for _, p := range l.include {
		matches, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			res.Failures = append(res.Failures, Failure{Path: p, Err: err})
			continue
		}
		for _, m := range matches {
			if !seen[m] && !slices.Contains(l.sitemapFiles, m) {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	slices.Sort(paths)

	sources := map[string]string{}
	var docs []domain.Document
	for _, rel := range paths {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		data, err := fs.ReadFile(fsys, rel)
		if err != nil {
			logger.Warn("INDEXER: skipping %s: %v", full, err)
			res.Failures = append(res.Failures, Failure{Path: full, Err: err})
			continue
		}
		text, err := extract.Text(rel, data)
		if err != nil {
			logger.Warn("INDEXER: skipping %s: %v", full, err)
			res.Failures = append(res.Failures, Failure{Path: full, Err: err})
			continue
		}
		if text == "" {
			logger.Debug("INDEXER: skipping empty document %s", full)
			continue
		}
		source := SourceName(rel)
		if alias := l.sources[rel]; alias != "" {
			source = alias
		}
		if prev, dup := sources[source]; dup {
			err := fmt.Errorf("source %q already provided by %s", source, prev)
			res.Failures = append(res.Failures, Failure{Path: full, Err: err})
			continue
		}
		sources[source] = full
		docs = append(docs, domain.Document{Source: source, Path: full, Content: text})
	}
	return docs
}

// loadNavigation reads the first sitemap file present. A malformed file is
// recorded as a failure and yields no navigation entries.
func (l *Loader) loadNavigation(fsys fs.FS, res *Result) (routes, ctas []domain.Link) {
	for _, name := range l.sitemapFiles {
		data, err := fs.ReadFile(fsys, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			res.Failures = append(res.Failures, Failure{Path: name, Err: err})
			return nil, nil
		}
		var nav struct {
			Routes []domain.Link `yaml:"routes"`
			CTAs   []domain.Link `yaml:"ctas"`
		}
		// JSON is valid YAML, so one decoder serves both formats.
		if err := yaml.Unmarshal(data, &nav); err != nil {
			logger.Warn("INDEXER: malformed sitemap %s: %v", name, err)
			res.Failures = append(res.Failures, Failure{Path: name, Err: err})
			return nil, nil
		}
		return nav.Routes, nav.CTAs
	}
	return nil, nil
}

func (l *Loader) preview(text string) string {
	if l.summarizer == nil {
		return prompt.Truncate(strings.Join(strings.Fields(text), " "), l.previewChars)
	}
	summary, err := l.summarizer.Summarize(text, previewSentences)
	if err != nil || summary == "" {
		summary = strings.Join(strings.Fields(text), " ")
	}
	return prompt.Truncate(summary, l.previewChars)
}

// SourceName derives a document's source name from its file name: cv.md -> cv.
func SourceName(path string) string {
	base := filepath.Base(filepath.FromSlash(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
