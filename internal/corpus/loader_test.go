package corpus

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/chunker"
	"ragchat/internal/domain"
	"ragchat/internal/fakes"
	"ragchat/internal/summarizer"
)

const testDim = 32

func newLoader(t *testing.T, emb domain.Embedder, opts Options) *Loader {
	t.Helper()
	opts.Dimension = testDim
	l, err := NewLoader(emb, chunker.NewParagraphChunker(40, 5), summarizer.NewFrequencySummarizer(), opts)
	require.NoError(t, err)
	return l
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestNewLoader_RejectsBadOptions(t *testing.T) {
	emb := fakes.NewEmbedder(testDim)
	_, err := NewLoader(emb, chunker.NewParagraphChunker(0, 0), nil, Options{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewLoader(emb, chunker.NewParagraphChunker(0, 0), nil, Options{Dimension: 4, Include: []string{"[bad"}})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestLoad_MissingDirectoryIsEmpty(t *testing.T) {
	emb := fakes.NewEmbedder(testDim)
	res := newLoader(t, emb, Options{}).Load(context.Background(), filepath.Join(t.TempDir(), "nope"))

	assert.Equal(t, 0, res.Index.Len())
	assert.Empty(t, res.Sitemap.Documents)
	assert.Empty(t, res.Failures)
	assert.Zero(t, emb.Calls())
}

func TestLoad_OneEmbeddingCallForAllDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"cv.md":        "Conor is a software engineer.\n\nHe builds backend systems in Go.",
		"site_faqs.md": "The site lists projects.\n\nContact via the form.",
		"empty.txt":    "   \n",
		"image.png":    "ignored",
	})
	emb := fakes.NewEmbedder(testDim)

	res := newLoader(t, emb, Options{}).Load(context.Background(), dir)

	assert.Equal(t, 1, emb.Calls())
	assert.Empty(t, res.Failures)
	require.Len(t, res.Sitemap.Documents, 2)
	cv := res.Sitemap.Documents["cv"]
	assert.Equal(t, filepath.Join(dir, "cv.md"), cv.Path)
	assert.Equal(t, 2, cv.Chunks)
	assert.NotEmpty(t, cv.Preview)
	assert.Equal(t, cv.Chunks+res.Sitemap.Documents["site_faqs"].Chunks, res.Index.Len())
	assert.NotContains(t, res.Sitemap.Documents, "empty")
}

func TestLoad_PayloadsInDocumentOrder(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.md": "Bravo text here.",
		"a.md": "Alpha text here.",
	})

	res := newLoader(t, fakes.NewEmbedder(testDim), Options{}).Load(context.Background(), dir)
	require.Equal(t, 2, res.Index.Len())

	hits := res.Index.Search(make([]float64, testDim), 2)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].Payload.Source)
	assert.Equal(t, "b", hits[1].Payload.Source)
}

func TestLoad_EmbeddingFailureKeepsMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"cv.md": "Conor is a software engineer."})
	emb := fakes.NewEmbedder(testDim)
	emb.Err = errors.New("provider down")

	res := newLoader(t, emb, Options{}).Load(context.Background(), dir)

	assert.Equal(t, 0, res.Index.Len())
	assert.Equal(t, 1, res.Sitemap.Documents["cv"].Chunks)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0], domain.ErrEmbedding)
}

func TestLoad_UnreadableDocumentIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"cv.md":      "Conor is a software engineer.",
		"broken.txt": string([]byte{0xff, 0xfe, 0xfd}),
	})

	res := newLoader(t, fakes.NewEmbedder(testDim), Options{}).Load(context.Background(), dir)

	assert.Equal(t, 1, res.Index.Len())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "broken.txt"), res.Failures[0].Path)
}

func TestLoad_DuplicateSourceRecorded(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"cv.md": "From markdown.", "cv.txt": "From text."})

	res := newLoader(t, fakes.NewEmbedder(testDim), Options{}).Load(context.Background(), dir)

	assert.Equal(t, 1, res.Index.Len())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "cv.txt"), res.Failures[0].Path)
}

func TestLoad_RecursiveInclude(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"top.md":         "Top level.",
		"nested/deep.md": "Nested doc.",
	})

	shallow := newLoader(t, fakes.NewEmbedder(testDim), Options{}).Load(context.Background(), dir)
	deep := newLoader(t, fakes.NewEmbedder(testDim), Options{Include: []string{"**/*.md"}}).Load(context.Background(), dir)

	assert.Len(t, shallow.Sitemap.Documents, 1)
	assert.Len(t, deep.Sitemap.Documents, 2)
	assert.Contains(t, deep.Sitemap.Documents, "deep")
}

func TestLoad_SitemapNavigation(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"sitemap.json": `{"routes":[{"title":"Projects","url":"/projects"}],"ctas":[{"label":"Book a call","url":"/contact"}]}`,
	})

	res := newLoader(t, fakes.NewEmbedder(testDim), Options{}).Load(context.Background(), dir)

	assert.Empty(t, res.Failures)
	assert.Equal(t, []domain.Link{{Title: "Projects", URL: "/projects"}}, res.Sitemap.Routes)
	assert.Equal(t, []domain.Link{{Label: "Book a call", URL: "/contact"}}, res.Sitemap.CTAs)
}

func TestLoad_MalformedSitemapRecorded(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"sitemap.yaml": "routes: [unterminated",
		"cv.md":        "Conor is a software engineer.",
	})

	res := newLoader(t, fakes.NewEmbedder(testDim), Options{}).Load(context.Background(), dir)

	assert.Empty(t, res.Sitemap.Routes)
	assert.Equal(t, 1, res.Index.Len())
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "sitemap.yaml", res.Failures[0].Path)
}

func TestLoad_ReloadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"cv.md": "Conor is a software engineer.\n\nHe writes Go."})
	l := newLoader(t, fakes.NewEmbedder(testDim), Options{})

	first := l.Load(context.Background(), dir)
	second := l.Load(context.Background(), dir)

	assert.Equal(t, first.Index.Len(), second.Index.Len())
	assert.Equal(t, first.Sitemap, second.Sitemap)
}

func TestMatches(t *testing.T) {
	l := newLoader(t, fakes.NewEmbedder(testDim), Options{})

	assert.True(t, l.Matches("cv.md"))
	assert.True(t, l.Matches("sitemap.json"))
	assert.False(t, l.Matches("nested/cv.md"))
	assert.False(t, l.Matches(".cv.md.123.tmp"))
}

func TestLoad_SourceOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"cv.md":        "Conor is a software engineer.",
		"site_faqs.md": "The site lists projects.",
	})

	res := newLoader(t, fakes.NewEmbedder(testDim), Options{Sources: map[string]string{"site_faqs.md": "faq"}}).
		Load(context.Background(), dir)

	require.Empty(t, res.Failures)
	assert.Contains(t, res.Sitemap.Documents, "faq")
	assert.NotContains(t, res.Sitemap.Documents, "site_faqs")
	sources := map[string]bool{}
	for _, r := range res.Index.Search(make([]float64, testDim), res.Index.Len()) {
		sources[r.Payload.Source] = true
	}
	assert.Equal(t, map[string]bool{"cv": true, "faq": true}, sources)
}

func TestSourceName(t *testing.T) {
	assert.Equal(t, "cv", SourceName("cv.md"))
	assert.Equal(t, "site_faqs", SourceName("pages/site_faqs.txt"))
}

func TestWriteDocument_Replaces(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	require.NoError(t, WriteDocument(dir, "cv.md", "one"))
	require.NoError(t, WriteDocument(dir, "cv.md", "two"))

	data, err := os.ReadFile(filepath.Join(dir, "cv.md"))
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
