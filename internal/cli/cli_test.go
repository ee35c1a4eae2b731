package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/fakes"
)

const testDim = 32

// setupTestProviders swaps the OpenAI clients for fakes and writes a config
// pointing at a fresh data directory.
func setupTestProviders(t *testing.T) (cfgPath, dataDir string) {
	t.Helper()
	origEmb, origComp := newEmbedder, newCompleter
	newEmbedder = func(*config.AppConfig) (domain.Embedder, error) { return fakes.NewEmbedder(testDim), nil }
	newCompleter = func(*config.AppConfig) (domain.Completer, error) {
		return &fakes.Completer{Reply: "Conor is a software engineer."}, nil
	}

	dir := t.TempDir()
	dataDir = filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	cfg := config.Default()
	cfg.Embedder.Dimension = testDim
	cfg.Corpus.DataDir = dataDir
	cfgPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	t.Cleanup(func() {
		newEmbedder, newCompleter = origEmb, origComp
		cfgFile, indexJSON = "", false
		rootCmd.SetArgs(nil)
	})
	return cfgPath, dataDir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := execute(t, "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "ragchat version test-version-1.0.0")
	rootCmd.SetArgs(nil)
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "chat", "index", "version"} {
		assert.True(t, names[want], want)
	}
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.Equal(t, "v", rootCmd.PersistentFlags().Lookup("verbose").Shorthand)
	require.NotNil(t, serveCmd.Flags().Lookup("addr"))
}

func TestIndexCmd_ReportsDocumentsAndFailures(t *testing.T) {
	cfgPath, dataDir := setupTestProviders(t)
	writeFile(t, dataDir, "cv.md", "# Conor\n\nConor is a software engineer who builds Go services.")
	writeFile(t, dataDir, "notes.txt", "\xff\xfe not utf8")

	out, err := execute(t, "index", "--config", cfgPath)

	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 1 chunks from 1 documents")
	assert.Contains(t, out, "cv (1 chunks)")
	assert.Contains(t, out, "1 failed:")
	assert.Contains(t, out, "notes.txt")
}

func TestIndexCmd_JSON(t *testing.T) {
	cfgPath, dataDir := setupTestProviders(t)
	writeFile(t, dataDir, "cv.md", "Conor is a software engineer.")
	writeFile(t, dataDir, "sitemap.yaml", "routes:\n  - title: Home\n    url: /\nctas:\n  - label: Contact\n    url: /contact\n")

	out, err := execute(t, "index", "--json", "--config", cfgPath)
	require.NoError(t, err)

	var report indexReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Chunks)
	require.Len(t, report.Documents, 1)
	assert.Equal(t, "cv", report.Documents[0].Source)
	assert.Equal(t, 1, report.Routes)
	assert.Equal(t, 1, report.CTAs)
	assert.Empty(t, report.Failures)
}

func TestIndexCmd_SiteDocumentIsTaggedFAQ(t *testing.T) {
	cfgPath, dataDir := setupTestProviders(t)
	writeFile(t, dataDir, "site_faqs.md", "The site lists projects and a contact form.")

	out, err := execute(t, "index", "--config", cfgPath)

	require.NoError(t, err)
	assert.Contains(t, out, "faq (1 chunks)")
	assert.NotContains(t, out, "site_faqs (")
}

func TestIndexCmd_EmptyDirectoryArgument(t *testing.T) {
	cfgPath, _ := setupTestProviders(t)

	out, err := execute(t, "index", "--config", cfgPath, filepath.Join(t.TempDir(), "missing"))

	require.NoError(t, err)
	assert.Contains(t, out, "No documents indexed")
}

func TestIndexCmd_InvalidConfig(t *testing.T) {
	setupTestProviders(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, filepath.Dir(path), "bad.yaml", "chunker:\n  max_chars: 100\n  overlap: 100\n")

	_, err := execute(t, "index", "--config", path)

	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestNewApp_AnswersFromIndexedCorpus(t *testing.T) {
	cfgPath, dataDir := setupTestProviders(t)
	writeFile(t, dataDir, "cv.md", "Conor is a software engineer who builds Go services.")
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	a, err := newApp(cfg)
	require.NoError(t, err)
	a.assistant.Reload(context.Background())

	out, err := a.assistant.Chat(context.Background(), "s1", "What does Conor do?")
	require.NoError(t, err)
	success, ok := out.(domain.Success)
	require.True(t, ok)
	assert.Equal(t, []domain.Citation{{Source: "cv", Chunk: 0}}, success.Citations)
}

func TestNewApp_ProviderErrorsAreWrapped(t *testing.T) {
	cfgPath, _ := setupTestProviders(t)
	newCompleter = func(*config.AppConfig) (domain.Completer, error) { return nil, domain.ErrConfiguration }
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	_, err = newApp(cfg)

	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Contains(t, err.Error(), "completion")
}
