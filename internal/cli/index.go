package cli

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"ragchat/internal/domain"
)

var indexJSON bool

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Index a data directory and report what was loaded",
	Long: `Builds the index exactly as the server would and prints each document
with its chunk count and preview, followed by any files that failed.
The directory defaults to corpus.data_dir. Nothing is written.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(indexCmd)
}

type indexReport struct {
	Dir       string                `json:"dir"`
	Chunks    int                   `json:"chunks"`
	Documents []domain.DocumentInfo `json:"documents"`
	Routes    int                   `json:"routes"`
	CTAs      int                   `json:"ctas"`
	Failures  []string              `json:"failures,omitempty"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	dir := cfg.Corpus.DataDir
	if len(args) == 1 {
		dir = args[0]
	}
	emb, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	loader, err := newLoader(cfg, emb)
	if err != nil {
		return err
	}

	res := loader.Load(cmd.Context(), dir)
	report := indexReport{
		Dir:    dir,
		Chunks: res.Index.Len(),
		Routes: len(res.Sitemap.Routes),
		CTAs:   len(res.Sitemap.CTAs),
	}
	for _, doc := range res.Sitemap.Documents {
		report.Documents = append(report.Documents, doc)
	}
	slices.SortFunc(report.Documents, func(a, b domain.DocumentInfo) int {
		return strings.Compare(a.Source, b.Source)
	})
	for _, f := range res.Failures {
		report.Failures = append(report.Failures, f.Error())
	}

	if indexJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printIndexReport(cmd, report)
	return nil
}

func printIndexReport(cmd *cobra.Command, r indexReport) {
	if len(r.Documents) == 0 {
		cmd.Printf("No documents indexed from %s.\n", r.Dir)
	} else {
		cmd.Printf("Indexed %d chunks from %d documents in %s\n\n", r.Chunks, len(r.Documents), r.Dir)
		for _, doc := range r.Documents {
			cmd.Printf("%s (%d chunks)\n", doc.Source, doc.Chunks)
			if doc.Preview != "" {
				cmd.Printf("  %s\n", doc.Preview)
			}
		}
	}
	if r.Routes > 0 || r.CTAs > 0 {
		cmd.Printf("\nSitemap: %d routes, %d CTAs\n", r.Routes, r.CTAs)
	}
	if len(r.Failures) > 0 {
		cmd.Printf("\n%d failed:\n", len(r.Failures))
		for _, f := range r.Failures {
			cmd.Printf("  %s\n", f)
		}
	}
}
