// Package prompt assembles the text sent to the completion model.
package prompt

import (
	"fmt"
	"slices"
	"strings"

	"ragchat/internal/domain"
)

// NoResultsMarker replaces the excerpt block when retrieval found nothing.
const NoResultsMarker = "No relevant information found in the knowledge base."

// GroundingPolicy is appended to the persona in the system message.
const GroundingPolicy = "Prefer the retrieved context when it is relevant and cite the source labels briefly. " +
	"If the context does not cover the question, answer from general knowledge and say clearly that you are doing so."

// Default limits.
const (
	DefaultContextChunks = 3
	DefaultExcerptChars  = 800
	DefaultRoutes        = 6
	DefaultCTAs          = 4
)

// Builder formats retrieved passages and sitemap metadata into a context block.
// It is a pure formatter and safe for concurrent use.
type Builder struct {
	contextChunks int
	excerptChars  int
	routes        int
	ctas          int
}

// Limits caps what the builder emits. Zero fields take the defaults.
type Limits struct {
	ContextChunks int
	ExcerptChars  int
	Routes        int
	CTAs          int
}

// NewBuilder creates a context builder.
func NewBuilder(l Limits) *Builder {
	b := &Builder{
		contextChunks: DefaultContextChunks,
		excerptChars:  DefaultExcerptChars,
		routes:        DefaultRoutes,
		ctas:          DefaultCTAs,
	}
	if l.ContextChunks > 0 {
		b.contextChunks = l.ContextChunks
	}
	if l.ExcerptChars > 0 {
		b.excerptChars = l.ExcerptChars
	}
	if l.Routes > 0 {
		b.routes = l.Routes
	}
	if l.CTAs > 0 {
		b.ctas = l.CTAs
	}
	return b
}

// Build renders the context block for a query.
func (b *Builder) Build(query string, results []domain.SearchResult, sitemap domain.Sitemap) string {
	var sb strings.Builder
	sb.WriteString("# Retrieved Context (cite briefly):\n\n")
	if len(results) == 0 {
		sb.WriteString(NoResultsMarker)
	} else {
		excerpts := make([]string, 0, min(len(results), b.contextChunks))
		for _, r := range results[:min(len(results), b.contextChunks)] {
			excerpts = append(excerpts, fmt.Sprintf("[source: %s #%d]\n%s",
				r.Payload.Source, r.Payload.Chunk, Truncate(r.Payload.Text, b.excerptChars)))
		}
		sb.WriteString(strings.Join(excerpts, "\n\n"))
	}

	writeLinks(&sb, "Site Routes", sitemap.Routes, b.routes)
	writeLinks(&sb, "CTAs", sitemap.CTAs, b.ctas)

	if len(sitemap.Documents) > 0 {
		sb.WriteString("\n\n# Documents:\n")
		names := make([]string, 0, len(sitemap.Documents))
		for name := range sitemap.Documents {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			doc := sitemap.Documents[name]
			fmt.Fprintf(&sb, "- %s (%d chunks)", name, doc.Chunks)
			if doc.Preview != "" {
				sb.WriteString(": " + doc.Preview)
			}
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func writeLinks(sb *strings.Builder, title string, links []domain.Link, limit int) {
	if len(links) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n\n# %s:", title)
	for _, l := range links[:min(len(links), limit)] {
		fmt.Fprintf(sb, "\n- %s: %s", l.Name(), l.URL)
	}
}

// SystemMessage combines an assistant persona with the grounding policy.
func SystemMessage(persona string) string {
	persona = strings.TrimSpace(persona)
	if persona == "" {
		return GroundingPolicy
	}
	return persona + "\n\n" + GroundingPolicy
}

// RenderHistory renders the last n turns as plain dialogue text.
func RenderHistory(turns []domain.Turn, n int) string {
	if n <= 0 || len(turns) == 0 {
		return ""
	}
	lines := make([]string, 0, 2*n)
	for _, t := range turns[max(0, len(turns)-n):] {
		lines = append(lines, "User: "+t.User, "Assistant: "+t.Assistant)
	}
	return strings.Join(lines, "\n")
}

// UserMessage combines the question, recent dialogue and context block.
func UserMessage(query, history, context string) string {
	var sb strings.Builder
	sb.WriteString("User question: " + query + "\n\n")
	if history != "" {
		sb.WriteString("Conversation so far:\n" + history + "\n\n")
	}
	sb.WriteString(context)
	return sb.String()
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
