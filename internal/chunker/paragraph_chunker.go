package chunker

import (
	"regexp"
	"strings"

	"ragchat/internal/domain"
)

// Defaults mirror the sizes the corpus was tuned with.
const (
	DefaultMaxChars = 1200
	DefaultOverlap  = 120
)

// DefaultSeparators split on blank lines and on the ideographic full stop.
var DefaultSeparators = []string{`\n\s*\n`, `。`}

// Piece is one chunk body plus the overlap prefix taken from its predecessor.
type Piece struct {
	Text    string
	Overlap string
}

// ParagraphChunker packs paragraphs into chunks of at most maxChars runes.
type ParagraphChunker struct {
	maxChars int
	overlap  int
	splitter *regexp.Regexp
}

// NewParagraphChunker builds a chunker. Extra separator patterns are
// appended to DefaultSeparators. Callers must keep overlap below maxChars;
// config validation enforces it.
func NewParagraphChunker(maxChars, overlap int, separators ...string) *ParagraphChunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlap < 0 {
		overlap = 0
	}
	patterns := append(append([]string{}, DefaultSeparators...), separators...)
	return &ParagraphChunker{
		maxChars: maxChars,
		overlap:  overlap,
		splitter: regexp.MustCompile(strings.Join(patterns, "|")),
	}
}

// Chunk splits a document into ordered chunks tagged with its source.
func (c *ParagraphChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	pieces := c.Split(document.Content)
	if len(pieces) == 0 {
		return nil, nil
	}
	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = domain.Chunk{
			Source:  document.Source,
			Index:   i,
			Text:    p.Text,
			Overlap: p.Overlap,
		}
	}
	return chunks, nil
}

// Split runs the packing algorithm with the chunker's settings.
func (c *ParagraphChunker) Split(text string) []Piece {
	return split(text, c.maxChars, c.overlap, c.splitter)
}

// Split packs text into pieces of at most maxChars runes using the
// default separators, then applies the overlap prefix.
func Split(text string, maxChars, overlap int) []Piece {
	return NewParagraphChunker(maxChars, overlap).Split(text)
}

func split(text string, maxChars, overlap int, splitter *regexp.Regexp) []Piece {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var paragraphs []string
	for _, p := range splitter.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var bodies []string
	var buf []rune
	flush := func() {
		if len(buf) > 0 {
			bodies = append(bodies, string(buf))
			buf = nil
		}
	}
	for _, p := range paragraphs {
		para := []rune(p)
		if len(buf) > 0 && len(buf)+1+len(para) <= maxChars {
			buf = append(buf, '\n')
			buf = append(buf, para...)
			continue
		}
		flush()
		// hard-split paragraphs that cannot fit on their own
		for len(para) > maxChars {
			bodies = append(bodies, string(para[:maxChars]))
			para = para[maxChars:]
		}
		buf = append([]rune(nil), para...)
	}
	flush()

	pieces := make([]Piece, len(bodies))
	for i, body := range bodies {
		pieces[i] = Piece{Text: body}
		if i > 0 && overlap > 0 {
			pieces[i].Overlap = tail(bodies[i-1], overlap)
		}
	}
	return pieces
}

func tail(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		r = r[len(r)-n:]
	}
	return strings.TrimSpace(string(r))
}
