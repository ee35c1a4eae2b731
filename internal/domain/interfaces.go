package domain

import "context"

// Document represents a single source text loaded into the corpus.
type Document struct {
	Source  string
	Path    string
	Content string
}

// Chunk is a bounded, ordered slice of a document used for retrieval.
// Text never exceeds the chunker's max size; Overlap is the tail of the
// previous chunk carried over for continuity.
type Chunk struct {
	Source  string
	Index   int
	Text    string
	Overlap string
}

// Content returns the text that gets embedded and shown to the model.
func (c Chunk) Content() string {
	if c.Overlap == "" {
		return c.Text
	}
	return c.Overlap + "\n" + c.Text
}

// Payload is the metadata stored next to each vector in the index.
type Payload struct {
	Source string `json:"source"`
	Chunk  int    `json:"chunk"`
	Text   string `json:"text"`
}

// SearchResult represents a matching payload with a cosine similarity score.
type SearchResult struct {
	Payload Payload
	Score   float64
}

// Citation identifies the indexed passage that supported an answer.
type Citation struct {
	Source string `json:"source"`
	Chunk  int    `json:"chunk"`
}

// Turn is one exchange of a conversation.
type Turn struct {
	User      string
	Assistant string
}

// Role of a chat message sent to the completion backend.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message for the completion backend.
type Message struct {
	Role    Role
	Content string
}

// Embedder converts texts into unit-length vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Completer produces a model reply for a list of chat messages.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorIndex stores vectors with payloads and supports similarity search.
type VectorIndex interface {
	Add(vectors [][]float64, payloads []Payload) error
	Search(vector []float64, topK int) []SearchResult
	Len() int
	Dimension() int
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
