// Package fakes provides in-process stand-ins for the remote model clients.
package fakes

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"
	"unicode"

	"ragchat/internal/domain"
	"ragchat/internal/embedding"
)

// Embedder hashes words into a fixed number of buckets and normalizes the
// counts. Texts sharing words score higher, which is enough for retrieval tests.
type Embedder struct {
	Dim int
	// Err, when set, is returned wrapped in domain.ErrEmbedding.
	Err error
	// Delay blocks each call until it elapses or ctx is done.
	Delay time.Duration

	mu    sync.Mutex
	calls int
}

// NewEmbedder creates a fake embedder of the given dimension.
func NewEmbedder(dim int) *Embedder { return &Embedder{Dim: dim} }

// Embed implements domain.Embedder.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.Delay > 0 {
		select {
		case <-time.After(e.Delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, ctx.Err())
		}
	}
	if e.Err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbedding, e.Err)
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

// Calls returns the number of Embed invocations.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *Embedder) vector(text string) []float64 {
	v := make([]float64, e.Dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[int(h.Sum32())%e.Dim]++
	}
	if n, ok := embedding.Normalize(v); ok {
		return n
	}
	v[0] = 1
	return v
}

// Completer returns a canned reply and records the last request.
type Completer struct {
	Reply string
	Err   error
	Delay time.Duration

	mu   sync.Mutex
	last []domain.Message
}

// Complete implements domain.Completer.
func (c *Completer) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	c.mu.Lock()
	c.last = append([]domain.Message(nil), messages...)
	c.mu.Unlock()

	if c.Delay > 0 {
		select {
		case <-time.After(c.Delay):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", domain.ErrCompletion, ctx.Err())
		}
	}
	if c.Err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrCompletion, c.Err)
	}
	return c.Reply, nil
}

// Last returns the messages of the most recent call.
func (c *Completer) Last() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
