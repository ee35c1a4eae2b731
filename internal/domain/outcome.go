package domain

// Outcome is the result of answering a question: either Success or Degraded.
type Outcome interface {
	// Text is the user-facing reply carried by the outcome.
	Text() string
	outcome()
}

// Success is a grounded answer with citations in retrieval order.
type Success struct {
	Answer    string
	Citations []Citation
}

// Degraded is a well-formed reply produced when a provider call failed.
// It carries no citations.
type Degraded struct {
	Message string
	Err     error
}

func (s Success) Text() string  { return s.Answer }
func (d Degraded) Text() string { return d.Message }

func (Success) outcome()  {}
func (Degraded) outcome() {}
