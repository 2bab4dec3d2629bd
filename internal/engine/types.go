// Package engine is the client side of the external answer-generation
// service: a conversational HTTP endpoint that performs its own retrieval
// over the indexed documents and returns an answer with citations.
//
// The retrieval core never generates answers itself; it only asks the
// engine to ground its answer narrowly (one matched section) or broadly
// (the whole source document) and judges the result.
package engine

import "context"

// Breadth is the retrieval-breadth hint passed to the answer engine.
type Breadth string

const (
	// BreadthNarrow asks the engine to ground the answer in the matched
	// section only.
	BreadthNarrow Breadth = "narrow"

	// BreadthBroad asks the engine to ground the answer in the whole
	// source document.
	BreadthBroad Breadth = "broad"
)

// ChatRequest is one conversational turn sent to the answer engine.
type ChatRequest struct {
	Query          string
	ConversationID string // empty starts a new conversation
	User           string
	Breadth        Breadth
}

// Citation is one source reference returned by the engine.
type Citation struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	Score        float64 `json:"score"`
}

// Usage reports the engine's token accounting for one turn.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the engine's answer for one turn.
type ChatResponse struct {
	Answer         string
	MessageID      string
	ConversationID string
	Citations      []Citation
	Usage          Usage
}

// ChatEngine is the capability the query router needs from an answer
// engine. One Client per knowledge-base category satisfies it.
type ChatEngine interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
