package router

import (
	"errors"

	"github.com/huangkk10/ai-platform-rag/internal/engine"
)

// ErrInvalidQuery is returned for queries that cannot be routed at all.
var ErrInvalidQuery = errors.New("invalid query")

// Mode identifies how the router chose to answer.
type Mode string

const (
	// ModeKeywordTriggered means the query explicitly asked for a full
	// document, so the router went straight to broad retrieval.
	ModeKeywordTriggered Mode = "keyword-triggered"
	// ModeTwoTier means the router started narrow and escalated only if
	// the first answer was uncertain.
	ModeTwoTier Mode = "two-tier"
)

// Outcome is the terminal state of one routed query.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDegraded Outcome = "degraded"
	OutcomeError    Outcome = "error"
)

// Decision is the result of one routed user turn.
type Decision struct {
	// RequestID correlates log lines for one routed turn.
	RequestID string

	Mode    Mode
	Stage   int
	Outcome Outcome

	// MatchedKeyword is the phrase that triggered keyword mode, empty in
	// two-tier mode.
	MatchedKeyword string

	// FallbackReason is set only for degraded outcomes.
	FallbackReason string

	Answer         string
	ConversationID string
	Citations      []engine.Citation
	Usage          engine.Usage
}
