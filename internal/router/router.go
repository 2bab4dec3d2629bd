// Package router decides how a user query is answered: which retrieval
// breadth to request from the answer engine, whether to escalate after an
// uncertain answer, and how to degrade transparently when escalation does
// not help.
//
//	query in
//	   |
//	   v
//	keyword match? --yes--> broad request ----> confident? --> SUCCESS
//	   |                                           |no
//	   no                                          v
//	   v                                        DEGRADED (answer + citations)
//	narrow request --> confident? --> SUCCESS (stage 1)
//	                      |no
//	                      v
//	               broad request, same conversation
//	                      |
//	              confident? --> SUCCESS (stage 2)
//	                      |no
//	                      v
//	               DEGRADED (stage 2)
//
// Transport failures at any point end in ERROR; low confidence never does.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/huangkk10/ai-platform-rag/internal/classify"
	"github.com/huangkk10/ai-platform-rag/internal/engine"
	"github.com/huangkk10/ai-platform-rag/internal/log"
)

// DefaultFallbackSuffix is appended to an uncertain answer so the user
// knows the engine could not answer confidently and where to look next.
const DefaultFallbackSuffix = "\n\n以上回答可能不完整，建議您參考以下相關文件：\n(You may wish to consult the following documents.)"

// Option configures a Router.
type Option func(*Router)

// WithFallbackSuffix overrides the transparency suffix used in degraded
// answers.
func WithFallbackSuffix(suffix string) Option {
	return func(r *Router) { r.fallbackSuffix = suffix }
}

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(r *Router) { r.classifier = c }
}

// Router runs the two-tier answer protocol against one engine binding.
// It is stateless per call and safe for concurrent use.
type Router struct {
	engine         engine.ChatEngine
	classifier     *classify.Classifier
	fallbackSuffix string
	logger         log.Logger
}

// New creates a Router over an engine binding.
func New(eng engine.ChatEngine, logger log.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = log.NewNop()
	}
	r := &Router{
		engine:         eng,
		classifier:     classify.New(),
		fallbackSuffix: DefaultFallbackSuffix,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route answers one user query. Low-confidence answers are escalated once
// (narrow to broad) or returned degraded with citations; only engine
// transport failures return an error.
func (r *Router) Route(ctx context.Context, query, user string) (*Decision, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}

	requestID := uuid.NewString()

	matched, keyword := r.classifier.DetectFullDocumentIntent(query)
	if matched {
		r.logger.Debug("full-document intent detected",
			"request_id", requestID,
			"keyword", keyword)
		return r.keywordTriggered(ctx, requestID, query, user, keyword)
	}
	return r.twoTier(ctx, requestID, query, user)
}

// keywordTriggered handles queries that explicitly ask for a whole
// document: one broad request, no escalation ladder.
func (r *Router) keywordTriggered(ctx context.Context, requestID, query, user, keyword string) (*Decision, error) {
	resp, err := r.engine.Chat(ctx, engine.ChatRequest{
		Query:   query,
		User:    user,
		Breadth: engine.BreadthBroad,
	})
	if err != nil {
		return r.fail(requestID, ModeKeywordTriggered, 1, err)
	}

	decision := &Decision{
		RequestID:      requestID,
		Mode:           ModeKeywordTriggered,
		Stage:          1,
		MatchedKeyword: keyword,
		Answer:         resp.Answer,
		ConversationID: resp.ConversationID,
		Citations:      resp.Citations,
		Usage:          resp.Usage,
	}

	if uncertain, hedge := r.classifier.IsUncertainResponse(resp.Answer); uncertain {
		r.degrade(decision, hedge)
	} else {
		decision.Outcome = OutcomeSuccess
	}

	r.log(decision)
	return decision, nil
}

// twoTier runs the narrow-then-broad ladder. Stage 2 reuses the stage 1
// conversation id so the engine keeps turn context.
func (r *Router) twoTier(ctx context.Context, requestID, query, user string) (*Decision, error) {
	stage1, err := r.engine.Chat(ctx, engine.ChatRequest{
		Query:   query,
		User:    user,
		Breadth: engine.BreadthNarrow,
	})
	if err != nil {
		return r.fail(requestID, ModeTwoTier, 1, err)
	}

	decision := &Decision{
		RequestID:      requestID,
		Mode:           ModeTwoTier,
		Stage:          1,
		Answer:         stage1.Answer,
		ConversationID: stage1.ConversationID,
		Citations:      stage1.Citations,
		Usage:          stage1.Usage,
	}

	uncertain, hedge := r.classifier.IsUncertainResponse(stage1.Answer)
	if !uncertain {
		decision.Outcome = OutcomeSuccess
		r.log(decision)
		return decision, nil
	}

	r.logger.Debug("escalating to broad retrieval",
		"request_id", requestID,
		"hedge", hedge,
		"conversation_id", stage1.ConversationID)

	stage2, err := r.engine.Chat(ctx, engine.ChatRequest{
		Query:          query,
		User:           user,
		ConversationID: stage1.ConversationID,
		Breadth:        engine.BreadthBroad,
	})
	if err != nil {
		return r.fail(requestID, ModeTwoTier, 2, err)
	}

	decision.Stage = 2
	decision.Answer = stage2.Answer
	decision.ConversationID = stage2.ConversationID
	decision.Citations = stage2.Citations
	decision.Usage.PromptTokens += stage2.Usage.PromptTokens
	decision.Usage.CompletionTokens += stage2.Usage.CompletionTokens
	decision.Usage.TotalTokens += stage2.Usage.TotalTokens

	if uncertain, hedge := r.classifier.IsUncertainResponse(stage2.Answer); uncertain {
		r.degrade(decision, hedge)
	} else {
		decision.Outcome = OutcomeSuccess
	}

	r.log(decision)
	return decision, nil
}

// degrade composes the transparent fallback: the engine's own answer is
// kept, the suffix signals low confidence, and citations point the user at
// source documents.
func (r *Router) degrade(d *Decision, hedge string) {
	d.Outcome = OutcomeDegraded
	d.FallbackReason = fallbackReason(hedge)
	d.Answer = d.Answer + r.fallbackSuffix
}

// fail records the transport failure on a Decision so callers can surface
// the stage that broke even when the error itself is all they act on.
func (r *Router) fail(requestID string, mode Mode, stage int, err error) (*Decision, error) {
	d := &Decision{
		RequestID:      requestID,
		Mode:           mode,
		Stage:          stage,
		Outcome:        OutcomeError,
		FallbackReason: err.Error(),
	}
	r.logger.Error("query routing failed",
		"request_id", d.RequestID,
		"mode", d.Mode,
		"stage", d.Stage,
		"error", err)
	return d, fmt.Errorf("answer engine unavailable: %w", err)
}

func fallbackReason(hedge string) string {
	if hedge == "" {
		return "answer below minimum length"
	}
	return fmt.Sprintf("hedging phrase %q detected", hedge)
}

func (r *Router) log(d *Decision) {
	r.logger.Info("query routed",
		"request_id", d.RequestID,
		"mode", d.Mode,
		"stage", d.Stage,
		"outcome", d.Outcome,
		"conversation_id", d.ConversationID,
		"citations", len(d.Citations))
}
