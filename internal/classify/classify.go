// Package classify provides the pure text classifiers used by the query
// router: full-document intent detection on user queries and uncertainty
// detection on generated answers.
//
// Both classifiers are stateless keyword matchers. The keyword lists are
// bilingual (English and Traditional Chinese) to match the deployments this
// core serves; callers can extend them per installation.
package classify

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinAnswerLength is the minimum rune count below which an answer is
// treated as a non-answer regardless of wording.
const DefaultMinAnswerLength = 20

// defaultFullDocumentKeywords indicate the user wants the entire document
// rather than a fragment.
var defaultFullDocumentKeywords = []string{
	"complete",
	"full text",
	"full content",
	"entire",
	"all steps",
	"whole document",
	"step by step",
	"完整",
	"全文",
	"全部內容",
	"所有步驟",
	"整份文件",
	"逐步",
}

// defaultUncertaintyKeywords are hedging phrases that flag a generated
// answer as untrustworthy.
var defaultUncertaintyKeywords = []string{
	"i don't know",
	"i do not know",
	"not sure",
	"cannot find",
	"can't find",
	"could not find",
	"no relevant information",
	"no information",
	"unable to answer",
	"i'm sorry",
	"不知道",
	"不確定",
	"無法找到",
	"找不到",
	"沒有相關",
	"無相關資訊",
	"無法回答",
}

// Classifier matches queries and answers against fixed keyword lists.
// The zero value is not usable; call New.
type Classifier struct {
	fullDocKeywords     []string
	uncertaintyKeywords []string
	minAnswerLength     int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithFullDocumentKeywords replaces the full-document intent keyword list.
func WithFullDocumentKeywords(keywords []string) Option {
	return func(c *Classifier) {
		if len(keywords) > 0 {
			c.fullDocKeywords = keywords
		}
	}
}

// WithUncertaintyKeywords replaces the uncertainty keyword list.
func WithUncertaintyKeywords(keywords []string) Option {
	return func(c *Classifier) {
		if len(keywords) > 0 {
			c.uncertaintyKeywords = keywords
		}
	}
}

// WithMinAnswerLength sets the minimum rune count for a trustworthy answer.
func WithMinAnswerLength(n int) Option {
	return func(c *Classifier) {
		if n > 0 {
			c.minAnswerLength = n
		}
	}
}

// New creates a Classifier with the default bilingual keyword lists.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		fullDocKeywords:     defaultFullDocumentKeywords,
		uncertaintyKeywords: defaultUncertaintyKeywords,
		minAnswerLength:     DefaultMinAnswerLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DetectFullDocumentIntent reports whether the query asks for an entire
// document rather than a fragment, and which keyword matched.
func (c *Classifier) DetectFullDocumentIntent(query string) (matched bool, keyword string) {
	return matchAny(query, c.fullDocKeywords)
}

// IsUncertainResponse reports whether a generated answer should be treated
// as a non-answer: it contains a hedging phrase, or it is shorter than the
// configured minimum length. The matched keyword is empty for the length
// rule.
func (c *Classifier) IsUncertainResponse(answer string) (uncertain bool, keyword string) {
	if utf8.RuneCountInString(strings.TrimSpace(answer)) < c.minAnswerLength {
		return true, ""
	}
	return matchAny(answer, c.uncertaintyKeywords)
}

// matchAny performs a case-insensitive substring match against a keyword
// list, returning the first keyword that matched.
func matchAny(text string, keywords []string) (bool, string) {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true, kw
		}
	}
	return false, ""
}
