package knowledge

import "time"

// Section is one persisted chunk of a source document. Identity is the
// composite key (SourceTable, SourceID, SectionID): SourceTable and SourceID
// locate the owning document in the external registry, SectionID is stable
// within a document and assigned in document order at parse time.
type Section struct {
	SourceTable  string
	SourceID     int64
	SectionID    string // e.g. "sec_3"
	SectionIndex int    // zero-based document-order position
	Level        int    // heading depth, 1-6
	Title        string
	Content      string
	Path         string // breadcrumb: document title > ancestors > title
	ParentID     string // empty at document root
	ChildrenIDs  []string
	WordCount    int
	HasCode      bool
	HasImages    bool
	FullContext  string // exact text that was embedded: path + "\n\n" + content
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DocumentKey identifies the owning document of a set of sections.
type DocumentKey struct {
	SourceTable string
	SourceID    int64
}

// Result is a single search hit with its cosine similarity score in [0,1].
type Result struct {
	Section    Section
	Similarity float32
}

// SearchOption configures Search using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	limit     int32
	threshold float32
	minLevel  *int32
	maxLevel  *int32
	timeout   time.Duration
}

// WithLimit sets the maximum number of results. Default is 5.
func WithLimit(n int32) SearchOption {
	return func(c *searchConfig) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithThreshold sets the minimum similarity for a hit. Default is 0.
func WithThreshold(t float32) SearchOption {
	return func(c *searchConfig) {
		c.threshold = t
	}
}

// WithLevelRange restricts hits to heading levels in [minLevel, maxLevel].
// A zero bound leaves that side open.
func WithLevelRange(minLevel, maxLevel int32) SearchOption {
	return func(c *searchConfig) {
		if minLevel > 0 {
			c.minLevel = &minLevel
		}
		if maxLevel > 0 {
			c.maxLevel = &maxLevel
		}
	}
}

// WithSearchTimeout bounds the whole search call (embedding plus vector
// query). Default is 10 seconds.
func WithSearchTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		limit:   5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
