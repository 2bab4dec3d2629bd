// Package chunk splits markdown documents into a hierarchy of addressable
// sections. It is the parsing front-end of the retrieval pipeline: every
// section produced here becomes one embedding row in the knowledge store.
//
// The package is pure: no I/O, no configuration, deterministic output for a
// given input.
package chunk

import (
	"fmt"
	"regexp"
	"strings"
)

// Section is a contiguous span of a document under one heading. It is the
// unit of indexing and retrieval.
type Section struct {
	ID          string   // stable within a document, e.g. "sec_3", assigned in document order
	Index       int      // zero-based document-order position
	Level       int      // heading depth, 1-6
	Title       string   // heading text
	Content     string   // text strictly between this heading and the next heading
	Path        string   // breadcrumb: document title > ancestor titles > this title
	ParentID    string   // nearest shallower-level ancestor, empty at root
	ChildrenIDs []string // ordered, direct children only
	WordCount   int
	HasCode     bool // fenced code block in own content (not inherited)
	HasImages   bool // inline image reference in own content
}

// imagePattern matches inline markdown image references: ![alt](url)
var imagePattern = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)

// heading is an intermediate parse record before hierarchy resolution.
type heading struct {
	level int
	title string
	line  int // line index of the heading itself
}

// Parse splits markdown into ordered sections with hierarchy metadata.
//
// Headings are ATX style (# .. ######). A heading's content spans from the
// line after it to the line before the next heading of any depth. Heading
// markers inside fenced code blocks are plain text. A document with zero
// headings yields a single synthetic root section covering the entire body.
func Parse(markdown, documentTitle string) []Section {
	lines := splitLines(markdown)
	headings := scanHeadings(lines)

	if len(headings) == 0 {
		body := strings.TrimSpace(markdown)
		return []Section{{
			ID:        "sec_1",
			Index:     0,
			Level:     1,
			Title:     documentTitle,
			Content:   body,
			Path:      documentTitle,
			WordCount: len(strings.Fields(body)),
			HasCode:   containsCodeFence(body),
			HasImages: imagePattern.MatchString(body),
		}}
	}

	sections := make([]Section, len(headings))
	for i, h := range headings {
		start := h.line + 1
		end := len(lines)
		if i+1 < len(headings) {
			end = headings[i+1].line
		}
		content := strings.TrimSpace(strings.Join(lines[start:end], "\n"))

		sections[i] = Section{
			ID:        fmt.Sprintf("sec_%d", i+1),
			Index:     i,
			Level:     h.level,
			Title:     h.title,
			Content:   content,
			WordCount: len(strings.Fields(content)),
			HasCode:   containsCodeFence(content),
			HasImages: imagePattern.MatchString(content),
		}
	}

	resolveHierarchy(sections, documentTitle)
	return sections
}

// resolveHierarchy assigns ParentID, ChildrenIDs and Path in one pass.
// A section's parent is the nearest preceding heading with strictly
// shallower depth.
func resolveHierarchy(sections []Section, documentTitle string) {
	// Stack of indices into sections, levels strictly increasing.
	var stack []int

	for i := range sections {
		for len(stack) > 0 && sections[stack[len(stack)-1]].Level >= sections[i].Level {
			stack = stack[:len(stack)-1]
		}

		parts := []string{documentTitle}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			sections[i].ParentID = sections[parent].ID
			sections[parent].ChildrenIDs = append(sections[parent].ChildrenIDs, sections[i].ID)
			for _, idx := range stack {
				parts = append(parts, sections[idx].Title)
			}
		}
		parts = append(parts, sections[i].Title)
		sections[i].Path = strings.Join(parts, " > ")

		stack = append(stack, i)
	}
}

// scanHeadings finds ATX headings outside fenced code blocks.
func scanHeadings(lines []string) []heading {
	var headings []heading
	inFence := false
	var fenceMarker byte

	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if marker, ok := fenceDelimiter(trimmed); ok {
			switch {
			case !inFence:
				inFence = true
				fenceMarker = marker
			case marker == fenceMarker:
				inFence = false
			}
			continue
		}
		if inFence {
			continue
		}
		if level, title, ok := parseHeading(line); ok {
			headings = append(headings, heading{level: level, title: title, line: i})
		}
	}
	return headings
}

// parseHeading reports whether line is a well-formed ATX heading.
// Malformed markers (seven or more #, or # not followed by whitespace)
// are treated as plain text.
func parseHeading(line string) (level int, title string, ok bool) {
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	rest := line[level:]
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return 0, "", false
	}
	return level, strings.TrimSpace(rest), true
}

// fenceDelimiter reports whether a (left-trimmed) line opens or closes a
// fenced code block, and which marker character it uses.
func fenceDelimiter(trimmed string) (marker byte, ok bool) {
	if strings.HasPrefix(trimmed, "```") {
		return '`', true
	}
	if strings.HasPrefix(trimmed, "~~~") {
		return '~', true
	}
	return 0, false
}

// containsCodeFence reports whether content has a fence delimiter at the
// start of any line.
func containsCodeFence(content string) bool {
	for _, line := range splitLines(content) {
		if _, ok := fenceDelimiter(strings.TrimLeft(line, " \t")); ok {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
