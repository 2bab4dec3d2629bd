package chunk

import (
	"reflect"
	"strings"
	"testing"
)

func TestParse_HeadingHierarchy(t *testing.T) {
	markdown := `# Guide

Intro text.

## Setup

Install the tools.

## Troubleshooting

Check the logs.
`

	sections := Parse(markdown, "Device Guide")
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}

	guide, setup, trouble := sections[0], sections[1], sections[2]

	if guide.ID != "sec_1" || guide.Level != 1 || guide.Title != "Guide" {
		t.Errorf("unexpected root section: %+v", guide)
	}
	if guide.ParentID != "" {
		t.Errorf("root section should have no parent, got %q", guide.ParentID)
	}
	if !reflect.DeepEqual(guide.ChildrenIDs, []string{"sec_2", "sec_3"}) {
		t.Errorf("root children = %v, want [sec_2 sec_3]", guide.ChildrenIDs)
	}

	for _, s := range []Section{setup, trouble} {
		if s.ParentID != guide.ID {
			t.Errorf("section %s parent = %q, want %q", s.ID, s.ParentID, guide.ID)
		}
		if s.Level != 2 {
			t.Errorf("section %s level = %d, want 2", s.ID, s.Level)
		}
	}

	if setup.Path != "Device Guide > Guide > Setup" {
		t.Errorf("unexpected path: %q", setup.Path)
	}
	if setup.Content != "Install the tools." {
		t.Errorf("unexpected content: %q", setup.Content)
	}
}

func TestParse_ForestRoundTrip(t *testing.T) {
	// Every children entry must point back to its parent, and every
	// parented section must appear in its parent's children.
	markdown := `# A
## B
### C
## D
# E
### F
## G
`

	sections := Parse(markdown, "Doc")
	byID := make(map[string]Section, len(sections))
	for _, s := range sections {
		byID[s.ID] = s
	}

	for _, s := range sections {
		for _, childID := range s.ChildrenIDs {
			child, ok := byID[childID]
			if !ok {
				t.Fatalf("section %s lists unknown child %s", s.ID, childID)
			}
			if child.ParentID != s.ID {
				t.Errorf("child %s parent = %q, want %q", childID, child.ParentID, s.ID)
			}
		}
		if s.ParentID != "" {
			parent, ok := byID[s.ParentID]
			if !ok {
				t.Fatalf("section %s has unknown parent %s", s.ID, s.ParentID)
			}
			found := false
			for _, c := range parent.ChildrenIDs {
				if c == s.ID {
					found = true
				}
			}
			if !found {
				t.Errorf("parent %s does not list %s as child", s.ParentID, s.ID)
			}
		}
	}

	// F skips a level: its parent is still the nearest shallower heading.
	if f := byID["sec_6"]; f.ParentID != "sec_5" {
		t.Errorf("level-skipping section parent = %q, want sec_5", f.ParentID)
	}
}

func TestParse_NoHeadings(t *testing.T) {
	body := "Just a plain paragraph.\n\nAnd another one."

	sections := Parse(body, "Plain Doc")
	if len(sections) != 1 {
		t.Fatalf("expected 1 synthetic section, got %d", len(sections))
	}

	s := sections[0]
	if s.ID != "sec_1" || s.Level != 1 {
		t.Errorf("synthetic root = %+v", s)
	}
	if s.Title != "Plain Doc" || s.Path != "Plain Doc" {
		t.Errorf("synthetic root title/path = %q / %q", s.Title, s.Path)
	}
	if !strings.Contains(s.Content, "plain paragraph") {
		t.Errorf("synthetic root should cover the whole body, got %q", s.Content)
	}
}

func TestParse_EmptyContentSection(t *testing.T) {
	markdown := "# Top\n## Empty\n## After\ntext\n"

	sections := Parse(markdown, "Doc")
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if sections[1].Content != "" {
		t.Errorf("back-to-back headings should yield empty content, got %q", sections[1].Content)
	}
	if sections[1].WordCount != 0 {
		t.Errorf("empty section word count = %d, want 0", sections[1].WordCount)
	}
}

func TestParse_HeadingInsideCodeFence(t *testing.T) {
	markdown := "# Real\n\n```\n# not a heading\n## also not\n```\n\nafter fence\n"

	sections := Parse(markdown, "Doc")
	if len(sections) != 1 {
		t.Fatalf("expected fence-protected headings to be ignored, got %d sections", len(sections))
	}
	if !sections[0].HasCode {
		t.Error("section with fenced block should report HasCode")
	}
}

func TestParse_MalformedHeadingMarkers(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		headings int
	}{
		{"seven hashes", "####### too deep\n", 0},
		{"no space after hash", "#notaheading\n", 0},
		{"hash only", "#\n", 0},
		{"valid six", "###### deep\n", 1},
		{"tab separator", "#\tTabbed\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := Parse(tt.line, "Doc")
			got := 0
			if len(sections) != 1 || sections[0].Title != "Doc" {
				got = len(sections)
			}
			if got != tt.headings {
				t.Errorf("Parse(%q) produced %d heading sections, want %d", tt.line, got, tt.headings)
			}
		})
	}
}

func TestParse_ContentAttributes(t *testing.T) {
	markdown := "# Images\n\n![diagram](img/setup.png)\n\n# Code\n\n~~~go\nfmt.Println()\n~~~\n\n# Neither\n\nwords only here\n"

	sections := Parse(markdown, "Doc")
	if len(sections) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(sections))
	}
	if !sections[0].HasImages || sections[0].HasCode {
		t.Errorf("image section flags = code:%v images:%v", sections[0].HasCode, sections[0].HasImages)
	}
	if !sections[1].HasCode || sections[1].HasImages {
		t.Errorf("code section flags = code:%v images:%v", sections[1].HasCode, sections[1].HasImages)
	}
	if sections[2].HasCode || sections[2].HasImages {
		t.Errorf("plain section flags = code:%v images:%v", sections[2].HasCode, sections[2].HasImages)
	}
	if sections[2].WordCount != 3 {
		t.Errorf("word count = %d, want 3", sections[2].WordCount)
	}
}

func TestParse_Deterministic(t *testing.T) {
	markdown := "# A\ntext\n## B\nmore\n## C\n### D\ndeep\n"

	first := Parse(markdown, "Doc")
	second := Parse(markdown, "Doc")
	if !reflect.DeepEqual(first, second) {
		t.Error("parsing the same document twice should yield identical sections")
	}
}

func TestParse_CRLFInput(t *testing.T) {
	sections := Parse("# Title\r\ncontent line\r\n", "Doc")
	if len(sections) != 1 {
		t.Fatalf("expected 1 section, got %d", len(sections))
	}
	if sections[0].Content != "content line" {
		t.Errorf("CRLF content = %q", sections[0].Content)
	}
}
