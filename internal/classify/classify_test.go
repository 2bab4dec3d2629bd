package classify

import "testing"

func TestDetectFullDocumentIntent(t *testing.T) {
	c := New()

	tests := []struct {
		query   string
		matched bool
	}{
		{"give me the complete steps", true},
		{"show me the full text of the SOP", true},
		{"i need the entire document", true},
		{"請給我完整內容", true},
		{"所有步驟是什麼", true},
		{"what is the cup color", false},
		{"how do I reset the board", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			matched, keyword := c.DetectFullDocumentIntent(tt.query)
			if matched != tt.matched {
				t.Errorf("DetectFullDocumentIntent(%q) = %v, want %v", tt.query, matched, tt.matched)
			}
			if matched && keyword == "" {
				t.Error("matched query should report the matched keyword")
			}
			if !matched && keyword != "" {
				t.Errorf("unmatched query reported keyword %q", keyword)
			}
		})
	}
}

func TestDetectFullDocumentIntent_CaseInsensitive(t *testing.T) {
	c := New()
	if matched, _ := c.DetectFullDocumentIntent("GIVE ME THE COMPLETE STEPS"); !matched {
		t.Error("matching should be case-insensitive")
	}
}

func TestIsUncertainResponse(t *testing.T) {
	c := New()

	tests := []struct {
		name      string
		answer    string
		uncertain bool
	}{
		{"explicit hedge", "I looked through the documentation but I don't know the answer to that.", true},
		{"cannot find", "Unfortunately I cannot find any relevant information about that model.", true},
		{"chinese hedge", "根據目前的資料庫內容，我無法找到相關的測試報告或說明文件。", true},
		{"single char", "x", true},
		{"short answer", "Maybe try again.", true},
		{"confident answer", "The voltage range is 3.3V to 5V as specified in section 2.", false},
		{"confident long answer", "Run the firmware update tool, reboot the device, then verify the version string in the system panel.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uncertain, _ := c.IsUncertainResponse(tt.answer)
			if uncertain != tt.uncertain {
				t.Errorf("IsUncertainResponse(%q) = %v, want %v", tt.answer, uncertain, tt.uncertain)
			}
		})
	}
}

func TestIsUncertainResponse_LengthRule(t *testing.T) {
	// A short answer is a non-answer even with confident wording, and the
	// length rule reports no keyword.
	c := New(WithMinAnswerLength(30))

	uncertain, keyword := c.IsUncertainResponse("It is 5V.")
	if !uncertain {
		t.Error("answer below the minimum length should be uncertain")
	}
	if keyword != "" {
		t.Errorf("length rule should not report a keyword, got %q", keyword)
	}

	// Rune count, not byte count: CJK answers are not penalized for
	// multi-byte encoding.
	c = New(WithMinAnswerLength(10))
	if uncertain, _ := c.IsUncertainResponse("電壓範圍是三點三伏特到五伏特之間"); uncertain {
		t.Error("rune-length CJK answer above the minimum should not be uncertain")
	}
}

func TestClassifier_CustomKeywords(t *testing.T) {
	c := New(
		WithFullDocumentKeywords([]string{"printout"}),
		WithUncertaintyKeywords([]string{"beats me"}),
	)

	if matched, _ := c.DetectFullDocumentIntent("give me the complete steps"); matched {
		t.Error("replaced keyword list should not match default keywords")
	}
	if matched, kw := c.DetectFullDocumentIntent("give me a printout"); !matched || kw != "printout" {
		t.Errorf("custom keyword match = %v %q", matched, kw)
	}
	if uncertain, _ := c.IsUncertainResponse("Honestly that one beats me, there is nothing in the corpus."); !uncertain {
		t.Error("custom uncertainty keyword should match")
	}
}
