package engine

import (
	"strings"
	"testing"
)

func TestParseExtractions_Valid(t *testing.T) {
	content := `{"extractions": [
		{"extraction_class": "character", "extraction_text": "ROMEO", "attributes": {"mood": "eager"}},
		{"extraction_class": "character", "extraction_text": "JULIET"}
	]}`

	exts, err := ParseExtractions(content)
	if err != nil {
		t.Fatalf("ParseExtractions() error = %v", err)
	}
	if len(exts) != 2 {
		t.Fatalf("len(exts) = %d, want 2", len(exts))
	}
	if exts[0].ExtractionClass != "character" || exts[0].ExtractionText != "ROMEO" {
		t.Errorf("exts[0] = %+v", exts[0])
	}
	if exts[0].Attributes["mood"] != "eager" {
		t.Errorf("exts[0].Attributes = %v", exts[0].Attributes)
	}
	if exts[1].Attributes != nil {
		t.Errorf("exts[1].Attributes = %v, want nil", exts[1].Attributes)
	}
}

func TestParseExtractions_CodeFenced(t *testing.T) {
	content := "```json\n{\"extractions\": [{\"extraction_class\": \"c\", \"extraction_text\": \"t\"}]}\n```"

	exts, err := ParseExtractions(content)
	if err != nil {
		t.Fatalf("ParseExtractions() error = %v", err)
	}
	if len(exts) != 1 {
		t.Errorf("len(exts) = %d, want 1", len(exts))
	}
}

func TestParseExtractions_EmptyList(t *testing.T) {
	exts, err := ParseExtractions(`{"extractions": []}`)
	if err != nil {
		t.Fatalf("ParseExtractions() error = %v", err)
	}
	if len(exts) != 0 {
		t.Errorf("len(exts) = %d, want 0", len(exts))
	}
}

func TestParseExtractions_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "here are your extractions!"},
		{"missing extractions key", `{"results": []}`},
		{"missing extraction_text", `{"extractions": [{"extraction_class": "c"}]}`},
		{"empty extraction_class", `{"extractions": [{"extraction_class": "", "extraction_text": "t"}]}`},
		{"extractions not a list", `{"extractions": {"extraction_class": "c"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseExtractions(tt.content); err == nil {
				t.Error("ParseExtractions() error = nil, want error")
			}
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	plain := `{"extractions": []}`
	if got := stripCodeFence(plain); got != plain {
		t.Errorf("stripCodeFence(plain) = %q", got)
	}
	fenced := "```json\n" + plain + "\n```"
	if got := stripCodeFence(fenced); got != plain {
		t.Errorf("stripCodeFence(fenced) = %q", got)
	}
	if got := stripCodeFence("```\n" + plain + "\n```"); got != plain {
		t.Errorf("stripCodeFence(bare fence) = %q", got)
	}
	if !strings.Contains(stripCodeFence("  "+plain+"  "), "extractions") {
		t.Error("stripCodeFence should trim whitespace only")
	}
}
