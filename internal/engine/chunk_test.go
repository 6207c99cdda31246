package engine

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitText_ShortTextSingleChunk(t *testing.T) {
	chunks := SplitText("hello world", 1000)
	if len(chunks) != 1 {
		t.Fatalf("len(chunks) = %d, want 1", len(chunks))
	}
	if chunks[0] != "hello world" {
		t.Errorf("chunks[0] = %q, want %q", chunks[0], "hello world")
	}
}

func TestSplitText_RespectsMaxChars(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)
	maxChars := 100

	chunks := SplitText(text, maxChars)
	if len(chunks) < 2 {
		t.Fatalf("len(chunks) = %d, want at least 2", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > maxChars {
			t.Errorf("chunks[%d] has %d chars, want <= %d", i, n, maxChars)
		}
		if c == "" {
			t.Errorf("chunks[%d] is empty", i)
		}
	}
}

func TestSplitText_PrefersParagraphBoundaries(t *testing.T) {
	text := "First paragraph here.\n\nSecond paragraph here.\n\nThird paragraph here."
	chunks := SplitText(text, 25)

	for i, c := range chunks {
		if strings.Contains(c, "\n\n") {
			t.Errorf("chunks[%d] = %q spans a paragraph boundary", i, c)
		}
	}
	if len(chunks) != 3 {
		t.Errorf("len(chunks) = %d, want 3", len(chunks))
	}
}

func TestSplitText_PreservesOrder(t *testing.T) {
	text := "Alpha sentence one. Beta sentence two. Gamma sentence three. Delta sentence four."
	chunks := SplitText(text, 40)

	joined := strings.Join(chunks, " ")
	for _, word := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
		if !strings.Contains(joined, word) {
			t.Errorf("joined chunks missing %q", word)
		}
	}
	if strings.Index(joined, "Alpha") > strings.Index(joined, "Delta") {
		t.Error("chunk order not preserved")
	}
}

func TestSplitText_HardCutsOversizedRuns(t *testing.T) {
	text := strings.Repeat("x", 350)
	chunks := SplitText(text, 100)

	if len(chunks) != 4 {
		t.Fatalf("len(chunks) = %d, want 4", len(chunks))
	}
	total := 0
	for i, c := range chunks {
		n := utf8.RuneCountInString(c)
		if n > 100 {
			t.Errorf("chunks[%d] has %d chars, want <= 100", i, n)
		}
		total += n
	}
	if total != 350 {
		t.Errorf("total chars = %d, want 350", total)
	}
}
