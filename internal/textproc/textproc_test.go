// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textproc

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTokens(t *testing.T) {
	got := Tokens("The Lithium-ion battery is used for grid storage, and it WORKS.")
	want := []string{"lithium", "ion", "battery", "grid", "storage", "works"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens = %v, want %v", got, want)
	}
}

func TestKeywords(t *testing.T) {
	text := "storage grid storage battery grid storage pumped"
	got := Keywords(text, 2)
	want := []string{"storage", "grid"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %v, want %v", got, want)
	}
	// Ties break alphabetically.
	got = Keywords("zinc air alpha", 3)
	want = []string{"air", "alpha", "zinc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords ties = %v, want %v", got, want)
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		query, text string
		want        float64
	}{
		{"grid battery storage", "battery storage for the grid", 1},
		{"grid battery storage", "battery chemistry", 1.0 / 3},
		{"grid battery", "solar panels", 0},
		{"", "anything", 0},
	}
	for _, tt := range tests {
		if got := Overlap(tt.query, tt.text); got != tt.want {
			t.Errorf("Overlap(%q, %q) = %v, want %v", tt.query, tt.text, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	text := "First sentence here. Second sentence is longer than the first. Third."
	got := Summarize(text, 25)
	if got != "First sentence here." {
		t.Errorf("Summarize = %q", got)
	}
	if got := Summarize("short", 100); got != "short" {
		t.Errorf("Summarize short = %q", got)
	}
	long := strings.Repeat("x", 50)
	if got := Summarize(long, 10); got != "xxxxxxx..." {
		t.Errorf("Summarize unbroken = %q", got)
	}
}

func TestTruncateWords(t *testing.T) {
	text := "One two three. Four five six. Seven eight nine."
	got, cut := TruncateWords(text, 7)
	if !cut || got != "One two three. Four five six." {
		t.Errorf("TruncateWords = %q, %v", got, cut)
	}
	got, cut = TruncateWords(text, 100)
	if cut || got != text {
		t.Errorf("TruncateWords no-op = %q, %v", got, cut)
	}
	got, cut = TruncateWords("a b c d e f", 3)
	if !cut || got != "a b c" {
		t.Errorf("TruncateWords single sentence = %q, %v", got, cut)
	}
}

func TestTruncateWordsKeepsParagraphs(t *testing.T) {
	text := "One two three. Four five.\n\nSix seven eight.\n\nNine ten eleven."
	got, cut := TruncateWords(text, 8)
	if !cut || got != "One two three. Four five.\n\nSix seven eight." {
		t.Errorf("TruncateWords paragraphs = %q, %v", got, cut)
	}
}

func TestCleanParagraphs(t *testing.T) {
	got := CleanParagraphs("<p>First   line\nwraps.</p>\n\n\n  <p>Second.</p>\n")
	if got != "First line wraps.\n\nSecond." {
		t.Errorf("CleanParagraphs = %q", got)
	}
}

func TestTruncateBytes(t *testing.T) {
	s := strings.Repeat("a", 99) + "été"
	got := TruncateBytes(s, 100)
	if got != strings.Repeat("a", 99) {
		t.Errorf("TruncateBytes split rune: %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("TruncateBytes produced invalid UTF-8")
	}
	if got := TruncateBytes("été", 3); got != "ét" {
		t.Errorf("TruncateBytes on boundary = %q", got)
	}
	if got := TruncateBytes("short", 10); got != "short" {
		t.Errorf("TruncateBytes no-op = %q", got)
	}
}

func TestClean(t *testing.T) {
	got := Clean("  <p>Hello</p>\n\n  <b>world</b>  ")
	if got != "Hello world" {
		t.Errorf("Clean = %q", got)
	}
}
