// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textproc provides the small lexical toolkit shared by the evidence
// store, the retrieval gateway, the planner and the writer: tokenizing,
// keyword extraction, summaries and sentence-aware truncation.
package textproc

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"are": true, "was": true, "were": true, "been": true, "have": true,
	"has": true, "had": true, "does": true, "did": true, "will": true,
	"would": true, "could": true, "should": true, "may": true, "might": true,
	"must": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "you": true, "she": true, "its": true, "our": true,
	"they": true, "them": true, "their": true, "his": true, "her": true,
	"from": true, "into": true, "than": true, "then": true, "also": true,
	"not": true, "which": true, "who": true, "what": true, "how": true,
	"when": true, "where": true, "about": true, "over": true, "such": true,
	"there": true, "here": true, "all": true, "any": true, "each": true,
	"more": true, "most": true, "other": true, "some": true, "only": true,
	"very": true, "via": true, "using": true, "used": true, "use": true,
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	sentenceRe   = regexp.MustCompile(`[.!?]+(\s+|$)`)
	paragraphRe  = regexp.MustCompile(`\n[ \t\r]*\n`)
)

// Clean strips markup tags and collapses runs of whitespace.
func Clean(text string) string {
	text = tagRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

// Paragraphs splits text on blank lines and returns each paragraph with
// its whitespace collapsed. Empty paragraphs are dropped.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphRe.Split(text, -1) {
		if p = Clean(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CleanParagraphs is Clean applied per paragraph: markup is stripped and
// whitespace collapsed, but paragraphs stay separated by a blank line.
func CleanParagraphs(text string) string {
	return strings.Join(Paragraphs(tagRe.ReplaceAllString(text, " ")), "\n\n")
}

// Tokens lowercases text and returns its content words in order. Words
// shorter than three characters and stop words are skipped.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < 3 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// TermFrequency counts each token of text.
func TermFrequency(text string) map[string]int {
	tf := make(map[string]int)
	for _, t := range Tokens(text) {
		tf[t]++
	}
	return tf
}

// UniqueTokens returns the distinct tokens of text in first-seen order.
func UniqueTokens(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range Tokens(text) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Keywords returns up to n of the most frequent tokens, most frequent first,
// ties broken alphabetically.
func Keywords(text string, n int) []string {
	tf := TermFrequency(text)
	words := make([]string, 0, len(tf))
	for w := range tf {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if tf[words[i]] != tf[words[j]] {
			return tf[words[i]] > tf[words[j]]
		}
		return words[i] < words[j]
	})
	if n > 0 && len(words) > n {
		words = words[:n]
	}
	return words
}

// Overlap returns the fraction of query tokens that occur in text, 0-1.
func Overlap(query, text string) float64 {
	q := UniqueTokens(query)
	if len(q) == 0 {
		return 0
	}
	tf := TermFrequency(text)
	hits := 0
	for _, t := range q {
		if tf[t] > 0 {
			hits++
		}
	}
	return float64(hits) / float64(len(q))
}

// Sentences splits text into trimmed sentences, keeping terminal punctuation.
func Sentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// Summarize returns leading whole sentences of text that fit in maxChars.
// When even the first sentence is too long it is cut and marked with "...".
func Summarize(text string, maxChars int) string {
	text = Clean(text)
	if len(text) <= maxChars {
		return text
	}
	var b strings.Builder
	for _, s := range Sentences(text) {
		if b.Len()+len(s)+1 > maxChars {
			break
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	if b.Len() == 0 {
		return truncateRunes(text, maxChars-3) + "..."
	}
	return b.String()
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// TruncateWords keeps whole sentences of text up to maxWords words,
// preserving paragraph breaks. If the first sentence alone exceeds the limit
// it is cut at maxWords. It reports whether anything was removed.
func TruncateWords(text string, maxWords int) (string, bool) {
	if maxWords <= 0 || WordCount(text) <= maxWords {
		return text, false
	}
	var paras []string
	words := 0
	full := false
	for _, p := range Paragraphs(text) {
		var kept []string
		for _, s := range Sentences(p) {
			n := WordCount(s)
			if words+n > maxWords {
				full = true
				break
			}
			kept = append(kept, s)
			words += n
		}
		if len(kept) > 0 {
			paras = append(paras, strings.Join(kept, " "))
		}
		if full {
			break
		}
	}
	if len(paras) == 0 {
		return strings.Join(strings.Fields(text)[:maxWords], " "), true
	}
	return strings.Join(paras, "\n\n"), true
}

// TruncateBytes cuts s to at most n bytes without splitting a UTF-8
// sequence.
func TruncateBytes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func truncateRunes(s string, n int) string {
	if n < 0 {
		n = 0
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
