// Package text turns item bodies into keyword candidates. It strips
// markup and shortcodes, normalises to lowercase ASCII words, removes
// stop words and short words, and picks the most frequent remaining term.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const minTokenLen = 3

var (
	nonWordRun    = regexp.MustCompile(`[^a-zA-Z 0-9]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	shortcodeOpen = regexp.MustCompile(`\[([A-Za-z][\w-]*)(\s[^\[\]]*?)?(/)?\]`)
	shortcodeEnd  = regexp.MustCompile(`\[/([A-Za-z][\w-]*)\]`)
)

// Tokenizer produces the token stream used for keyword extraction.
// A Tokenizer is immutable and safe for concurrent use.
type Tokenizer struct {
	stopwords  *StopwordSet
	shortcodes map[string]struct{}
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// WithShortcodes limits shortcode stripping to the named macros. Without
// it every bracket-delimited shortcode is stripped.
func WithShortcodes(names ...string) Option {
	return func(t *Tokenizer) {
		if len(names) == 0 {
			return
		}
		t.shortcodes = make(map[string]struct{}, len(names))
		for _, n := range names {
			t.shortcodes[strings.ToLower(n)] = struct{}{}
		}
	}
}

// NewTokenizer returns a Tokenizer filtering the given stop words. A nil
// set means the built-in list.
func NewTokenizer(stopwords *StopwordSet, opts ...Option) *Tokenizer {
	if stopwords == nil {
		stopwords = NewStopwordSet()
	}
	t := &Tokenizer{stopwords: stopwords}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Stopwords returns the set the tokenizer filters with.
func (t *Tokenizer) Stopwords() *StopwordSet {
	return t.stopwords
}

// Tokenize returns the lowercase words of text longer than two characters
// that are not stop words, in source order with duplicates kept.
func (t *Tokenizer) Tokenize(text string) []string {
	text = stripTags(text)
	text = t.stripShortcodes(text)
	text = nonWordRun.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, "\n", "")
	text = strings.ReplaceAll(text, "\r", "")
	text = whitespaceRun.ReplaceAllString(text, " ")

	words := strings.Split(text, " ")
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(strings.ToLower(w))
		if t.stopwords.Contains(w) {
			continue
		}
		if len(w) < minTokenLen {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

// stripTags drops markup and comments, keeping text content byte for byte
// (entities are not decoded).
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	b.Grow(len(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.TextToken:
			b.Write(z.Raw())
		}
	}
}

// stripShortcodes removes [name attrs], [name/] and [name]...[/name]
// macros including enclosed content. Unmatched closing tags are dropped.
func (t *Tokenizer) stripShortcodes(s string) string {
	if !strings.ContainsRune(s, '[') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for {
		loc := shortcodeOpen.FindStringSubmatchIndex(s)
		if loc == nil {
			b.WriteString(s)
			break
		}
		name := s[loc[2]:loc[3]]
		if !t.recognised(name) {
			b.WriteString(s[:loc[1]])
			s = s[loc[1]:]
			continue
		}
		b.WriteString(s[:loc[0]])
		rest := s[loc[1]:]
		selfClosing := loc[6] >= 0
		if !selfClosing {
			closing := "[/" + name + "]"
			if end := strings.Index(rest, closing); end >= 0 {
				rest = rest[end+len(closing):]
			}
		}
		s = rest
	}
	return shortcodeEnd.ReplaceAllStringFunc(b.String(), func(tag string) string {
		if t.recognised(tag[2 : len(tag)-1]) {
			return ""
		}
		return tag
	})
}

func (t *Tokenizer) recognised(name string) bool {
	if t.shortcodes == nil {
		return true
	}
	_, ok := t.shortcodes[strings.ToLower(name)]
	return ok
}
