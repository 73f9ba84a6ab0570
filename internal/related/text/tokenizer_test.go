package text

import (
	"reflect"
	"regexp"
	"strings"
	"testing"
)

var tokenShape = regexp.MustCompile(`^[a-z0-9]{3,}$`)

func TestTokenizeFoxSentence(t *testing.T) {
	tok := NewTokenizer(nil)
	got := tok.Tokenize("The quick brown fox jumps over the lazy dog the fox runs")
	// "the" and "over" are both on the built-in list.
	want := []string{"quick", "brown", "fox", "jumps", "lazy", "dog", "fox", "runs"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeStopwordBoundary(t *testing.T) {
	tok := NewTokenizer(NewStopwordSet(ReplaceStopwords("the", "is")))
	got := tok.Tokenize("there is feedback")
	want := []string{"there", "feedback"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeDefaultListRemovesThere(t *testing.T) {
	// "there" is itself a built-in stop word; it is removed as a whole
	// word, and "thereabouts" survives because it only contains it.
	got := NewTokenizer(nil).Tokenize("there thereabouts")
	want := []string{"thereabouts"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeEmpty(t *testing.T) {
	got := NewTokenizer(nil).Tokenize("")
	if got == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(got) != 0 {
		t.Errorf("expected no tokens, got %v", got)
	}
}

func TestTokenizeStripsMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "html tags",
			in:   `<p>Kayaking <strong>rivers</strong></p><!-- hidden comment -->`,
			want: []string{"kayaking", "rivers"},
		},
		{
			name: "entities are not decoded",
			in:   "salmon&nbsp;trout",
			want: []string{"salmon", "trout"},
		},
		{
			name: "self closing shortcode",
			in:   `alpine [gallery ids="1,2,3" /] meadow`,
			want: []string{"alpine", "meadow"},
		},
		{
			name: "enclosing shortcode drops content",
			in:   `glacier [caption id="9"]photo credit walrus[/caption] lagoon`,
			want: []string{"glacier", "lagoon"},
		},
		{
			name: "stray closing shortcode",
			in:   "harbor [/embed] lighthouse",
			want: []string{"harbor", "lighthouse"},
		},
		{
			name: "punctuation and line breaks",
			in:   "orchard,\r\nvineyard!!! cellar-door\tbarrel",
			want: []string{"orchard", "vineyard", "cellar", "door", "barrel"},
		},
		{
			name: "mixed case and digits",
			in:   "HTTP2 Protocol v1 2024",
			want: []string{"http2", "protocol", "2024"},
		},
		{
			name: "non ascii letters split words",
			in:   "café crème",
			want: []string{"caf"},
		},
	}
	tok := NewTokenizer(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenizeRecognisedShortcodesOnly(t *testing.T) {
	tok := NewTokenizer(nil, WithShortcodes("gallery"))
	got := tok.Tokenize("granite [gallery ids=4] [citation needed] basalt")
	want := []string{"granite", "citation", "needed", "basalt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeInvariants(t *testing.T) {
	inputs := []string{
		"The quick brown fox jumps over the lazy dog",
		"<div class=\"x\">Hello,   World!\n\nGo is fun; Go is fast.</div>",
		"a an the of to it is at by",
		strings.Repeat("Résumé naïve façade — coöperate ", 3),
		"[shortcode]inner[/shortcode] tail\r\nend",
		"!!!???...",
	}
	set := NewStopwordSet()
	tok := NewTokenizer(set)
	for _, in := range inputs {
		for _, token := range tok.Tokenize(in) {
			if !tokenShape.MatchString(token) {
				t.Errorf("token %q from %q violates shape", token, in)
			}
			if set.Contains(token) {
				t.Errorf("token %q from %q is a stop word", token, in)
			}
		}
	}
}

func TestStopwordSetHooks(t *testing.T) {
	base := NewStopwordSet()
	if !base.Contains("the") || !base.Contains("THE") {
		t.Fatal("expected case-insensitive membership of \"the\"")
	}
	if base.Contains("there's") {
		t.Error("unexpected membership")
	}

	extended := NewStopwordSet(AppendStopwords("Lorem", "ipsum"))
	if !extended.Contains("lorem") || !extended.Contains("ipsum") {
		t.Error("appended words missing")
	}
	if extended.Len() != base.Len()+2 {
		t.Errorf("expected %d words, got %d", base.Len()+2, extended.Len())
	}

	replaced := NewStopwordSet(ReplaceStopwords("only"), AppendStopwords("also", "only"))
	if got := replaced.Words(); !reflect.DeepEqual(got, []string{"only", "also"}) {
		t.Errorf("Words() = %v", got)
	}
}

func TestDefaultStopwordsIsACopy(t *testing.T) {
	words := DefaultStopwords()
	words[0] = "mutated"
	if DefaultStopwords()[0] == "mutated" {
		t.Error("DefaultStopwords exposed internal slice")
	}
}
