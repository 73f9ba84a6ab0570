package text

import "strings"

// defaultStopwords is the built-in list of English function words and
// markup leftovers ("nbsp") removed before keyword extraction.
var defaultStopwords = []string{
	"a", "just", "nbsp", "about", "above", "across", "after", "afterwards",
	"again", "against", "all", "almost", "alone", "along", "already", "also",
	"although", "always", "am", "among", "amongst", "amoungst", "amount",
	"an", "and", "another", "any", "anyhow", "anyone", "anything", "anyway",
	"anywhere", "are", "around", "as", "at", "back", "be", "became",
	"because", "become", "becomes", "becoming", "been", "before",
	"beforehand", "behind", "being", "below", "beside", "besides", "between",
	"beyond", "bill", "both", "bottom", "but", "by", "call", "can", "cannot",
	"cant", "co", "con", "could", "couldnt", "cry", "de", "describe",
	"detail", "do", "done", "down", "due", "during", "each", "eg", "eight",
	"either", "eleven", "else", "elsewhere", "empty", "enough", "etc", "even",
	"ever", "every", "everyone", "everything", "everywhere", "except", "few",
	"fifteen", "fify", "fill", "find", "fire", "first", "five", "for",
	"former", "formerly", "forty", "found", "four", "from", "front", "full",
	"further", "get", "give", "go", "had", "has", "hasnt", "have", "he",
	"hence", "her", "here", "hereafter", "hereby", "herein", "hereupon",
	"hers", "herself", "him", "himself", "his", "how", "however", "hundred",
	"ie", "if", "in", "inc", "indeed", "interest", "into", "is", "it", "its",
	"itself", "keep", "last", "latter", "latterly", "least", "less", "ltd",
	"made", "many", "may", "me", "meanwhile", "might", "mill", "mine", "more",
	"moreover", "most", "mostly", "move", "much", "must", "my", "myself",
	"name", "namely", "neither", "never", "nevertheless", "next", "nine",
	"no", "nobody", "none", "noone", "nor", "not", "nothing", "now",
	"nowhere", "of", "off", "often", "on", "once", "one", "only", "onto",
	"or", "other", "others", "otherwise", "our", "ours", "ourselves", "out",
	"over", "own", "part", "per", "perhaps", "please", "put", "rather", "re",
	"same", "see", "seem", "seemed", "seeming", "seems", "serious", "several",
	"she", "should", "show", "side", "since", "sincere", "six", "sixty", "so",
	"some", "somehow", "someone", "something", "sometime", "sometimes",
	"somewhere", "still", "such", "system", "take", "ten", "than", "that",
	"the", "their", "them", "themselves", "then", "thence", "there",
	"thereafter", "thereby", "therefore", "therein", "thereupon", "these",
	"they", "thickv", "thin", "third", "this", "those", "though", "three",
	"through", "throughout", "thru", "thus", "to", "together", "too", "top",
	"toward", "towards", "twelve", "twenty", "two", "un", "under", "until",
	"up", "upon", "us", "very", "via", "was", "we", "well", "were", "what",
	"whatever", "when", "whence", "whenever", "where", "whereafter",
	"whereas", "whereby", "wherein", "whereupon", "wherever", "whether",
	"which", "while", "whither", "who", "whoever", "whole", "whom", "whose",
	"why", "will", "with", "within", "without", "would", "yet", "you", "your",
	"yours", "yourself", "yourselves",
}

// StopwordHook receives the current stop-word list and returns the
// effective one. Hooks may append, remove or replace entries.
type StopwordHook func(words []string) []string

// AppendStopwords returns a hook adding words to the list.
func AppendStopwords(words ...string) StopwordHook {
	return func(current []string) []string {
		return append(current, words...)
	}
}

// ReplaceStopwords returns a hook discarding the list in favour of words.
func ReplaceStopwords(words ...string) StopwordHook {
	return func([]string) []string {
		return append([]string(nil), words...)
	}
}

// DefaultStopwords returns a copy of the built-in list.
func DefaultStopwords() []string {
	return append([]string(nil), defaultStopwords...)
}

// StopwordSet is an immutable, case-insensitive set of filtered terms.
// Order of first insertion is kept for Words.
type StopwordSet struct {
	words []string
	index map[string]struct{}
}

// NewStopwordSet applies hooks in order to the built-in list.
func NewStopwordSet(hooks ...StopwordHook) *StopwordSet {
	words := DefaultStopwords()
	for _, hook := range hooks {
		if hook != nil {
			words = hook(words)
		}
	}
	s := &StopwordSet{
		words: make([]string, 0, len(words)),
		index: make(map[string]struct{}, len(words)),
	}
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := s.index[w]; dup {
			continue
		}
		s.index[w] = struct{}{}
		s.words = append(s.words, w)
	}
	return s
}

// Contains reports whether token, compared case-insensitively as a whole
// word, is a stop word.
func (s *StopwordSet) Contains(token string) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[strings.ToLower(token)]
	return ok
}

func (s *StopwordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.words)
}

// Words returns the effective list in insertion order.
func (s *StopwordSet) Words() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.words...)
}
