package signals

import (
	"unicode"
	"unicode/utf8"
)

// TextSpan is a half-open [Start, End) byte range into the original text.
type TextSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// SentenceSplitterName is the splitter's registry name.
const SentenceSplitterName = "sentences"

// SentenceSplitter is a rule-based sentence boundary detector. Sentences end
// at a run of '.', '!' or '?' (plus any closing quotes or parens) followed by
// whitespace, or at a newline. Spans never include leading or trailing
// whitespace.
type SentenceSplitter struct{}

func NewSentenceSplitter() SentenceSplitter { return SentenceSplitter{} }

func (SentenceSplitter) Name() string { return SentenceSplitterName }

// Split returns sentence spans for each text, aligned with input order.
func (SentenceSplitter) Split(texts []string) [][]TextSpan {
	out := make([][]TextSpan, len(texts))
	for i, t := range texts {
		out[i] = splitSentences(t)
	}
	return out
}

func splitSentences(text string) []TextSpan {
	var spans []TextSpan
	start := -1
	flush := func(end int) {
		for end > start && (text[end-1] == ' ' || text[end-1] == '\t') {
			end--
		}
		if start >= 0 && end > start {
			spans = append(spans, TextSpan{Start: start, End: end})
		}
		start = -1
	}

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case r == '\n':
			flush(i)
		case isSentenceEnd(r) && start >= 0:
			j := i + size
			for j < len(text) {
				r2, size2 := utf8.DecodeRuneInString(text[j:])
				if !isSentenceEnd(r2) && !isSentenceClose(r2) {
					break
				}
				j += size2
			}
			flush(j)
			i = j
			continue
		case !unicode.IsSpace(r) && start < 0:
			start = i
		}
		i += size
	}
	flush(len(text))
	return spans
}

func isSentenceEnd(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isSentenceClose(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == ']' || r == '”' || r == '’'
}
