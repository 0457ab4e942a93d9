package signals

import (
	"reflect"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []TextSpan
	}{
		{
			name: "terminators",
			text: "Hello world. How are you? Fine!",
			want: []TextSpan{{0, 12}, {13, 25}, {26, 31}},
		},
		{
			name: "newline boundary",
			text: "line one\nline two",
			want: []TextSpan{{0, 8}, {9, 17}},
		},
		{
			name: "closing quote rides along",
			text: `He said "stop." Then left.`,
			want: []TextSpan{{0, 15}, {16, 26}},
		},
		{
			name: "terminator runs",
			text: "Wait... what?",
			want: []TextSpan{{0, 7}, {8, 13}},
		},
		{
			name: "no trailing terminator",
			text: "no punctuation",
			want: []TextSpan{{0, 14}},
		},
		{
			name: "trailing spaces trimmed",
			text: "hi  \nyo",
			want: []TextSpan{{0, 2}, {5, 7}},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "whitespace only",
			text: "   \n  ",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitSentences(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("spans: want=%v got=%v", tc.want, got)
			}
			for _, sp := range got {
				if sp.Start < 0 || sp.End > len(tc.text) || sp.Start >= sp.End {
					t.Fatalf("invalid span %v for %q", sp, tc.text)
				}
			}
		})
	}
}

func TestSplitSentencesMultibyte(t *testing.T) {
	text := "Héllo. Wörld."
	got := splitSentences(text)
	want := []TextSpan{{0, 7}, {8, 15}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("spans: want=%v got=%v", want, got)
	}
	if s := text[got[0].Start:got[0].End]; s != "Héllo." {
		t.Fatalf("first sentence: want=%q got=%q", "Héllo.", s)
	}
	if s := text[got[1].Start:got[1].End]; s != "Wörld." {
		t.Fatalf("second sentence: want=%q got=%q", "Wörld.", s)
	}
}

func TestSplitAlignsWithInputs(t *testing.T) {
	s := NewSentenceSplitter()
	if s.Name() != SentenceSplitterName {
		t.Fatalf("name: want=%q got=%q", SentenceSplitterName, s.Name())
	}
	out := s.Split([]string{"One. Two.", ""})
	if len(out) != 2 {
		t.Fatalf("outputs: want=2 got=%d", len(out))
	}
	if len(out[0]) != 2 {
		t.Fatalf("first text spans: want=2 got=%v", out[0])
	}
	if len(out[1]) != 0 {
		t.Fatalf("empty text spans: want=0 got=%v", out[1])
	}
}
