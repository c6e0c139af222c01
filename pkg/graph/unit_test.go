package graph

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: []string(nil),
		},
		{
			name: "single sentence",
			text: "Hello world.",
			want: []string{"Hello world."},
		},
		{
			name: "multiple sentences",
			text: "Hello world. This is a test! How are you?",
			want: []string{
				"Hello world.",
				"This is a test!",
				"How are you?",
			},
		},
		{
			name: "sentences with empty lines",
			text: "First sentence.\n\nSecond sentence.\n\nThird sentence.",
			want: []string{
				"First sentence.",
				"Second sentence.",
				"Third sentence.",
			},
		},
		{
			name: "multi-line sentence",
			text: "This is a long\nsentence that spans\nmultiple lines.",
			want: []string{"This is a long sentence that spans multiple lines."},
		},
		{
			name: "markdown table as single sentence",
			text: "Header1 | Header2\n------- | -------\nValue1  | Value2\nValue3  | Value4",
			want: []string{
				"Header1 | Header2\n------- | -------\nValue1  | Value2\nValue3  | Value4",
			},
		},
		{
			name: "text with table",
			text: "Introduction text.\nHeader1 | Header2\n------- | -------\nValue1  | Value2\nConclusion text.",
			want: []string{
				"Introduction text.",
				"Header1 | Header2\n------- | -------\nValue1  | Value2",
				"Conclusion text.",
			},
		},
		{
			name: "table without delimiter",
			text: "Header1 | Header2\nValue1  | Value2",
			want: []string{
				"Header1 | Header2",
				"Value1  | Value2",
			},
		},
		{
			name: "text with no punctuation",
			text: "Just some text without punctuation\nMore text here",
			want: []string{"Just some text without punctuation More text here"},
		},
		{
			name: "mixed content",
			text: "Start here.\n\n| Col1 | Col2 |\n|------|------|\n| Val1 | Val2 |\n\nEnd here!",
			want: []string{
				"Start here.",
				"| Col1 | Col2 |\n|------|------|\n| Val1 | Val2 |",
				"End here!",
			},
		},
		{
			name: "numeric listing should stay in same sentence",
			text: "Today we discuss three points. 1. First item 2. Second item 3. Third item. Done!",
			want: []string{
				"Today we discuss three points.",
				"1. First item 2. Second item 3. Third item.",
				"Done!",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIntoSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitIntoSentences() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func wordCounter(s string) int {
	return len(strings.Fields(s))
}

func TestChunkSentences(t *testing.T) {
	sentences := []string{"One two three.", "Four five.", "Six seven eight nine.", "Ten."}

	tests := []struct {
		name      string
		maxTokens int
		want      [][2]int
	}{
		{"everything fits", 100, [][2]int{{0, 4}}},
		{"split on limit", 5, [][2]int{{0, 2}, {2, 4}}},
		{"oversized sentence stays whole", 1, [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 4}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := chunkSentences(sentences, "src-1", wordCounter, tt.maxTokens)
			if err != nil {
				t.Fatalf("chunkSentences: %v", err)
			}
			if len(units) != len(tt.want) {
				t.Fatalf("expected %d units, got %d", len(tt.want), len(units))
			}
			for i, u := range units {
				if u.start != tt.want[i][0] || u.end != tt.want[i][1] {
					t.Fatalf("unit %d covers [%d,%d), want %v", i, u.start, u.end, tt.want[i])
				}
				if u.sourceID != "src-1" || u.id == "" {
					t.Fatalf("unit %d missing ids: %+v", i, u)
				}
				if u.text != strings.Join(sentences[u.start:u.end], " ") {
					t.Fatalf("unit %d text mismatch: %q", i, u.text)
				}
			}
		})
	}

	units, err := chunkSentences(nil, "src-1", wordCounter, 10)
	if err != nil || len(units) != 0 {
		t.Fatalf("expected no units for empty input, got %v, %v", units, err)
	}
}

func TestImportantTerms(t *testing.T) {
	text := "Acme Corp buys the Pro plan. Bob Smith works at Acme Corp. In 2024 the plan renews."
	got := importantTerms(text, 4)
	want := []string{"acme", "corp", "plan", "bob"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("importantTerms() = %v, want %v", got, want)
	}

	if got := importantTerms("the and 12345", 10); len(got) != 0 {
		t.Fatalf("expected no terms, got %v", got)
	}
}
