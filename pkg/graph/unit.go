package graph

import (
	"regexp"
	"strings"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkoukk/tiktoken-go"
)

type processUnit struct {
	id       string
	sourceID string
	start    int
	end      int
	text     string
}

type tokenCounter func(string) int

func tiktokenCounter(encoder string) (tokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoder)
	if err != nil {
		return nil, err
	}
	return func(s string) int {
		return len(enc.Encode(s, nil, nil))
	}, nil
}

// chunkSentences groups consecutive sentences into units whose summed token
// count stays within maxTokens. A sentence longer than maxTokens becomes a
// unit of its own. start and end are sentence indexes, end exclusive.
func chunkSentences(sentences []string, sourceID string, count tokenCounter, maxTokens int) ([]processUnit, error) {
	var units []processUnit
	start, tokens := 0, 0

	flush := func(end int) error {
		if end <= start {
			return nil
		}
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		units = append(units, processUnit{
			id:       id,
			sourceID: sourceID,
			start:    start,
			end:      end,
			text:     strings.Join(sentences[start:end], " "),
		})
		start, tokens = end, 0
		return nil
	}

	for i, s := range sentences {
		n := count(s)
		if i > start && tokens+n > maxTokens {
			if err := flush(i); err != nil {
				return nil, err
			}
		}
		tokens += n
	}
	if err := flush(len(sentences)); err != nil {
		return nil, err
	}
	return units, nil
}

var tableDelimRe = regexp.MustCompile(`^\s*\|?\s*:?-{3,}:?\s*(\|\s*:?-{3,}:?\s*)+\|?\s*$`)

func isTableRow(line string) bool {
	return strings.Contains(strings.TrimSpace(line), "|")
}

type sentenceBuffer struct {
	out []string
	cur strings.Builder
}

func (b *sentenceBuffer) flush() {
	if s := strings.TrimSpace(b.cur.String()); s != "" {
		b.out = append(b.out, s)
	}
	b.cur.Reset()
}

func (b *sentenceBuffer) addLine(line string) {
	for _, s := range splitLineIntoSentences(line) {
		if b.cur.Len() > 0 {
			b.cur.WriteByte(' ')
		}
		b.cur.WriteString(s)
		if endsSentence(s) {
			b.flush()
		}
	}
}

func endsSentence(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), `"')]}`)
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "!") || strings.HasSuffix(s, "?")
}

// splitIntoSentences splits text into sentences. Lines without terminal
// punctuation are joined with the next line, blank lines end a sentence and
// a markdown table (header row followed by a delimiter row) stays one
// sentence.
func splitIntoSentences(text string) []string {
	lines := strings.Split(text, "\n")
	var buf sentenceBuffer
	var table []string

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if len(table) > 0 {
			if trimmed != "" && isTableRow(line) {
				table = append(table, line)
				continue
			}
			buf.out = append(buf.out, strings.TrimSpace(strings.Join(table, "\n")))
			table = nil
		}

		switch {
		case trimmed == "":
			buf.flush()
		case isTableRow(line):
			buf.flush()
			if i+1 < len(lines) && tableDelimRe.MatchString(strings.TrimSpace(lines[i+1])) {
				table = append(table, line)
			} else {
				buf.out = append(buf.out, trimmed)
			}
		default:
			buf.addLine(trimmed)
		}
	}
	if len(table) > 0 {
		buf.out = append(buf.out, strings.TrimSpace(strings.Join(table, "\n")))
	}
	buf.flush()
	return buf.out
}

func isTerminal(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isCloser(c byte) bool {
	return c == '"' || c == '\'' || c == ')' || c == ']' || c == '}'
}

// splitLineIntoSentences cuts a single line at terminal punctuation. A
// period after a digit and before a space ("1. First") is a list marker,
// not a sentence end.
func splitLineIntoSentences(line string) []string {
	var sentences []string
	last := 0
	for i := 0; i < len(line); i++ {
		if !isTerminal(line[i]) {
			continue
		}
		if i > 0 && unicode.IsDigit(rune(line[i-1])) && i+1 < len(line) && line[i+1] == ' ' {
			continue
		}
		j := i + 1
		for j < len(line) && isTerminal(line[j]) {
			j++
		}
		for j < len(line) && isCloser(line[j]) {
			j++
		}
		if s := strings.TrimSpace(line[last:j]); s != "" {
			sentences = append(sentences, s)
		}
		last = j
		i = j - 1
	}
	if s := strings.TrimSpace(line[last:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
