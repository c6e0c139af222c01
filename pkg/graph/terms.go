package graph

import (
	"sort"
	"strings"
	"unicode"
)

const maxImportantTerms = 10

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		the and for are but not you all any can had her was one our out day get has him his how
		man new now old see two way who boy did its let put say she too use that with have this
		will your from they know want been good much some time very when come here just like long
		make many over such take than them well were what also into only then there these their
		would about could which should other after first where those while being because between
		through during before under again further once more most same each both few own off per
		via yes may might must shall does done doing upon onto within without across against`) {
		stopwords[w] = struct{}{}
	}
}

func isTermWord(w string) bool {
	if len([]rune(w)) < 3 {
		return false
	}
	if _, ok := stopwords[w]; ok {
		return false
	}
	for _, r := range w {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// importantTerms returns up to n words of text ranked by frequency, ties in
// alphabetical order. Words are lowercased; stopwords, words shorter than
// three runes and pure numbers are skipped.
func importantTerms(text string, n int) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	freq := make(map[string]int)
	for _, w := range words {
		w = strings.Trim(w, "-")
		if isTermWord(w) {
			freq[w]++
		}
	}

	terms := make([]string, 0, len(freq))
	for w := range freq {
		terms = append(terms, w)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}
