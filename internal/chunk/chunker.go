package chunk

import (
	"bufio"
	"strings"
)

// Chunk is one bounded segment of guide text, indexed in document order.
type Chunk struct {
	Index  int
	Text   string
	Tokens int
}

// Split cuts text into non-empty chunks of at most maxTokens each.
// Boundaries fall on paragraph breaks when possible, then sentence
// breaks, then word breaks. A single word larger than the budget is the
// only case split mid-word. Same input and budget always produce the
// same sequence.
func Split(text string, maxTokens int) []Chunk {
	if maxTokens <= 0 {
		maxTokens = 3000
	}

	var out []Chunk
	var cur strings.Builder

	flush := func() {
		s := strings.TrimSpace(cur.String())
		cur.Reset()
		if s != "" {
			out = append(out, Chunk{Index: len(out), Text: s, Tokens: CountTokens(s)})
		}
	}

	for _, para := range splitParagraphs(text) {
		for _, piece := range fitPieces(para, maxTokens) {
			if cur.Len() == 0 {
				cur.WriteString(piece)
				continue
			}
			candidate := cur.String() + "\n\n" + piece
			if CountTokens(candidate) <= maxTokens {
				cur.Reset()
				cur.WriteString(candidate)
			} else {
				flush()
				cur.WriteString(piece)
			}
		}
	}
	flush()
	return out
}

// splitParagraphs breaks text on blank lines, dropping empty paragraphs.
func splitParagraphs(text string) []string {
	var paras []string
	var buf strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	emit := func() {
		p := strings.TrimRight(buf.String(), "\n")
		buf.Reset()
		if strings.TrimSpace(p) != "" {
			paras = append(paras, p)
		}
	}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			emit()
			continue
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	emit()
	return paras
}

// fitPieces returns para as-is when it fits, otherwise splits it down
// sentence-first until every piece is within the budget.
func fitPieces(para string, maxTokens int) []string {
	if CountTokens(para) <= maxTokens {
		return []string{para}
	}
	var pieces []string
	for _, group := range packUnits(splitSentences(para), " ", maxTokens) {
		if CountTokens(group) <= maxTokens {
			pieces = append(pieces, group)
			continue
		}
		pieces = append(pieces, hardSplit(group, maxTokens)...)
	}
	return pieces
}

// packUnits greedily joins units into groups not exceeding the budget.
// A single oversized unit becomes its own group and is handled upstream.
func packUnits(units []string, sep string, maxTokens int) []string {
	var groups []string
	var cur string
	for _, u := range units {
		if u == "" {
			continue
		}
		if cur == "" {
			cur = u
			continue
		}
		candidate := cur + sep + u
		if CountTokens(candidate) <= maxTokens {
			cur = candidate
		} else {
			groups = append(groups, cur)
			cur = u
		}
	}
	if cur != "" {
		groups = append(groups, cur)
	}
	return groups
}

// splitSentences cuts on sentence-final punctuation followed by
// whitespace, and on hard line breaks.
func splitSentences(text string) []string {
	var sentences []string
	var buf strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		buf.WriteRune(r)
		if r == '\n' {
			sentences = appendSentence(sentences, buf.String())
			buf.Reset()
			continue
		}
		if (r == '.' || r == '!' || r == '?' || r == ';') &&
			i+1 < len(runes) && (runes[i+1] == ' ' || runes[i+1] == '\t') {
			sentences = appendSentence(sentences, buf.String())
			buf.Reset()
		}
	}
	sentences = appendSentence(sentences, buf.String())
	return sentences
}

func appendSentence(list []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return list
	}
	return append(list, s)
}

// hardSplit breaks an oversized sentence on word boundaries; a word that
// alone exceeds the budget is cut at the largest fitting rune prefix.
func hardSplit(text string, maxTokens int) []string {
	var pieces []string
	for _, group := range packUnits(strings.Fields(text), " ", maxTokens) {
		if CountTokens(group) <= maxTokens {
			pieces = append(pieces, group)
			continue
		}
		runes := []rune(group)
		for len(runes) > 0 {
			k := largestFittingPrefix(runes, maxTokens)
			pieces = append(pieces, string(runes[:k]))
			runes = runes[k:]
		}
	}
	return pieces
}

func largestFittingPrefix(runes []rune, maxTokens int) int {
	lo, hi := 1, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if CountTokens(string(runes[:mid])) <= maxTokens {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}
