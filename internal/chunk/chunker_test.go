package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortTextIsSingleChunk(t *testing.T) {
	chunks := Split("Replace ReactDOM.render with createRoot.", 3000)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "Replace ReactDOM.render with createRoot.", chunks[0].Text)
}

func TestSplit_EveryChunkWithinBudget(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("The old API has been removed in the new major version. ")
		sb.WriteString("Consumers must migrate to the replacement before upgrading.\n\n")
	}

	chunks := Split(sb.String(), 50)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, CountTokens(c.Text), 50, "chunk %d over budget", c.Index)
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
	}
}

func TestSplit_CoversAllContent(t *testing.T) {
	text := "First paragraph about removed constructors.\n\n" +
		"Second paragraph about renamed lifecycle methods.\n\n" +
		"Third paragraph about configuration keys that moved."

	chunks := Split(text, 15)
	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Text)
		joined.WriteString(" ")
	}

	// Whitespace may be reflowed at boundaries, but no word is lost.
	got := strings.Fields(joined.String())
	want := strings.Fields(text)
	assert.Equal(t, want, got)
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("Deprecated method signatures change between releases. ", 120)
	a := Split(text, 40)
	b := Split(text, 40)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Text, b[i].Text)
		assert.Equal(t, a[i].Index, b[i].Index)
	}
}

func TestSplit_IndicesAreSequential(t *testing.T) {
	text := strings.Repeat("Paragraph one.\n\nParagraph two.\n\n", 30)
	chunks := Split(text, 10)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
	}
}

func TestSplit_OversizedWordIsHardSplit(t *testing.T) {
	word := strings.Repeat("x", 4000)
	chunks := Split(word, 20)
	require.Greater(t, len(chunks), 1)
	var rejoined strings.Builder
	for _, c := range chunks {
		assert.LessOrEqual(t, CountTokens(c.Text), 20)
		rejoined.WriteString(c.Text)
	}
	// Chunk boundaries may add joining whitespace; the word itself is
	// never altered.
	assert.Equal(t, word, strings.Join(strings.Fields(rejoined.String()), ""))
}

func TestSplit_BlankInputYieldsNoChunks(t *testing.T) {
	assert.Empty(t, Split("", 100))
	assert.Empty(t, Split("   \n\n  \n", 100))
}

func TestCountTokens_NonZeroForText(t *testing.T) {
	assert.Greater(t, CountTokens("migration guide"), 0)
	assert.Equal(t, 0, CountTokens(""))
}
