// ABOUTME: Tests for transcript rendering and chunk splitting.
// ABOUTME: Exact boundary semantics: at the limit is one chunk, one over is two.

package transfer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitChunks_Boundaries(t *testing.T) {
	atLimit := strings.Repeat("a", 100)
	assert.Len(t, SplitChunks(atLimit, 100), 1)

	oneOver := strings.Repeat("a", 101)
	chunks := SplitChunks(oneOver, 100)
	require.Len(t, chunks, 2)
	assert.Equal(t, strings.Repeat("a", 100), chunks[0])
	assert.Equal(t, "a", chunks[1])
}

func TestSplitChunks_Empty(t *testing.T) {
	chunks := SplitChunks("", 100)
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0])
}

func TestSplitChunks_PrefersLineBoundaries(t *testing.T) {
	text := "first line\nsecond line\nthird line"
	chunks := SplitChunks(text, 25)

	require.Len(t, chunks, 2)
	assert.Equal(t, "first line\nsecond line", chunks[0])
	assert.Equal(t, "third line", chunks[1])
}

func TestSplitChunks_NewlineRunsNeverYieldEmptyChunks(t *testing.T) {
	// A cut landing inside a run of blank separator lines must not produce
	// an empty chunk; empty text is a platform error when posted.
	text := strings.Repeat("a", 90) + strings.Repeat("\n", 150) + strings.Repeat("b", 150)
	chunks := SplitChunks(text, 100)

	for i, c := range chunks {
		assert.NotEmpty(t, c, "chunk %d is empty", i)
	}
	joined := strings.Join(chunks, "")
	assert.Equal(t, 90, strings.Count(joined, "a"))
	assert.Equal(t, 150, strings.Count(joined, "b"))
}

func TestSplitChunks_AllNewlines(t *testing.T) {
	chunks := SplitChunks(strings.Repeat("\n", 250), 100)
	for i, c := range chunks {
		assert.NotEmpty(t, c, "chunk %d is empty", i)
	}
}

func TestSplitChunks_NoContentLost(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 200; i++ {
		sb.WriteString("message line with some content\n")
	}
	text := sb.String()

	chunks := SplitChunks(text, 500)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 500)
	}

	// Rejoining recovers every line (trailing newlines are trimmed at cuts)
	rejoined := strings.Join(chunks, "\n")
	assert.Equal(t, strings.TrimRight(text, "\n"), strings.TrimRight(rejoined, "\n"))
}

func TestBuildTranscript_Layout(t *testing.T) {
	entries := []transcriptEntry{
		{Author: "Alice Chen", Text: "first"},
		{Author: "Bob Park", Text: "second"},
	}
	got := buildTranscript("C111SRC00", "1690000000.000100", entries, AccessFull)

	lines := strings.Split(got, "\n")
	assert.Contains(t, lines[0], "Thread copied from")
	assert.Contains(t, got, "*Alice Chen*: first")
	assert.Contains(t, got, "*Bob Park*: second")
	assert.Contains(t, got, "Total messages: 2")
	assert.Contains(t, got, "https://app.slack.com/archives/C111SRC00/p1690000000000100")

	// Full access carries no caveat
	assert.NotContains(t, got, "may not have access")
}

func TestBuildTranscript_PartialCaveat(t *testing.T) {
	got := buildTranscript("C111SRC00", "1690000000.000100", []transcriptEntry{{Author: "A", Text: "x"}}, AccessPartial)
	assert.Contains(t, got, "may not have access to the complete thread")
}

func TestResolveMentions(t *testing.T) {
	names := map[string]string{"U001": "Alice Chen"}

	assert.Equal(t, "cc @Alice Chen please", resolveMentions("cc <@U001> please", names))
	// Unresolved mentions stay live
	assert.Equal(t, "cc <@U999> please", resolveMentions("cc <@U999> please", names))
	assert.Equal(t, "no mentions", resolveMentions("no mentions", names))
}
