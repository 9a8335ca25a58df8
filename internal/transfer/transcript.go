// ABOUTME: Deterministic transcript rendering for copied threads.
// ABOUTME: Builds header, body, and footer, and splits the result into postable chunks.

package transfer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/2389/slack-dispatch/internal/slackapi"
)

// chunkLimit is the maximum size in bytes of a single posted message.
const chunkLimit = 3000

var mentionPattern = regexp.MustCompile(`<@(U[A-Z0-9]+)>`)

// transcriptEntry is one source message with its author already resolved.
type transcriptEntry struct {
	Author    string
	Text      string
	Timestamp string // platform ts, "seconds.micros"
}

// formatTS renders a platform timestamp as a short UTC time, or "" when the
// timestamp is absent or malformed.
func formatTS(ts string) string {
	sec, _, ok := strings.Cut(ts, ".")
	if !ok {
		sec = ts
	}
	unix, err := strconv.ParseInt(sec, 10, 64)
	if err != nil || unix <= 0 {
		return ""
	}
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// buildTranscript renders the full transcript: a header naming the source,
// one line block per message, and a footer with the message count and a
// back-link to the original thread. The output is deterministic for a given
// input; copying the same thread twice yields byte-identical transcripts.
func buildTranscript(sourceChannel, sourceTS string, entries []transcriptEntry, access AccessLevel) string {
	var sb strings.Builder

	backLink := slackapi.FormatLink(sourceChannel, sourceTS)
	fmt.Fprintf(&sb, ":thread: *Thread copied from <%s|this conversation>*\n", backLink)
	if caveat := access.Describe(); caveat != "" {
		sb.WriteString("_" + caveat + "_\n")
	}
	sb.WriteString("\n")

	for _, e := range entries {
		if when := formatTS(e.Timestamp); when != "" {
			fmt.Fprintf(&sb, "*%s* (%s): %s\n\n", e.Author, when, e.Text)
		} else {
			fmt.Fprintf(&sb, "*%s*: %s\n\n", e.Author, e.Text)
		}
	}

	fmt.Fprintf(&sb, "---\nTotal messages: %d\nOriginal thread: <%s|link>", len(entries), backLink)
	return sb.String()
}

// resolveMentions rewrites <@U...> mentions in a message body using the
// resolved name map. Unresolved ids are left as-is so Slack still renders
// them as live mentions.
func resolveMentions(text string, names map[string]string) string {
	return mentionPattern.ReplaceAllStringFunc(text, func(m string) string {
		id := mentionPattern.FindStringSubmatch(m)[1]
		if name, ok := names[id]; ok {
			return "@" + name
		}
		return m
	})
}

// SplitChunks splits text into pieces no longer than limit bytes, preferring
// newline boundaries. Text exactly at the limit is a single chunk; one byte
// over produces two.
func SplitChunks(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > limit {
		cut := limit
		// Back up to the last newline inside the window so messages don't
		// split mid-line. Fall back to a hard cut for a single huge line,
		// backing off continuation bytes so runes stay intact.
		if idx := strings.LastIndexByte(remaining[:limit], '\n'); idx > 0 {
			cut = idx + 1
		} else {
			for cut > 0 && remaining[cut]&0xC0 == 0x80 {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		// A window of nothing but separator newlines trims to an empty
		// chunk; skip it rather than posting empty text.
		if chunk := strings.TrimRight(remaining[:cut], "\n"); chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = remaining[cut:]
	}
	if len(remaining) > 0 {
		chunks = append(chunks, remaining)
	}
	return chunks
}
