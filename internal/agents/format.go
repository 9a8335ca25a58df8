// ABOUTME: Markdown-to-mrkdwn conversion applied to model output before posting.
// ABOUTME: Rewrites inline links and bold markers into Slack's dialect.

package agents

import (
	"regexp"
	"strings"

	"github.com/2389/slack-dispatch/internal/llm"
)

var markdownLink = regexp.MustCompile(`\[([^\]]*)\]\(([^)]+)\)`)

// FormatForSlack rewrites generated markdown into Slack mrkdwn:
// [text](url) becomes <url|text> and ** becomes *. Text without markdown
// passes through unchanged.
func FormatForSlack(text string) string {
	text = markdownLink.ReplaceAllString(text, "<$2|$1>")
	return strings.ReplaceAll(text, "**", "*")
}

func toLLMMessages(history History) []llm.Message {
	msgs := make([]llm.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: string(m.Role), Content: m.Content})
	}
	return msgs
}
