// ABOUTME: Permalink parsing and formatting for Slack archive links.
// ABOUTME: Decodes channel id and message timestamp, handling the optional thread_ts parameter.

package slackapi

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidLink indicates a URL that does not match the permalink grammar.
var ErrInvalidLink = errors.New("invalid slack link")

// ParsedLink is a decoded permalink.
type ParsedLink struct {
	ChannelID string
	MessageTS string // "seconds.micros"
	ThreadTS  string // defaults to MessageTS when the link has no thread_ts
}

// Permalink formats:
//
//	https://workspace.slack.com/archives/C1234567890/p1234567890123456
//	https://workspace.slack.com/archives/C1234567890/p1234567890123456?thread_ts=1234567890.123456
//
// The p-segment is the message timestamp with the dot removed; the final six
// digits are the microsecond part.
var (
	linkPattern     = regexp.MustCompile(`https://(?:[\w-]+\.)?slack\.com/archives/([A-Z0-9]+)/p(\d+)(\d{6})`)
	threadTSPattern = regexp.MustCompile(`thread_ts=(\d+\.\d+)`)
)

// ParseLink decodes a permalink into its channel and timestamps.
// Returns ErrInvalidLink if the URL does not match the permalink grammar.
func ParseLink(url string) (*ParsedLink, error) {
	match := linkPattern.FindStringSubmatch(url)
	if match == nil {
		return nil, ErrInvalidLink
	}

	messageTS := match[2] + "." + match[3]

	threadTS := messageTS
	if tm := threadTSPattern.FindStringSubmatch(url); tm != nil {
		threadTS = tm[1]
	}

	return &ParsedLink{
		ChannelID: match[1],
		MessageTS: messageTS,
		ThreadTS:  threadTS,
	}, nil
}

// FormatLink builds a permalink for a channel and message timestamp.
// Inverse of ParseLink for the channel id and timestamp.
func FormatLink(channelID, ts string) string {
	return fmt.Sprintf("https://app.slack.com/archives/%s/p%s", channelID, strings.Replace(ts, ".", "", 1))
}

// ExtractLinks returns every permalink found in free text, in order.
func ExtractLinks(text string) []string {
	return linkPattern.FindAllString(text, -1)
}
