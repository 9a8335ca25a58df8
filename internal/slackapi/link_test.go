// ABOUTME: Tests for permalink parsing and formatting.
// ABOUTME: Validates the permalink grammar, thread_ts handling, and the round-trip property.

package slackapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLink_Basic(t *testing.T) {
	link, err := ParseLink("https://myworkspace.slack.com/archives/C1234567890/p1234567890123456")
	require.NoError(t, err)

	assert.Equal(t, "C1234567890", link.ChannelID)
	assert.Equal(t, "1234567890.123456", link.MessageTS)
	// thread_ts absent: defaults to the message timestamp
	assert.Equal(t, "1234567890.123456", link.ThreadTS)
}

func TestParseLink_WithThreadTS(t *testing.T) {
	link, err := ParseLink("https://myworkspace.slack.com/archives/C1234567890/p1699999999000001?thread_ts=1699999990.000123")
	require.NoError(t, err)

	assert.Equal(t, "C1234567890", link.ChannelID)
	assert.Equal(t, "1699999999.000001", link.MessageTS)
	assert.Equal(t, "1699999990.000123", link.ThreadTS)
}

func TestParseLink_BareHost(t *testing.T) {
	// Links formatted by FormatLink carry no workspace subdomain
	link, err := ParseLink("https://app.slack.com/archives/C0AB12CD3/p1600000000654321")
	require.NoError(t, err)
	assert.Equal(t, "C0AB12CD3", link.ChannelID)
}

func TestParseLink_Invalid(t *testing.T) {
	invalid := []string{
		"",
		"not a link",
		"https://example.com/archives/C123/p1234567890123456",
		"https://myworkspace.slack.com/archives/C1234567890",
		"https://myworkspace.slack.com/archives/C1234567890/1234567890123456",
		"https://myworkspace.slack.com/archives/c1234567890/p1234567890123456", // lowercase channel
	}

	for _, url := range invalid {
		_, err := ParseLink(url)
		assert.ErrorIs(t, err, ErrInvalidLink, "url %q should be invalid", url)
	}
}

func TestLinkRoundTrip(t *testing.T) {
	// parseLink(formatLink(channel, ts)) recovers channel and timestamp
	// to microsecond precision.
	cases := []struct {
		channel string
		ts      string
	}{
		{"C1234567890", "1234567890.123456"},
		{"C0AB12CD3", "1600000000.000001"},
		{"G987654321", "1699999999.999999"},
		{"D11111111", "1000000000.000000"},
	}

	for _, tc := range cases {
		link, err := ParseLink(FormatLink(tc.channel, tc.ts))
		require.NoError(t, err, "round trip for %s %s", tc.channel, tc.ts)
		assert.Equal(t, tc.channel, link.ChannelID)
		assert.Equal(t, tc.ts, link.MessageTS)
	}
}

func TestExtractLinks(t *testing.T) {
	text := "copy thread from https://ws.slack.com/archives/C111AAA22/p1234567890123456 " +
		"to https://ws.slack.com/archives/C333BBB44/p1234567891654321 please"

	links := ExtractLinks(text)
	require.Len(t, links, 2)
	assert.Contains(t, links[0], "C111AAA22")
	assert.Contains(t, links[1], "C333BBB44")
}

func TestExtractLinks_None(t *testing.T) {
	assert.Empty(t, ExtractLinks("no links here"))
}
