// ABOUTME: Access classification for thread transfers.
// ABOUTME: Infers whether the bot saw the full source thread or only part of it.

package transfer

import "github.com/2389/slack-dispatch/internal/slackapi"

// AccessLevel describes how much of a source thread the bot could read.
type AccessLevel string

const (
	// AccessFull means the whole thread was readable.
	AccessFull AccessLevel = "full"
	// AccessPartial means some messages were readable but the channel type
	// suggests membership limits what the bot sees.
	AccessPartial AccessLevel = "partial"
	// AccessUnknown means nothing could be read; the bot is likely not a
	// member of the source conversation.
	AccessUnknown AccessLevel = "unknown"
)

// ClassifyAccess infers the access level from what a fetch returned and the
// kind of conversation it came from. More than one message means the thread
// fetch worked; direct and group messages have unrestricted history access
// for members regardless of count. A single message from a channel is
// ambiguous: it may be the whole thread or all the bot is allowed to see.
// This is a signal for warning the caller, not a gate on the copy.
func ClassifyAccess(messageCount int, kind slackapi.Kind) AccessLevel {
	if messageCount > 1 {
		return AccessFull
	}

	switch kind {
	case slackapi.KindIM, slackapi.KindMPIM:
		return AccessFull
	case slackapi.KindPublic, slackapi.KindPrivate:
		if messageCount == 1 {
			return AccessPartial
		}
		return AccessUnknown
	default:
		return AccessUnknown
	}
}

// Describe renders the access level as a user-facing caveat. Full access
// needs no caveat and returns "".
func (a AccessLevel) Describe() string {
	switch a {
	case AccessPartial:
		return "Note: I may not have access to the complete thread; some messages could be missing."
	case AccessUnknown:
		return "I couldn't read any messages in that thread. I may not be a member of the source conversation."
	default:
		return ""
	}
}
