// Package convo implements the conversation abstraction: the Private
// and Inbox variants, deterministic conversation ids, and the registry
// that routes inbound envelopes to live conversations.
package convo

import (
	"sort"
	"strings"
)

const (
	privatePrefix = "/private/"
	inboxPrefix   = "/inbox/"
)

// PrivateTopic derives the conversation id for a private conversation.
// Addresses are sorted first, so both peers compute the same id
// independently and no negotiation round-trip is needed.
func PrivateTopic(addrs ...string) string {
	sorted := append([]string(nil), addrs...)
	sort.Strings(sorted)
	return privatePrefix + strings.Join(sorted, "|")
}

// InboxTopic derives the inbox conversation id for an address.
func InboxTopic(addr string) string {
	return inboxPrefix + addr
}

// IsInboxTopic reports whether an id names an inbox conversation.
func IsInboxTopic(id string) bool {
	return strings.HasPrefix(id, inboxPrefix)
}
