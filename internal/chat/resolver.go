package chat

import (
	"strings"

	"zapdesk/internal/domain"
)

// Phone number resolution. Provider identifiers are not reliably phone
// numbers: group ids, broadcast-list ids, and internal placeholders share
// the same shape as real numbers. The resolver rejects look-alikes and
// prefers the most complete real signal, trying structural evidence (the
// chat id) before incidentally-observed message metadata, with the stored
// contact number as last resort.

const (
	minPhoneDigits = 10
	maxPhoneDigits = 14
)

const groupDomain = "g.us"

// placeholder prefixes for internally-generated identifiers: "chat_" for
// locally created conversations, "cmin_" for contact imports.
var placeholderPrefixes = []string{"chat_", "cmin_"}

func isPlaceholder(id string) bool {
	for _, p := range placeholderPrefixes {
		if strings.HasPrefix(id, p) {
			return true
		}
	}
	return false
}

// isGroupOrBroadcast reports whether a JID domain addresses a group or a
// broadcast list rather than an individual contact.
func isGroupOrBroadcast(domainPart string) bool {
	return domainPart == groupDomain || strings.Contains(domainPart, "broadcast")
}

// splitJID splits a provider-address-style identifier into local part and
// domain. ok is false when the id carries no "@" domain.
func splitJID(id string) (local, domainPart string, ok bool) {
	at := strings.LastIndex(id, "@")
	if at <= 0 || at == len(id)-1 {
		return "", "", false
	}
	return id[:at], id[at+1:], true
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isPureDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func containsLetter(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

func validDigitCount(n int) bool {
	return n >= minPhoneDigits && n <= maxPhoneDigits
}

// ResolveNumber derives the canonical dialable phone number for a chat.
// It returns a digit-only string, or "" when no usable number exists, in
// which case the caller must block the send.
//
// Candidates are considered in order of structural trust; among valid
// candidates a longer digit string wins, since it is the more complete
// form (typically carrying the country code).
func ResolveNumber(chat *domain.Chat) string {
	if chat == nil {
		return ""
	}

	best := ""

	// Stage 1: individual JID-style chat id.
	if local, dom, ok := splitJID(chat.ID); ok && !isGroupOrBroadcast(dom) && !isPlaceholder(chat.ID) {
		if d := digitsOnly(local); validDigitCount(len(d)) {
			best = d
		}
	}

	// Stage 2: newest-first scan of message author addresses. Only a
	// strictly longer valid candidate displaces the current best.
	for i := len(chat.Messages) - 1; i >= 0; i-- {
		author := chat.Messages[i].AuthorJID
		if author == "" {
			continue
		}
		if _, dom, ok := splitJID(author); ok && isGroupOrBroadcast(dom) {
			continue
		}
		d := digitsOnly(author)
		if validDigitCount(len(d)) && len(d) > len(best) {
			best = d
			break
		}
	}

	// Stage 3: stored contact number, unless it is lettered, a
	// placeholder, or too short to be real.
	if num := chat.ContactNumber; num != "" && !containsLetter(num) && !isPlaceholder(num) {
		if d := digitsOnly(num); len(d) >= minPhoneDigits && len(d) > len(best) {
			best = d
		}
	}

	// Stage 4: numeric local part of the chat id, even without a trusted
	// domain, when nothing better was found.
	if best == "" && !isPlaceholder(chat.ID) {
		local := chat.ID
		if l, _, ok := splitJID(chat.ID); ok {
			local = l
		}
		if isPureDigits(local) && validDigitCount(len(local)) {
			best = local
		}
	}

	// Stage 5: last resort, the stored contact number digit-stripped.
	if best == "" {
		if num := chat.ContactNumber; num != "" && !isPlaceholder(num) {
			if d := digitsOnly(num); isPureDigits(d) && len(d) >= minPhoneDigits && !containsLetter(num) {
				best = d
			}
		}
	}

	// Too short is invalid; too long is likely a broadcast-list id.
	if !validDigitCount(len(best)) {
		return ""
	}
	return best
}
