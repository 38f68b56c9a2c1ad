package chat

import (
	"sort"
	"strings"

	"zapdesk/internal/domain"
)

// Tab is one of the three work queues of the inbox.
type Tab string

const (
	TabTodo    Tab = "todo"
	TabWaiting Tab = "waiting"
	TabClosed  Tab = "closed"
)

// ParseTab validates a tab name coming from the outside.
func ParseTab(s string) (Tab, bool) {
	switch Tab(s) {
	case TabTodo, TabWaiting, TabClosed:
		return Tab(s), true
	}
	return "", false
}

// Matches reports whether a chat belongs to the given tab from the
// perspective of the given agent. Closed chats appear only in the closed
// tab; non-closed chats split between awaiting-triage (no department, no
// assignee) and to-do (claimed by this agent, or already departmented).
func Matches(chat *domain.Chat, agentID string, tab Tab) bool {
	if chat == nil {
		return false
	}
	if chat.Status == domain.ChatClosed {
		return tab == TabClosed
	}
	switch tab {
	case TabWaiting:
		return chat.DepartmentID == "" && chat.AssignedTo == ""
	case TabTodo:
		return chat.AssignedTo == agentID && chat.AssignedTo != "" || chat.DepartmentID != ""
	default:
		return false
	}
}

// matchesSearch applies the case-insensitive substring filter over the
// contact name, contact number, and client code.
func matchesSearch(chat *domain.Chat, search string) bool {
	if search == "" {
		return true
	}
	q := strings.ToLower(search)
	return strings.Contains(strings.ToLower(chat.ContactName), q) ||
		strings.Contains(strings.ToLower(chat.ContactNumber), q) ||
		strings.Contains(strings.ToLower(chat.ClientCode), q)
}

// FilterChats returns the chats visible in a tab for an agent, search
// filter applied before tab membership, ordered newest activity first.
// The sort is stable so equal timestamps keep their prior order.
func FilterChats(chats []*domain.Chat, agentID string, tab Tab, search string) []*domain.Chat {
	out := make([]*domain.Chat, 0, len(chats))
	for _, c := range chats {
		if !matchesSearch(c, search) {
			continue
		}
		if Matches(c, agentID, tab) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime)
	})
	return out
}
