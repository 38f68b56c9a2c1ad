package chat

import "errors"

// Error taxonomy. Targeting and dispatch failures are operator-facing and
// scoped to a single send; invalid-event errors are no-ops that leave the
// snapshot untouched. None of them may affect other chats.
var (
	// ErrNoValidNumber means no dialable phone number could be resolved
	// for the chat. The send is blocked before any mutation.
	ErrNoValidNumber = errors.New("no valid phone number for this conversation; wait for contact sync or check the stored number")

	// ErrDispatchFailed means the provider rejected or failed the send.
	// The optimistic message stays visible, marked ERROR.
	ErrDispatchFailed = errors.New("message could not be delivered to the provider; re-send when the connection recovers")

	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found in chat")
	ErrChatClosed      = errors.New("chat is closed")

	// ErrChatLocked means another agent currently holds the chat; only the
	// assignee or an admin may act on it.
	ErrChatLocked = errors.New("chat is assigned to another agent")

	ErrUnknownDepartment   = errors.New("unknown department")
	ErrUnknownWorkflow     = errors.New("unknown workflow")
	ErrUnknownWorkflowStep = errors.New("unknown workflow step")
	ErrNoActiveWorkflow    = errors.New("chat has no active workflow")

	ErrInvalidEvent = errors.New("invalid event")
)
