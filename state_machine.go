package auth

import "time"

// Invitation statuses form a tiny graph: PENDING is the only live state,
// everything else is terminal.
var invitationTransitions = map[InvitationStatus]map[InvitationStatus]struct{}{
	InvitationStatusPending: {
		InvitationStatusAccepted: {},
		InvitationStatusExpired:  {},
		InvitationStatusFailed:   {},
	},
}

func canTransitionInvitation(from, to InvitationStatus) bool {
	if allowed, ok := invitationTransitions[from]; ok {
		_, exists := allowed[to]
		return exists
	}
	return false
}

// EnsureInvitationTransition validates a requested status change. Attempts
// out of a terminal state report what actually blocked them: an accepted
// invitation is "already actioned", an expired one is "expired".
func EnsureInvitationTransition(from, to InvitationStatus) error {
	if from == to {
		return nil
	}
	if canTransitionInvitation(from, to) {
		return nil
	}
	switch from {
	case InvitationStatusAccepted:
		return ErrInvitationActioned
	case InvitationStatusExpired:
		return ErrInvitationExpired
	default:
		return withMeta(ErrInvalidStatusTransition, map[string]any{
			"from": from,
			"to":   to,
		})
	}
}

// EnsureActionable rejects any action against an invitation that is no
// longer PENDING, with the status-specific error.
func EnsureActionable(status InvitationStatus) error {
	switch status {
	case InvitationStatusPending:
		return nil
	case InvitationStatusAccepted:
		return ErrInvitationActioned
	case InvitationStatusExpired:
		return ErrInvitationExpired
	default:
		return withMeta(ErrInvitationActioned, map[string]any{
			"status": status,
		})
	}
}

// Task statuses: OPEN is live, HOLD is a side-state reachable from OPEN,
// COMPLETED and CLOSED are terminal.
var taskTransitions = map[TaskStatus]map[TaskStatus]struct{}{
	TaskStatusOpen: {
		TaskStatusHold:      {},
		TaskStatusCompleted: {},
		TaskStatusClosed:    {},
	},
	TaskStatusHold: {
		TaskStatusOpen:      {},
		TaskStatusCompleted: {},
		TaskStatusClosed:    {},
	},
}

// EnsureTaskTransition validates a requested task status change.
func EnsureTaskTransition(from, to TaskStatus) error {
	if from == to {
		return nil
	}
	if allowed, ok := taskTransitions[from]; ok {
		if _, exists := allowed[to]; exists {
			return nil
		}
	}
	return withMeta(ErrInvalidStatusTransition, map[string]any{
		"from": from,
		"to":   to,
	})
}

// invitationExpired reports whether a PENDING invitation is past its TTL.
func invitationExpired(sentDate *time.Time, ttl time.Duration, now time.Time) bool {
	return sentDate != nil && !now.Before(sentDate.Add(ttl))
}
