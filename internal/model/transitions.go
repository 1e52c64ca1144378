package model

// ValidReturnTransitions defines the forward-only transition table for
// ReturnStatus.
// Flow: pending → approved → received → inspecting → refunded → completed.
// rejected is reachable from pending (review denied) and inspecting
// (items failed inspection). completed and rejected are terminal.
var ValidReturnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnStatusPending:    {ReturnStatusApproved, ReturnStatusRejected},
	ReturnStatusApproved:   {ReturnStatusReceived},
	ReturnStatusReceived:   {ReturnStatusInspecting},
	ReturnStatusInspecting: {ReturnStatusRefunded, ReturnStatusRejected},
	ReturnStatusRefunded:   {ReturnStatusCompleted},
	ReturnStatusCompleted:  {},
	ReturnStatusRejected:   {},
}

// CanTransitionReturnStatus checks if a transition from one status to another is valid
func CanTransitionReturnStatus(from, to ReturnStatus) bool {
	successors, exists := ValidReturnTransitions[from]
	if !exists {
		return false
	}
	for _, s := range successors {
		if s == to {
			return true
		}
	}
	return false
}

// NextReturnStatuses returns the list of valid next statuses for a return
func NextReturnStatuses(current ReturnStatus) []ReturnStatus {
	return ValidReturnTransitions[current]
}

// IsTerminalStatus checks if the status permits no further transitions
func IsTerminalStatus(status ReturnStatus) bool {
	successors, exists := ValidReturnTransitions[status]
	return exists && len(successors) == 0
}

// RequiresRefundAmount reports whether entering the target status needs a
// positive refund amount in the transition payload.
func RequiresRefundAmount(target ReturnStatus) bool {
	return target == ReturnStatusRefunded
}

// DisplayName returns a human-readable name for the return status
func (s ReturnStatus) DisplayName() string {
	switch s {
	case ReturnStatusPending:
		return "Pending Review"
	case ReturnStatusApproved:
		return "Approved"
	case ReturnStatusReceived:
		return "Package Received"
	case ReturnStatusInspecting:
		return "Under Inspection"
	case ReturnStatusRefunded:
		return "Refunded"
	case ReturnStatusCompleted:
		return "Completed"
	case ReturnStatusRejected:
		return "Rejected"
	default:
		return string(s)
	}
}
