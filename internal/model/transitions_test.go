package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []ReturnStatus{
	ReturnStatusPending,
	ReturnStatusApproved,
	ReturnStatusReceived,
	ReturnStatusInspecting,
	ReturnStatusRefunded,
	ReturnStatusCompleted,
	ReturnStatusRejected,
}

func TestCanTransitionReturnStatus_AllowedSteps(t *testing.T) {
	allowed := []struct {
		from ReturnStatus
		to   ReturnStatus
	}{
		{ReturnStatusPending, ReturnStatusApproved},
		{ReturnStatusPending, ReturnStatusRejected},
		{ReturnStatusApproved, ReturnStatusReceived},
		{ReturnStatusReceived, ReturnStatusInspecting},
		{ReturnStatusInspecting, ReturnStatusRefunded},
		{ReturnStatusInspecting, ReturnStatusRejected},
		{ReturnStatusRefunded, ReturnStatusCompleted},
	}

	for _, tc := range allowed {
		assert.True(t, CanTransitionReturnStatus(tc.from, tc.to),
			"%s -> %s should be allowed", tc.from, tc.to)
	}
}

func TestCanTransitionReturnStatus_EverythingElseDenied(t *testing.T) {
	// Walk the full from×to grid; anything not in the table is denied.
	allowed := map[ReturnStatus]map[ReturnStatus]bool{}
	for from, successors := range ValidReturnTransitions {
		allowed[from] = map[ReturnStatus]bool{}
		for _, to := range successors {
			allowed[from][to] = true
		}
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if allowed[from][to] {
				continue
			}
			assert.False(t, CanTransitionReturnStatus(from, to),
				"%s -> %s should be denied", from, to)
		}
	}
}

func TestCanTransitionReturnStatus_NoSelfLoops(t *testing.T) {
	for _, status := range allStatuses {
		assert.False(t, CanTransitionReturnStatus(status, status))
	}
}

func TestCanTransitionReturnStatus_UnknownStatus(t *testing.T) {
	assert.False(t, CanTransitionReturnStatus(ReturnStatus("shipped"), ReturnStatusApproved))
	assert.False(t, CanTransitionReturnStatus(ReturnStatusPending, ReturnStatus("shipped")))
}

func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, IsTerminalStatus(ReturnStatusCompleted))
	assert.True(t, IsTerminalStatus(ReturnStatusRejected))

	for _, status := range []ReturnStatus{
		ReturnStatusPending,
		ReturnStatusApproved,
		ReturnStatusReceived,
		ReturnStatusInspecting,
		ReturnStatusRefunded,
	} {
		assert.False(t, IsTerminalStatus(status), "%s should not be terminal", status)
	}

	// Unknown statuses are not terminal, they are invalid.
	assert.False(t, IsTerminalStatus(ReturnStatus("shipped")))
}

func TestNextReturnStatuses(t *testing.T) {
	assert.ElementsMatch(t,
		[]ReturnStatus{ReturnStatusApproved, ReturnStatusRejected},
		NextReturnStatuses(ReturnStatusPending))
	assert.ElementsMatch(t,
		[]ReturnStatus{ReturnStatusCompleted},
		NextReturnStatuses(ReturnStatusRefunded))
	assert.Empty(t, NextReturnStatuses(ReturnStatusCompleted))
	assert.Empty(t, NextReturnStatuses(ReturnStatusRejected))
}

func TestRequiresRefundAmount(t *testing.T) {
	assert.True(t, RequiresRefundAmount(ReturnStatusRefunded))

	for _, status := range allStatuses {
		if status == ReturnStatusRefunded {
			continue
		}
		assert.False(t, RequiresRefundAmount(status))
	}
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Pending Review", ReturnStatusPending.DisplayName())
	assert.Equal(t, "Under Inspection", ReturnStatusInspecting.DisplayName())

	// Unknown statuses fall back to the raw value
	assert.Equal(t, "shipped", ReturnStatus("shipped").DisplayName())
}
