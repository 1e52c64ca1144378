package service

import (
	"testing"

	"returns-service/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func targetsOf(set ActionSet) []model.ReturnStatus {
	targets := make([]model.ReturnStatus, 0, len(set.Transitions))
	for _, a := range set.Transitions {
		targets = append(targets, a.Target)
	}
	return targets
}

func TestDeriveActions_Pending(t *testing.T) {
	set := DeriveActions(&model.Return{Status: model.ReturnStatusPending})

	assert.ElementsMatch(t,
		[]model.ReturnStatus{model.ReturnStatusApproved, model.ReturnStatusRejected},
		targetsOf(set))
	assert.False(t, set.CanAttachTracking)
	assert.True(t, set.CanAppendNote)
}

func TestDeriveActions_Approved(t *testing.T) {
	set := DeriveActions(&model.Return{Status: model.ReturnStatusApproved})

	assert.Equal(t, []model.ReturnStatus{model.ReturnStatusReceived}, targetsOf(set))
	assert.True(t, set.CanAttachTracking)
	assert.True(t, set.CanAppendNote)
}

func TestDeriveActions_RejectIsDestructive(t *testing.T) {
	set := DeriveActions(&model.Return{Status: model.ReturnStatusPending})

	for _, action := range set.Transitions {
		if action.Target == model.ReturnStatusRejected {
			assert.True(t, action.Destructive)
			assert.Equal(t, "Reject request", action.Label)
		} else {
			assert.False(t, action.Destructive)
		}
	}
}

func TestDeriveActions_RefundCarriesSuggestedAmount(t *testing.T) {
	ret := &model.Return{
		Status: model.ReturnStatusInspecting,
		Items: []model.ReturnItem{
			{ProductName: "Widget", Quantity: 2, Price: decimal.RequireFromString("25.00")},
			{ProductName: "Gadget", Quantity: 1, Price: decimal.RequireFromString("9.50")},
		},
	}

	set := DeriveActions(ret)

	var refund *ReturnAction
	for i := range set.Transitions {
		if set.Transitions[i].Target == model.ReturnStatusRefunded {
			refund = &set.Transitions[i]
		}
	}

	assert.NotNil(t, refund)
	assert.True(t, refund.RequiresAmount)
	assert.NotNil(t, refund.SuggestedAmount)
	assert.True(t, refund.SuggestedAmount.Equal(decimal.RequireFromString("59.50")))
	assert.Equal(t, "Issue refund", refund.Label)
}

func TestDeriveActions_RefundedOffersOnlyComplete(t *testing.T) {
	// Nothing auto-advances after a refund; closing is its own explicit step.
	set := DeriveActions(&model.Return{Status: model.ReturnStatusRefunded})

	assert.Equal(t, []model.ReturnStatus{model.ReturnStatusCompleted}, targetsOf(set))
	assert.Equal(t, "Complete return", set.Transitions[0].Label)
	assert.False(t, set.Transitions[0].RequiresAmount)
}

func TestDeriveActions_TerminalStatusesOfferNothing(t *testing.T) {
	for _, status := range []model.ReturnStatus{model.ReturnStatusCompleted, model.ReturnStatusRejected} {
		set := DeriveActions(&model.Return{Status: status})

		assert.Empty(t, set.Transitions, "status %s", status)
		assert.False(t, set.CanAttachTracking)
		assert.False(t, set.CanAppendNote)
	}
}

func TestItemsSubtotal_Empty(t *testing.T) {
	ret := &model.Return{Status: model.ReturnStatusInspecting}

	assert.True(t, ret.ItemsSubtotal().IsZero())
}
