package service

import (
	"github.com/shopspring/decimal"

	"returns-service/internal/model"
)

// ReturnAction is one legal next step offered to the operator. Nothing
// auto-advances: each action requires an explicit confirmation, including the
// final "complete" step after a refund.
type ReturnAction struct {
	Target         model.ReturnStatus `json:"target"`
	Label          string             `json:"label"`
	Destructive    bool               `json:"destructive"`
	RequiresAmount bool               `json:"requires_amount"`
	// Pre-fill for the refund input: sum of price × quantity over the items
	SuggestedAmount *decimal.Decimal `json:"suggested_amount,omitempty"`
}

// ActionSet gathers everything the action panel may offer for a status.
type ActionSet struct {
	Transitions       []ReturnAction `json:"transitions"`
	CanAttachTracking bool           `json:"can_attach_tracking"`
	CanAppendNote     bool           `json:"can_append_note"`
}

func actionLabel(target model.ReturnStatus) string {
	switch target {
	case model.ReturnStatusApproved:
		return "Approve request"
	case model.ReturnStatusRejected:
		return "Reject request"
	case model.ReturnStatusReceived:
		return "Mark as received"
	case model.ReturnStatusInspecting:
		return "Start inspection"
	case model.ReturnStatusRefunded:
		return "Issue refund"
	case model.ReturnStatusCompleted:
		return "Complete return"
	default:
		return string(target)
	}
}

// DeriveActions computes the legal next actions for a return. This is a pure
// derivation from the transition table; the transition controller re-validates
// on dispatch, so a stale panel cannot force an illegal move.
func DeriveActions(ret *model.Return) ActionSet {
	set := ActionSet{
		Transitions:       make([]ReturnAction, 0, 2),
		CanAttachTracking: ret.Status == model.ReturnStatusApproved,
		CanAppendNote:     !ret.IsTerminal(),
	}

	for _, target := range model.NextReturnStatuses(ret.Status) {
		action := ReturnAction{
			Target:      target,
			Label:       actionLabel(target),
			Destructive: target == model.ReturnStatusRejected,
		}
		if model.RequiresRefundAmount(target) {
			suggested := ret.ItemsSubtotal()
			action.RequiresAmount = true
			action.SuggestedAmount = &suggested
		}
		set.Transitions = append(set.Transitions, action)
	}

	return set
}
