package service

import (
	"fmt"
	"sort"
	"time"

	"returns-service/internal/model"
)

// TimelineEvent is one row of the return history view.
type TimelineEvent struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Completed bool      `json:"completed"`
}

// lifecycleRank breaks timestamp ties in the fixed lifecycle order.
var lifecycleRank = map[string]int{
	"created":   0,
	"approved":  1,
	"received":  2,
	"inspected": 3,
	"refunded":  4,
	"rejected":  5,
}

// ProjectTimeline derives the display timeline from an entity snapshot. Pure
// function: no mutation, no I/O, and calling it twice on the same snapshot
// yields identical output. The created event is always present; the others
// appear only once their timestamp has been set by a transition.
func ProjectTimeline(ret *model.Return) []TimelineEvent {
	events := []TimelineEvent{
		{Key: "created", Title: "Return requested", Timestamp: ret.CreatedAt, Completed: true},
	}

	if ret.ApprovedAt != nil {
		events = append(events, TimelineEvent{
			Key: "approved", Title: "Request approved", Timestamp: *ret.ApprovedAt, Completed: true,
		})
	}
	if ret.ReceivedAt != nil {
		events = append(events, TimelineEvent{
			Key: "received", Title: "Package received", Timestamp: *ret.ReceivedAt, Completed: true,
		})
	}
	if ret.InspectedAt != nil {
		events = append(events, TimelineEvent{
			Key: "inspected", Title: "Inspection started", Timestamp: *ret.InspectedAt, Completed: true,
		})
	}
	if ret.RefundedAt != nil {
		title := "Refund issued"
		if ret.RefundAmount != nil {
			title = fmt.Sprintf("Refund issued (%s)", ret.RefundAmount.StringFixed(2))
		}
		events = append(events, TimelineEvent{
			Key: "refunded", Title: title, Timestamp: *ret.RefundedAt, Completed: true,
		})
	}
	if ret.Status == model.ReturnStatusRejected {
		ts := ret.UpdatedAt
		if ret.RejectedAt != nil {
			ts = *ret.RejectedAt
		}
		events = append(events, TimelineEvent{
			Key: "rejected", Title: "Request rejected", Timestamp: ts, Completed: true,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return lifecycleRank[events[i].Key] < lifecycleRank[events[j].Key]
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events
}
