package service

import (
	"testing"
	"time"

	"returns-service/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func ts(hourOffset int) time.Time {
	return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC).Add(time.Duration(hourOffset) * time.Hour)
}

func tsPtr(hourOffset int) *time.Time {
	t := ts(hourOffset)
	return &t
}

func TestProjectTimeline_PendingHasOnlyCreated(t *testing.T) {
	ret := &model.Return{
		Status:    model.ReturnStatusPending,
		CreatedAt: ts(0),
	}

	events := ProjectTimeline(ret)

	assert.Len(t, events, 1)
	assert.Equal(t, "created", events[0].Key)
	assert.Equal(t, "Return requested", events[0].Title)
	assert.True(t, events[0].Completed)
}

func TestProjectTimeline_FullFlowIsChronological(t *testing.T) {
	amount := decimal.RequireFromString("49.99")
	ret := &model.Return{
		Status:       model.ReturnStatusCompleted,
		CreatedAt:    ts(0),
		ApprovedAt:   tsPtr(1),
		ReceivedAt:   tsPtr(2),
		InspectedAt:  tsPtr(3),
		RefundedAt:   tsPtr(4),
		RefundAmount: &amount,
	}

	events := ProjectTimeline(ret)

	keys := make([]string, 0, len(events))
	for _, e := range events {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"created", "approved", "received", "inspected", "refunded"}, keys)

	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp),
			"%s must not precede %s", events[i].Key, events[i-1].Key)
	}
}

func TestProjectTimeline_RefundTitleCarriesAmount(t *testing.T) {
	amount := decimal.RequireFromString("120.5")
	ret := &model.Return{
		Status:       model.ReturnStatusRefunded,
		CreatedAt:    ts(0),
		RefundedAt:   tsPtr(4),
		RefundAmount: &amount,
	}

	events := ProjectTimeline(ret)

	assert.Equal(t, "Refund issued (120.50)", events[len(events)-1].Title)
}

func TestProjectTimeline_RejectedUsesRejectedAt(t *testing.T) {
	ret := &model.Return{
		Status:     model.ReturnStatusRejected,
		CreatedAt:  ts(0),
		RejectedAt: tsPtr(2),
		UpdatedAt:  ts(5),
	}

	events := ProjectTimeline(ret)

	last := events[len(events)-1]
	assert.Equal(t, "rejected", last.Key)
	assert.Equal(t, ts(2), last.Timestamp)
}

func TestProjectTimeline_RejectedFallsBackToUpdatedAt(t *testing.T) {
	ret := &model.Return{
		Status:    model.ReturnStatusRejected,
		CreatedAt: ts(0),
		UpdatedAt: ts(3),
	}

	events := ProjectTimeline(ret)

	last := events[len(events)-1]
	assert.Equal(t, "rejected", last.Key)
	assert.Equal(t, ts(3), last.Timestamp)
}

func TestProjectTimeline_EqualTimestampsKeepLifecycleOrder(t *testing.T) {
	// All steps recorded in the same instant: order still follows the lifecycle.
	same := tsPtr(0)
	ret := &model.Return{
		Status:      model.ReturnStatusInspecting,
		CreatedAt:   ts(0),
		ApprovedAt:  same,
		ReceivedAt:  same,
		InspectedAt: same,
	}

	events := ProjectTimeline(ret)

	keys := make([]string, 0, len(events))
	for _, e := range events {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []string{"created", "approved", "received", "inspected"}, keys)
}

func TestProjectTimeline_Deterministic(t *testing.T) {
	ret := &model.Return{
		Status:     model.ReturnStatusReceived,
		CreatedAt:  ts(0),
		ApprovedAt: tsPtr(1),
		ReceivedAt: tsPtr(2),
	}

	first := ProjectTimeline(ret)
	second := ProjectTimeline(ret)

	assert.Equal(t, first, second)
}
