package service

import (
	"context"
	"encoding/json"
	"testing"

	"returns-service/internal/model"
	"returns-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockReturnRepository is a mock implementation of repository.ReturnRepository
type MockReturnRepository struct {
	mock.Mock
}

var _ repository.ReturnRepository = (*MockReturnRepository)(nil)

func (m *MockReturnRepository) Create(ctx context.Context, ret *model.Return) error {
	args := m.Called(ctx, ret)
	if args.Error(0) == nil && ret.ID == uuid.Nil {
		ret.ID = uuid.New()
		ret.RMANumber = "RMA-20260310-abc123"
	}
	return args.Error(0)
}

func (m *MockReturnRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Return, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Return), args.Error(1)
}

func (m *MockReturnRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Return, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Return), args.Error(1)
}

func (m *MockReturnRepository) FindByRMA(ctx context.Context, rmaNumber string) (*model.Return, error) {
	args := m.Called(ctx, rmaNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Return), args.Error(1)
}

func (m *MockReturnRepository) List(ctx context.Context, filter repository.ReturnFilter) ([]model.Return, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.Return), args.Get(1).(int64), args.Error(2)
}

func (m *MockReturnRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockReturnRepository) Stats(ctx context.Context) (*repository.ReturnStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ReturnStats), args.Error(1)
}

// MockOrderRepository is a mock implementation of repository.OrderRepository
type MockOrderRepository struct {
	mock.Mock
}

var _ repository.OrderRepository = (*MockOrderRepository)(nil)

func (m *MockOrderRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	args := m.Called(ctx, orderNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

// MockAuditRepository is a mock implementation of repository.AuditRepository
type MockAuditRepository struct {
	mock.Mock
}

var _ repository.AuditRepository = (*MockAuditRepository)(nil)

func (m *MockAuditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) List(ctx context.Context, filter repository.AuditFilter) ([]model.AuditLog, int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.AuditLog), args.Get(1).(int64), args.Error(2)
}

// passthroughTxManager runs the callback on the same context, without a real
// transaction. Good enough here: the tests assert on what was written, not on
// commit behavior.
type passthroughTxManager struct{}

func (passthroughTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// captureBroadcaster records every pushed event for assertions.
type captureBroadcaster struct {
	messages [][]byte
}

func (b *captureBroadcaster) Broadcast(message []byte) bool {
	b.messages = append(b.messages, message)
	return true
}

func (b *captureBroadcaster) lastEvent(t *testing.T) ReturnEvent {
	t.Helper()
	if len(b.messages) == 0 {
		t.Fatal("no events broadcast")
	}
	var event ReturnEvent
	err := json.Unmarshal(b.messages[len(b.messages)-1], &event)
	assert.NoError(t, err)
	return event
}

type serviceFixture struct {
	returns *MockReturnRepository
	orders  *MockOrderRepository
	audits  *MockAuditRepository
	hub     *captureBroadcaster
	service ReturnService
}

func newFixture() *serviceFixture {
	f := &serviceFixture{
		returns: new(MockReturnRepository),
		orders:  new(MockOrderRepository),
		audits:  new(MockAuditRepository),
		hub:     &captureBroadcaster{},
	}
	f.service = NewReturnService(f.returns, f.orders, f.audits, passthroughTxManager{}, f.hub)
	return f
}

func pendingReturn() *model.Return {
	return &model.Return{
		ID:        uuid.New(),
		RMANumber: "RMA-20260310-abc123",
		Status:    model.ReturnStatusPending,
		Reason:    "Arrived broken",
	}
}

// ===========================================
// Transition tests
// ===========================================

func TestTransition_ApproveSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn()
	approved := *ret
	approved.Status = model.ReturnStatusApproved

	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)
	f.returns.On("UpdateFields", ctx, ret.ID, mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["status"] == model.ReturnStatusApproved && fields["approved_at"] != nil
	})).Return(nil)
	f.audits.On("Log", ctx, mock.MatchedBy(func(entry *model.AuditLog) bool {
		return entry.Action == model.ActionTransitionReturn && entry.EntityID == ret.ID.String()
	})).Return(nil)
	f.returns.On("FindByID", ctx, ret.ID).Return(&approved, nil)

	result, err := f.service.Transition(ctx, uuid.New().String(), ret.ID.String(), TransitionRequest{
		Target: model.ReturnStatusApproved,
	})

	assert.NoError(t, err)
	assert.Equal(t, model.ReturnStatusApproved, result.Status)

	event := f.hub.lastEvent(t)
	assert.Equal(t, "return.status_changed", event.Event)
	assert.Equal(t, string(model.ReturnStatusPending), event.Data["from"])
	assert.Equal(t, string(model.ReturnStatusApproved), event.Data["to"])

	f.returns.AssertExpectations(t)
	f.audits.AssertExpectations(t)
}

func TestTransition_IllegalStepRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn()
	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)

	_, err := f.service.Transition(ctx, "", ret.ID.String(), TransitionRequest{
		Target: model.ReturnStatusRefunded,
	})

	var transitionErr *InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
	assert.Equal(t, model.ReturnStatusPending, transitionErr.From)
	assert.Equal(t, model.ReturnStatusRefunded, transitionErr.To)

	// Nothing was written and nothing was broadcast.
	f.returns.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	f.audits.AssertNotCalled(t, "Log", mock.Anything, mock.Anything)
	assert.Empty(t, f.hub.messages)
}

func TestTransition_TerminalStatusRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn()
	ret.Status = model.ReturnStatusCompleted
	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)

	_, err := f.service.Transition(ctx, "", ret.ID.String(), TransitionRequest{
		Target: model.ReturnStatusApproved,
	})

	var transitionErr *InvalidTransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestTransition_RefundRequiresPositiveAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn()
	ret.Status = model.ReturnStatusInspecting
	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)

	// Missing amount
	_, err := f.service.Transition(ctx, "", ret.ID.String(), TransitionRequest{
		Target: model.ReturnStatusRefunded,
	})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "refund_amount", validationErr.Field)

	// Zero amount
	zero := decimal.Zero
	_, err = f.service.Transition(ctx, "", ret.ID.String(), TransitionRequest{
		Target:       model.ReturnStatusRefunded,
		RefundAmount: &zero,
	})
	assert.ErrorAs(t, err, &validationErr)

	f.returns.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestTransition_RefundSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn()
	ret.Status = model.ReturnStatusInspecting
	amount := decimal.RequireFromString("49.99")

	refunded := *ret
	refunded.Status = model.ReturnStatusRefunded
	refunded.RefundAmount = &amount

	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)
	f.returns.On("UpdateFields", ctx, ret.ID, mock.MatchedBy(func(fields map[string]interface{}) bool {
		got, ok := fields["refund_amount"].(decimal.Decimal)
		return ok && got.Equal(amount) &&
			fields["status"] == model.ReturnStatusRefunded &&
			fields["refunded_at"] != nil
	})).Return(nil)
	f.audits.On("Log", ctx, mock.Anything).Return(nil)
	f.returns.On("FindByID", ctx, ret.ID).Return(&refunded, nil)

	result, err := f.service.Transition(ctx, "", ret.ID.String(), TransitionRequest{
		Target:       model.ReturnStatusRefunded,
		RefundAmount: &amount,
	})

	assert.NoError(t, err)
	assert.Equal(t, model.ReturnStatusRefunded, result.Status)
	f.returns.AssertExpectations(t)
}

func TestTransition_NotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	id := uuid.New()
	f.returns.On("FindByIDForUpdate", ctx, id).Return(nil, gorm.ErrRecordNotFound)

	_, err := f.service.Transition(ctx, "", id.String(), TransitionRequest{
		Target: model.ReturnStatusApproved,
	})

	var notFoundErr *NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
}

func TestTransition_MalformedID(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.service.Transition(ctx, "", "not-a-uuid", TransitionRequest{
		Target: model.ReturnStatusApproved,
	})

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	f.returns.AssertNotCalled(t, "FindByIDForUpdate", mock.Anything, mock.Anything)
}

func TestTransition_RejectWithNote(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn()
	ret.Notes = "first note"

	rejected := *ret
	rejected.Status = model.ReturnStatusRejected

	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)
	f.returns.On("UpdateFields", ctx, ret.ID, mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["status"] == model.ReturnStatusRejected &&
			fields["rejected_at"] != nil &&
			fields["notes"] == "first note\nitems missing from box"
	})).Return(nil)
	f.audits.On("Log", ctx, mock.Anything).Return(nil)
	f.returns.On("FindByID", ctx, ret.ID).Return(&rejected, nil)

	_, err := f.service.Transition(ctx, "", ret.ID.String(), TransitionRequest{
		Target: model.ReturnStatusRejected,
		Note:   "items missing from box",
	})

	assert.NoError(t, err)
	f.returns.AssertExpectations(t)
}

// ===========================================
// CreateReturn tests
// ===========================================

func TestCreateReturn_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	f.returns.On("Create", ctx, mock.MatchedBy(func(ret *model.Return) bool {
		return ret.Status == model.ReturnStatusPending && len(ret.Items) == 1
	})).Return(nil)
	f.audits.On("Log", ctx, mock.MatchedBy(func(entry *model.AuditLog) bool {
		return entry.Action == model.ActionCreateReturn
	})).Return(nil)

	result, err := f.service.CreateReturn(ctx, uuid.New().String(), CreateReturnRequest{
		CustomerName:   "Jordan Mills",
		CustomerEmail:  "jordan@example.com",
		Reason:         "Arrived broken",
		ReasonCategory: string(model.ReasonDefective),
		RefundMethod:   string(model.RefundMethodOriginalPayment),
		Items: []ReturnItemRequest{
			{ProductName: "Widget", Quantity: 2, Price: decimal.RequireFromString("25.00")},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, model.ReturnStatusPending, result.Status)
	assert.NotEmpty(t, result.RMANumber)

	event := f.hub.lastEvent(t)
	assert.Equal(t, "return.created", event.Event)

	f.returns.AssertExpectations(t)
	f.audits.AssertExpectations(t)
}

func TestCreateReturn_LinkedOrderFillsCustomer(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	order := &model.Order{
		ID:            uuid.New(),
		CustomerName:  "Jordan Mills",
		CustomerEmail: "jordan@example.com",
	}
	f.orders.On("FindByIDWithItems", ctx, order.ID).Return(order, nil)
	f.returns.On("Create", ctx, mock.MatchedBy(func(ret *model.Return) bool {
		return ret.OrderID != nil && *ret.OrderID == order.ID &&
			ret.CustomerName == "Jordan Mills" &&
			ret.CustomerEmail == "jordan@example.com"
	})).Return(nil)
	f.audits.On("Log", ctx, mock.Anything).Return(nil)

	_, err := f.service.CreateReturn(ctx, "", CreateReturnRequest{
		OrderID:      order.ID.String(),
		Reason:       "Wrong color",
		RefundMethod: string(model.RefundMethodStoreCredit),
		Items: []ReturnItemRequest{
			{ProductName: "Widget", Quantity: 1, Price: decimal.RequireFromString("25.00")},
		},
	})

	assert.NoError(t, err)
	f.orders.AssertExpectations(t)
	f.returns.AssertExpectations(t)
}

func TestCreateReturn_UnknownOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	orderID := uuid.New()
	f.orders.On("FindByIDWithItems", ctx, orderID).Return(nil, gorm.ErrRecordNotFound)

	_, err := f.service.CreateReturn(ctx, "", CreateReturnRequest{
		OrderID:      orderID.String(),
		Reason:       "Wrong color",
		RefundMethod: string(model.RefundMethodStoreCredit),
		Items: []ReturnItemRequest{
			{ProductName: "Widget", Quantity: 1, Price: decimal.RequireFromString("25.00")},
		},
	})

	var notFoundErr *NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
	f.returns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// ===========================================
// AttachTracking tests
// ===========================================

func TestAttachTracking_OnlyWhileApproved(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn() // status pending, not approved
	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)

	_, err := f.service.AttachTracking(ctx, "", ret.ID.String(), AttachTrackingRequest{
		TrackingNumber: "1Z999AA10123456784",
		Carrier:        "UPS",
	})

	var stateErr *InvalidStateError
	assert.ErrorAs(t, err, &stateErr)
	assert.Equal(t, model.ReturnStatusPending, stateErr.Status)
	f.returns.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
}

func TestAttachTracking_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn()
	ret.Status = model.ReturnStatusApproved

	updated := *ret
	updated.TrackingNumber = "1Z999AA10123456784"
	updated.Carrier = "UPS"

	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)
	f.returns.On("UpdateFields", ctx, ret.ID, mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["tracking_number"] == "1Z999AA10123456784" && fields["carrier"] == "UPS"
	})).Return(nil)
	f.audits.On("Log", ctx, mock.MatchedBy(func(entry *model.AuditLog) bool {
		return entry.Action == model.ActionAttachTracking
	})).Return(nil)
	f.returns.On("FindByID", ctx, ret.ID).Return(&updated, nil)

	result, err := f.service.AttachTracking(ctx, "", ret.ID.String(), AttachTrackingRequest{
		TrackingNumber: "1Z999AA10123456784",
		Carrier:        "UPS",
	})

	assert.NoError(t, err)
	assert.Equal(t, "1Z999AA10123456784", result.TrackingNumber)

	event := f.hub.lastEvent(t)
	assert.Equal(t, "return.tracking_attached", event.Event)
}

func TestAttachTracking_RepeatIsNoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn()
	ret.Status = model.ReturnStatusApproved
	ret.TrackingNumber = "1Z999AA10123456784"
	ret.Carrier = "UPS"

	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)
	f.returns.On("FindByID", ctx, ret.ID).Return(ret, nil)

	result, err := f.service.AttachTracking(ctx, "", ret.ID.String(), AttachTrackingRequest{
		TrackingNumber: "1Z999AA10123456784",
		Carrier:        "UPS",
	})

	assert.NoError(t, err)
	assert.Equal(t, "1Z999AA10123456784", result.TrackingNumber)

	f.returns.AssertNotCalled(t, "UpdateFields", mock.Anything, mock.Anything, mock.Anything)
	f.audits.AssertNotCalled(t, "Log", mock.Anything, mock.Anything)
	assert.Empty(t, f.hub.messages)
}

// ===========================================
// AppendNote tests
// ===========================================

func TestAppendNote_RejectedOnTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn()
	ret.Status = model.ReturnStatusRejected
	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)

	_, err := f.service.AppendNote(ctx, "", ret.ID.String(), "too late")

	var stateErr *InvalidStateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestAppendNote_EmptyTextRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	_, err := f.service.AppendNote(ctx, "", uuid.New().String(), "   ")

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
	f.returns.AssertNotCalled(t, "FindByIDForUpdate", mock.Anything, mock.Anything)
}

func TestAppendNote_AppendsWithNewline(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	ret := pendingReturn()
	ret.Notes = "called the customer"

	f.returns.On("FindByIDForUpdate", ctx, ret.ID).Return(ret, nil)
	f.returns.On("UpdateFields", ctx, ret.ID, mock.MatchedBy(func(fields map[string]interface{}) bool {
		return fields["notes"] == "called the customer\nphotos requested"
	})).Return(nil)
	f.audits.On("Log", ctx, mock.MatchedBy(func(entry *model.AuditLog) bool {
		return entry.Action == model.ActionAppendNote
	})).Return(nil)
	f.returns.On("FindByID", ctx, ret.ID).Return(ret, nil)

	_, err := f.service.AppendNote(ctx, "", ret.ID.String(), "photos requested")

	assert.NoError(t, err)
	f.returns.AssertExpectations(t)
}
