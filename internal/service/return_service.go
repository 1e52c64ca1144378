package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"returns-service/internal/model"
	"returns-service/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// --- DTOs ---

type ReturnItemRequest struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name" binding:"required"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity" binding:"required,gt=0"`
	Price       decimal.Decimal `json:"price" binding:"required"`
}

type CreateReturnRequest struct {
	OrderID        string              `json:"order_id"` // Optional: link to an existing order
	CustomerName   string              `json:"customer_name"`
	CustomerEmail  string              `json:"customer_email" binding:"omitempty,email"`
	Reason         string              `json:"reason" binding:"required"`
	ReasonCategory string              `json:"reason_category" binding:"omitempty,oneof=defective wrong_item not_as_described changed_mind damaged_shipping other"`
	Description    string              `json:"description"`
	RefundMethod   string              `json:"refund_method" binding:"required,oneof=original_payment store_credit exchange"`
	Items          []ReturnItemRequest `json:"items" binding:"required,min=1,dive"`
}

type TransitionRequest struct {
	Target model.ReturnStatus `json:"target" binding:"required"`
	// Required when Target is refunded, ignored otherwise
	RefundAmount *decimal.Decimal `json:"refund_amount"`
	Note         string           `json:"note"`
}

type AttachTrackingRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
	Carrier        string `json:"carrier"`
}

type AppendNoteRequest struct {
	Text string `json:"text" binding:"required"`
}

type ReturnListFilter struct {
	Status        string
	CustomerEmail string
	Page          int
	Limit         int
}

// ReturnEvent is the websocket payload pushed to dashboard clients
type ReturnEvent struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// Broadcaster delivers events to connected dashboard clients. Delivery is
// best-effort; the controller never waits on it.
type Broadcaster interface {
	Broadcast(message []byte) bool
}

// --- Interface ---

type ReturnService interface {
	CreateReturn(ctx context.Context, userID string, req CreateReturnRequest) (*model.Return, error)
	GetReturn(ctx context.Context, id string) (*model.Return, error)
	GetReturnByRMA(ctx context.Context, rmaNumber string) (*model.Return, error)
	ListReturns(ctx context.Context, filter ReturnListFilter) ([]model.Return, int64, error)
	Transition(ctx context.Context, userID, id string, req TransitionRequest) (*model.Return, error)
	AttachTracking(ctx context.Context, userID, id string, req AttachTrackingRequest) (*model.Return, error)
	AppendNote(ctx context.Context, userID, id string, text string) (*model.Return, error)
	Stats(ctx context.Context) (*repository.ReturnStats, error)
}

type returnService struct {
	returnRepo repository.ReturnRepository
	orderRepo  repository.OrderRepository
	auditRepo  repository.AuditRepository
	txManager  repository.TransactionManager
	hub        Broadcaster // optional
}

func NewReturnService(
	returnRepo repository.ReturnRepository,
	orderRepo repository.OrderRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub Broadcaster,
) ReturnService {
	return &returnService{
		returnRepo: returnRepo,
		orderRepo:  orderRepo,
		auditRepo:  auditRepo,
		txManager:  txManager,
		hub:        hub,
	}
}

// --- Implementation ---

func (s *returnService) CreateReturn(ctx context.Context, userID string, req CreateReturnRequest) (*model.Return, error) {
	ret := &model.Return{
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		Status:         model.ReturnStatusPending,
		Reason:         req.Reason,
		ReasonCategory: model.ReasonCategory(req.ReasonCategory),
		Description:    req.Description,
		RefundMethod:   model.RefundMethod(req.RefundMethod),
	}

	if req.OrderID != "" {
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			return nil, &ValidationError{Field: "order_id", Message: "must be a valid UUID"}
		}
		order, err := s.orderRepo.FindByIDWithItems(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &NotFoundError{Resource: "order", Ref: req.OrderID}
			}
			return nil, &PersistenceError{Op: "load order", Err: err}
		}
		ret.OrderID = &order.ID
		if ret.CustomerName == "" {
			ret.CustomerName = order.CustomerName
		}
		if ret.CustomerEmail == "" {
			ret.CustomerEmail = order.CustomerEmail
		}
	}

	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &ValidationError{Field: "items", Message: "quantity must be greater than 0"}
		}
		if item.Price.IsNegative() {
			return nil, &ValidationError{Field: "items", Message: "price must not be negative"}
		}
		returnItem := model.ReturnItem{
			ProductName: item.ProductName,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			Price:       item.Price,
		}
		if item.ProductID != "" {
			if productID, err := uuid.Parse(item.ProductID); err == nil {
				returnItem.ProductID = &productID
			}
		}
		ret.Items = append(ret.Items, returnItem)
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.returnRepo.Create(txCtx, ret); err != nil {
			return &PersistenceError{Op: "create return", Err: err}
		}
		return s.writeAudit(txCtx, userID, model.ActionCreateReturn, ret, map[string]interface{}{
			"reason_category": req.ReasonCategory,
			"refund_method":   req.RefundMethod,
			"item_count":      len(req.Items),
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcast("return.created", ret, nil)
	return ret, nil
}

func (s *returnService) GetReturn(ctx context.Context, id string) (*model.Return, error) {
	returnID, err := uuid.Parse(id)
	if err != nil {
		return nil, &ValidationError{Field: "id", Message: "must be a valid UUID"}
	}

	ret, err := s.returnRepo.FindByID(ctx, returnID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "return", Ref: id}
		}
		return nil, &PersistenceError{Op: "load return", Err: err}
	}
	return ret, nil
}

func (s *returnService) GetReturnByRMA(ctx context.Context, rmaNumber string) (*model.Return, error) {
	ret, err := s.returnRepo.FindByRMA(ctx, rmaNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "return", Ref: rmaNumber}
		}
		return nil, &PersistenceError{Op: "load return", Err: err}
	}
	return ret, nil
}

func (s *returnService) ListReturns(ctx context.Context, filter ReturnListFilter) ([]model.Return, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	returns, total, err := s.returnRepo.List(ctx, repository.ReturnFilter{
		Status:        model.ReturnStatus(filter.Status),
		CustomerEmail: filter.CustomerEmail,
		Page:          filter.Page,
		Limit:         filter.Limit,
	})
	if err != nil {
		return nil, 0, &PersistenceError{Op: "list returns", Err: err}
	}
	return returns, total, nil
}

// Transition validates and applies one status change. The row is locked for
// the duration of the transaction, so the guard check and the field updates
// act as a single atomic write: a concurrent stale transition fails the guard
// instead of clobbering state.
func (s *returnService) Transition(ctx context.Context, userID, id string, req TransitionRequest) (*model.Return, error) {
	returnID, err := uuid.Parse(id)
	if err != nil {
		return nil, &ValidationError{Field: "id", Message: "must be a valid UUID"}
	}

	var from model.ReturnStatus
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		ret, err := s.returnRepo.FindByIDForUpdate(txCtx, returnID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "return", Ref: id}
			}
			return &PersistenceError{Op: "load return", Err: err}
		}
		from = ret.Status

		if !model.CanTransitionReturnStatus(ret.Status, req.Target) {
			return &InvalidTransitionError{From: ret.Status, To: req.Target}
		}

		now := time.Now()
		fields := map[string]interface{}{
			"status":     req.Target,
			"updated_at": now,
		}

		switch req.Target {
		case model.ReturnStatusApproved:
			fields["approved_at"] = now
		case model.ReturnStatusReceived:
			fields["received_at"] = now
		case model.ReturnStatusInspecting:
			fields["inspected_at"] = now
		case model.ReturnStatusRefunded:
			if req.RefundAmount == nil || !req.RefundAmount.IsPositive() {
				return &ValidationError{Field: "refund_amount", Message: "must be greater than 0"}
			}
			fields["refund_amount"] = *req.RefundAmount
			fields["refunded_at"] = now
		case model.ReturnStatusRejected:
			fields["rejected_at"] = now
		}

		if req.Note != "" {
			fields["notes"] = appendNoteText(ret.Notes, req.Note)
		}

		if err := s.returnRepo.UpdateFields(txCtx, returnID, fields); err != nil {
			return &PersistenceError{Op: "apply transition", Err: err}
		}

		return s.writeAudit(txCtx, userID, model.ActionTransitionReturn, ret, map[string]interface{}{
			"from": from,
			"to":   req.Target,
		})
	})
	if err != nil {
		return nil, err
	}

	ret, err := s.returnRepo.FindByID(ctx, returnID)
	if err != nil {
		return nil, &PersistenceError{Op: "reload return", Err: err}
	}

	s.broadcast("return.status_changed", ret, map[string]interface{}{
		"from": from,
		"to":   ret.Status,
	})
	return ret, nil
}

// AttachTracking records the return shipment tracking reference. Permitted
// only while status is approved; repeating the same call is a no-op.
func (s *returnService) AttachTracking(ctx context.Context, userID, id string, req AttachTrackingRequest) (*model.Return, error) {
	returnID, err := uuid.Parse(id)
	if err != nil {
		return nil, &ValidationError{Field: "id", Message: "must be a valid UUID"}
	}

	var unchanged bool
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		ret, err := s.returnRepo.FindByIDForUpdate(txCtx, returnID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "return", Ref: id}
			}
			return &PersistenceError{Op: "load return", Err: err}
		}

		if ret.Status != model.ReturnStatusApproved {
			return &InvalidStateError{Op: "attach tracking", Status: ret.Status}
		}

		if ret.TrackingNumber == req.TrackingNumber && ret.Carrier == req.Carrier {
			unchanged = true
			return nil
		}

		fields := map[string]interface{}{
			"tracking_number": req.TrackingNumber,
			"carrier":         req.Carrier,
			"updated_at":      time.Now(),
		}
		if err := s.returnRepo.UpdateFields(txCtx, returnID, fields); err != nil {
			return &PersistenceError{Op: "attach tracking", Err: err}
		}

		return s.writeAudit(txCtx, userID, model.ActionAttachTracking, ret, map[string]interface{}{
			"tracking_number": req.TrackingNumber,
			"carrier":         req.Carrier,
		})
	})
	if err != nil {
		return nil, err
	}

	ret, err := s.returnRepo.FindByID(ctx, returnID)
	if err != nil {
		return nil, &PersistenceError{Op: "reload return", Err: err}
	}
	if !unchanged {
		s.broadcast("return.tracking_attached", ret, nil)
	}
	return ret, nil
}

// AppendNote adds an operator note. Permitted in any non-terminal status.
func (s *returnService) AppendNote(ctx context.Context, userID, id string, text string) (*model.Return, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Field: "text", Message: "must not be empty"}
	}

	returnID, err := uuid.Parse(id)
	if err != nil {
		return nil, &ValidationError{Field: "id", Message: "must be a valid UUID"}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		ret, err := s.returnRepo.FindByIDForUpdate(txCtx, returnID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "return", Ref: id}
			}
			return &PersistenceError{Op: "load return", Err: err}
		}

		if ret.IsTerminal() {
			return &InvalidStateError{Op: "append note", Status: ret.Status}
		}

		fields := map[string]interface{}{
			"notes":      appendNoteText(ret.Notes, text),
			"updated_at": time.Now(),
		}
		if err := s.returnRepo.UpdateFields(txCtx, returnID, fields); err != nil {
			return &PersistenceError{Op: "append note", Err: err}
		}

		return s.writeAudit(txCtx, userID, model.ActionAppendNote, ret, map[string]interface{}{
			"length": len(text),
		})
	})
	if err != nil {
		return nil, err
	}

	ret, err := s.returnRepo.FindByID(ctx, returnID)
	if err != nil {
		return nil, &PersistenceError{Op: "reload return", Err: err}
	}
	return ret, nil
}

func (s *returnService) Stats(ctx context.Context) (*repository.ReturnStats, error) {
	stats, err := s.returnRepo.Stats(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "load stats", Err: err}
	}
	return stats, nil
}

// --- Helpers ---

func appendNoteText(existing, text string) string {
	text = strings.TrimSpace(text)
	if existing == "" {
		return text
	}
	return existing + "\n" + text
}

func (s *returnService) writeAudit(ctx context.Context, userID, action string, ret *model.Return, payload map[string]interface{}) error {
	var uid *uuid.UUID
	if parsed, err := uuid.Parse(userID); err == nil {
		uid = &parsed
	}

	details, _ := json.Marshal(payload)
	entry := &model.AuditLog{
		UserID:     uid,
		Action:     action,
		EntityID:   ret.ID.String(),
		EntityName: ret.RMANumber,
		Details:    string(details),
	}
	if err := s.auditRepo.Log(ctx, entry); err != nil {
		return &PersistenceError{Op: "write audit log", Err: err}
	}
	return nil
}

// broadcast pushes a lifecycle event to connected dashboards. Fire and
// forget: a full hub or a marshal failure is logged and never surfaced.
func (s *returnService) broadcast(event string, ret *model.Return, extra map[string]interface{}) {
	if s.hub == nil {
		return
	}

	data := map[string]interface{}{
		"id":         ret.ID.String(),
		"rma_number": ret.RMANumber,
		"status":     ret.Status,
	}
	for k, v := range extra {
		data[k] = v
	}

	msg, err := json.Marshal(ReturnEvent{Event: event, Data: data})
	if err != nil {
		logrus.WithError(err).Warn("failed to encode return event")
		return
	}
	if !s.hub.Broadcast(msg) {
		logrus.WithField("event", event).Warn("return event dropped: broadcast queue full")
	}
}
