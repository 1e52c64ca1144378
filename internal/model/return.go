package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReturnStatus enum constants — lifecycle states of a return request
type ReturnStatus string

const (
	ReturnStatusPending    ReturnStatus = "pending"    // Submitted, awaiting review
	ReturnStatusApproved   ReturnStatus = "approved"   // Approved, waiting for the package
	ReturnStatusReceived   ReturnStatus = "received"   // Package received at warehouse
	ReturnStatusInspecting ReturnStatus = "inspecting" // Items under inspection
	ReturnStatusRefunded   ReturnStatus = "refunded"   // Refund issued
	ReturnStatusCompleted  ReturnStatus = "completed"  // Closed after refund
	ReturnStatusRejected   ReturnStatus = "rejected"   // Request denied
)

// ReasonCategory enum constants
type ReasonCategory string

const (
	ReasonDefective       ReasonCategory = "defective"
	ReasonWrongItem       ReasonCategory = "wrong_item"
	ReasonNotAsDescribed  ReasonCategory = "not_as_described"
	ReasonChangedMind     ReasonCategory = "changed_mind"
	ReasonDamagedShipping ReasonCategory = "damaged_shipping"
	ReasonOther           ReasonCategory = "other"
)

// RefundMethod enum constants
type RefundMethod string

const (
	RefundMethodOriginalPayment RefundMethod = "original_payment"
	RefundMethodStoreCredit     RefundMethod = "store_credit"
	RefundMethodExchange        RefundMethod = "exchange"
)

// Return represents one return/refund (RMA) request.
// Reason, description and items are fixed at creation; status moves only
// forward along the transition table in transitions.go.
type Return struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RMANumber      string         `gorm:"type:varchar(30);uniqueIndex;not null" json:"rma_number"`
	OrderID        *uuid.UUID     `gorm:"type:uuid;index" json:"order_id"` // Optional link to the originating order
	Order          *Order         `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	CustomerName   string         `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerEmail  string         `gorm:"type:varchar(255);index" json:"customer_email"`
	Status         ReturnStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Reason         string         `gorm:"type:text;not null" json:"reason"`
	ReasonCategory ReasonCategory `gorm:"type:varchar(30)" json:"reason_category"`
	Description    string         `gorm:"type:text" json:"description"`
	RefundMethod   RefundMethod   `gorm:"type:varchar(30);not null;default:'original_payment'" json:"refund_method"`

	// Set only on the inspecting -> refunded transition
	RefundAmount *decimal.Decimal `gorm:"type:decimal(18,4)" json:"refund_amount"`

	// Settable only while status is approved
	TrackingNumber string `gorm:"type:varchar(100)" json:"tracking_number"`
	Carrier        string `gorm:"type:varchar(100)" json:"carrier"`

	// Each timestamp is written exactly once, by its transition
	ApprovedAt  *time.Time `json:"approved_at"`
	ReceivedAt  *time.Time `json:"received_at"`
	InspectedAt *time.Time `json:"inspected_at"`
	RefundedAt  *time.Time `json:"refunded_at"`
	RejectedAt  *time.Time `json:"rejected_at"`

	Notes string `gorm:"type:text" json:"notes"` // Operator notes, append-only while non-terminal

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Items []ReturnItem `gorm:"foreignKey:ReturnID;constraint:OnDelete:CASCADE" json:"items"`
}

// ReturnItem is an immutable line of a return request, snapshotted at creation.
type ReturnItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ReturnID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"return_id"`
	ProductID   *uuid.UUID      `gorm:"type:uuid" json:"product_id"`
	ProductName string          `gorm:"type:varchar(255);not null" json:"product_name"`
	SKU         string          `gorm:"type:varchar(100)" json:"sku"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"price"` // Unit price at time of request
	CreatedAt   time.Time       `json:"created_at"`
}

// BeforeCreate assigns the RMA number: RMA-YYYYMMDD-XXXXXX
func (r *Return) BeforeCreate(tx *gorm.DB) error {
	if r.RMANumber == "" {
		r.RMANumber = "RMA-" + time.Now().Format("20060102") + "-" + uuid.New().String()[:6]
	}
	return nil
}

func (Return) TableName() string     { return "returns" }
func (ReturnItem) TableName() string { return "return_items" }

// IsTerminal reports whether no further status transitions are permitted.
func (r *Return) IsTerminal() bool {
	return IsTerminalStatus(r.Status)
}

// ItemsSubtotal sums price × quantity over all items. Used as the suggested
// refund when the operator confirms the refund step.
func (r *Return) ItemsSubtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range r.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
