package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus constants
const (
	OrderStatusPending   = "pending"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// Order is the sales order a return can be raised against. Orders are
// created and fulfilled by the storefront side of the platform; this service
// only reads them to validate and snapshot items at return creation.
type Order struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNumber   string         `gorm:"type:varchar(100);uniqueIndex;not null" json:"order_number"`
	Status        string         `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CustomerName  string         `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerEmail string         `gorm:"type:varchar(255);index" json:"customer_email"`
	Items         []OrderItem    `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// OrderItem represents a line item within an Order
type OrderItem struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID     uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   *uuid.UUID      `gorm:"type:uuid;index" json:"product_id"`
	ProductName string          `gorm:"type:varchar(255);not null" json:"product_name"`
	SKU         string          `gorm:"type:varchar(100)" json:"sku"`
	Quantity    int             `gorm:"type:int;not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
}
