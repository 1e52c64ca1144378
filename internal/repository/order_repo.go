package repository

import (
	"context"

	"returns-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderRepository is read-only here: orders are written by the storefront,
// this service only resolves them when a return is raised against one.
type OrderRepository interface {
	FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) FindByIDWithItems(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).
		Preload("Items").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	var order model.Order
	if err := GetDB(ctx, r.db).
		Preload("Items").
		First(&order, "order_number = ?", orderNumber).Error; err != nil {
		return nil, err
	}
	return &order, nil
}
