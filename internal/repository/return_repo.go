package repository

import (
	"context"

	"returns-service/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReturnFilter narrows List queries
type ReturnFilter struct {
	Status        model.ReturnStatus
	CustomerEmail string
	Page          int
	Limit         int
}

// ReturnStats aggregates the dashboard header numbers
type ReturnStats struct {
	CountsByStatus map[model.ReturnStatus]int64 `json:"counts_by_status"`
	TotalRefunded  decimal.Decimal              `json:"total_refunded"`
}

type ReturnRepository interface {
	Create(ctx context.Context, ret *model.Return) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Return, error)
	// FindByIDForUpdate locks the row for the duration of the surrounding
	// transaction so a transition reads and writes a consistent snapshot.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Return, error)
	FindByRMA(ctx context.Context, rmaNumber string) (*model.Return, error)
	List(ctx context.Context, filter ReturnFilter) ([]model.Return, int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	Stats(ctx context.Context) (*ReturnStats, error)
}

type returnRepository struct {
	db *gorm.DB
}

func NewReturnRepository(db *gorm.DB) ReturnRepository {
	return &returnRepository{db: db}
}

func (r *returnRepository) Create(ctx context.Context, ret *model.Return) error {
	return GetDB(ctx, r.db).Create(ret).Error
}

func (r *returnRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Return, error) {
	var ret model.Return
	if err := GetDB(ctx, r.db).
		Preload("Items").
		First(&ret, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *returnRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Return, error) {
	var ret model.Return
	if err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&ret, "id = ?", id).Error; err != nil {
		return nil, err
	}
	// Items are loaded outside the lock clause; Preload with FOR UPDATE would
	// lock the item rows too, which nothing mutates after creation.
	if err := GetDB(ctx, r.db).Where("return_id = ?", id).Find(&ret.Items).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *returnRepository) FindByRMA(ctx context.Context, rmaNumber string) (*model.Return, error) {
	var ret model.Return
	if err := GetDB(ctx, r.db).
		Preload("Items").
		First(&ret, "rma_number = ?", rmaNumber).Error; err != nil {
		return nil, err
	}
	return &ret, nil
}

func (r *returnRepository) List(ctx context.Context, filter ReturnFilter) ([]model.Return, int64, error) {
	var returns []model.Return
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Return{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.CustomerEmail != "" {
		query = query.Where("customer_email = ?", filter.CustomerEmail)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&returns).Error; err != nil {
		return nil, 0, err
	}

	return returns, total, nil
}

func (r *returnRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return GetDB(ctx, r.db).
		Model(&model.Return{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *returnRepository) Stats(ctx context.Context) (*ReturnStats, error) {
	db := GetDB(ctx, r.db)

	type statusCount struct {
		Status model.ReturnStatus
		Count  int64
	}
	var rows []statusCount
	if err := db.Model(&model.Return{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[model.ReturnStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	var refunded decimal.NullDecimal
	if err := db.Model(&model.Return{}).
		Where("refund_amount IS NOT NULL").
		Select("COALESCE(SUM(refund_amount), 0)").
		Scan(&refunded).Error; err != nil {
		return nil, err
	}

	total := decimal.Zero
	if refunded.Valid {
		total = refunded.Decimal
	}

	return &ReturnStats{CountsByStatus: counts, TotalRefunded: total}, nil
}
