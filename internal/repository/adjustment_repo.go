package repository

import (
	"context"

	"cashledger/internal/model"

	"gorm.io/gorm"
)

type AdjustmentRepository struct {
	db *gorm.DB
}

func NewAdjustmentRepository(db *gorm.DB) *AdjustmentRepository {
	return &AdjustmentRepository{db: db}
}

func (r *AdjustmentRepository) Create(ctx context.Context, tx *gorm.DB, adjustment *model.BalanceAdjustment) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(adjustment).Error
}

func (r *AdjustmentRepository) ListByChannel(ctx context.Context, channelID int64, page, pageSize int) ([]*model.BalanceAdjustment, int64, error) {
	var adjustments []*model.BalanceAdjustment
	var total int64

	query := r.db.WithContext(ctx).Model(&model.BalanceAdjustment{})
	if channelID > 0 {
		query = query.Where("channel_id = ?", channelID)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&adjustments).Error

	return adjustments, total, err
}
