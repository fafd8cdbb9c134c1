package repository

import (
	"context"
	"errors"
	"time"

	"cashledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CarryForwardRepository struct {
	db *gorm.DB
}

func NewCarryForwardRepository(db *gorm.DB) *CarryForwardRepository {
	return &CarryForwardRepository{db: db}
}

// Get 取某渠道某日的结转余额，不存在时返回 0
func (r *CarryForwardRepository) Get(ctx context.Context, channelID int64, date time.Time) (decimal.Decimal, error) {
	var row model.BalanceCarryForward
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND balance_date = ?", channelID, date).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return row.BalanceCny, nil
}

// SumByDate 全渠道结转余额合计（报表期初本金的种子）
func (r *CarryForwardRepository) SumByDate(ctx context.Context, date time.Time) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&model.BalanceCarryForward{}).
		Select("COALESCE(SUM(balance_cny), 0) AS total").
		Where("balance_date = ?", date).
		Scan(&result).Error
	return result.Total, err
}

// UpsertBatch 一次性写入一天的全部渠道结转记录
// 调用方负责把本次写入包在一个数据库事务里
func (r *CarryForwardRepository) UpsertBatch(ctx context.Context, tx *gorm.DB, rows []*model.BalanceCarryForward) error {
	if tx == nil {
		tx = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "balance_date"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance_cny"}),
		}).
		Create(&rows).Error
}
