package repository

import (
	"context"
	"errors"
	"time"

	"cashledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrChannelBalanceNotFound = errors.New("渠道余额记录不存在")
)

type ChannelBalanceRepository struct {
	db *gorm.DB
}

func NewChannelBalanceRepository(db *gorm.DB) *ChannelBalanceRepository {
	return &ChannelBalanceRepository{db: db}
}

func (r *ChannelBalanceRepository) Get(ctx context.Context, tx *gorm.DB, channelID int64, currency string, date time.Time) (*model.ChannelBalance, error) {
	if tx == nil {
		tx = r.db
	}
	var balance model.ChannelBalance
	err := tx.WithContext(ctx).
		Where("channel_id = ? AND currency = ? AND balance_date = ?", channelID, currency, date).
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// GetLatestBefore 取指定日期之前最近一条余额记录（用于期初取前一日期末）
func (r *ChannelBalanceRepository) GetLatestBefore(ctx context.Context, tx *gorm.DB, channelID int64, currency string, date time.Time) (*model.ChannelBalance, error) {
	if tx == nil {
		tx = r.db
	}
	var balance model.ChannelBalance
	err := tx.WithContext(ctx).
		Where("channel_id = ? AND currency = ? AND balance_date < ?", channelID, currency, date).
		Order("balance_date DESC").
		First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelBalanceNotFound
		}
		return nil, err
	}
	return &balance, nil
}

// Upsert 按（渠道、币种、日期）唯一键写入，重复写入覆盖当日数字
// 幂等：同一流水集合重算多少次结果都一致
func (r *ChannelBalanceRepository) Upsert(ctx context.Context, tx *gorm.DB, balance *model.ChannelBalance) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "channel_id"}, {Name: "currency"}, {Name: "balance_date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"initial_amount", "income_amount", "outcome_amount", "current_balance",
			}),
		}).
		Create(balance).Error
}

func (r *ChannelBalanceRepository) ListByDate(ctx context.Context, tx *gorm.DB, currency string, date time.Time) ([]*model.ChannelBalance, error) {
	if tx == nil {
		tx = r.db
	}
	var balances []*model.ChannelBalance
	err := tx.WithContext(ctx).
		Where("currency = ? AND balance_date = ?", currency, date).
		Order("channel_id ASC").
		Find(&balances).Error
	return balances, err
}

func (r *ChannelBalanceRepository) ListByChannel(ctx context.Context, channelID int64, currency string, start, end time.Time) ([]*model.ChannelBalance, error) {
	var balances []*model.ChannelBalance
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND currency = ? AND balance_date >= ? AND balance_date <= ?", channelID, currency, start, end).
		Order("balance_date ASC").
		Find(&balances).Error
	return balances, err
}
