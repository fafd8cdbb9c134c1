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

var (
	ErrTransactionNotFound = errors.New("交易流水不存在")
)

// TypeSum 按交易类型汇总的金额
type TypeSum struct {
	Type      string          `json:"type"`
	RmbAmount decimal.Decimal `json:"rmb_amount"`
	HkdAmount decimal.Decimal `json:"hkd_amount"`
	Count     int64           `json:"count"`
}

// TransactionFilter 流水查询条件
type TransactionFilter struct {
	ChannelID        int64
	Type             string
	SettlementStatus string
	SettlementID     int64
	StartTime        *time.Time
	EndTime          *time.Time
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, txn *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(txn).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, id int64) (*model.Transaction, error) {
	var txn model.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Transaction, error) {
	var txn model.Transaction
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &txn, nil
}

func (r *TransactionRepository) Update(ctx context.Context, tx *gorm.DB, txn *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Save(txn).Error
}

func (r *TransactionRepository) Delete(ctx context.Context, tx *gorm.DB, id int64) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Where("id = ?", id).Delete(&model.Transaction{}).Error
}

func (r *TransactionRepository) List(ctx context.Context, filter *TransactionFilter, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{})
	if filter != nil {
		if filter.ChannelID > 0 {
			query = query.Where("channel_id = ?", filter.ChannelID)
		}
		if filter.Type != "" {
			query = query.Where("type = ?", filter.Type)
		}
		if filter.SettlementStatus != "" {
			query = query.Where("settlement_status = ?", filter.SettlementStatus)
		}
		if filter.SettlementID > 0 {
			query = query.Where("settlement_id = ?", filter.SettlementID)
		}
		if filter.StartTime != nil {
			query = query.Where("submit_time >= ?", *filter.StartTime)
		}
		if filter.EndTime != nil {
			query = query.Where("submit_time < ?", *filter.EndTime)
		}
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("submit_time DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// SumByType 按类型汇总金额
// channelID 为 0 时统计全部渠道；start/end 为空时不限时间
func (r *TransactionRepository) SumByType(ctx context.Context, tx *gorm.DB, channelID int64, start, end *time.Time) ([]TypeSum, error) {
	if tx == nil {
		tx = r.db
	}
	query := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("type, COALESCE(SUM(rmb_amount), 0) AS rmb_amount, COALESCE(SUM(hkd_amount), 0) AS hkd_amount, COUNT(*) AS count")
	if channelID > 0 {
		query = query.Where("channel_id = ?", channelID)
	}
	if start != nil {
		query = query.Where("submit_time >= ?", *start)
	}
	if end != nil {
		query = query.Where("submit_time < ?", *end)
	}

	var sums []TypeSum
	err := query.Group("type").Scan(&sums).Error
	return sums, err
}

// SumUnsettledByType 按类型汇总当前全部未结算流水
func (r *TransactionRepository) SumUnsettledByType(ctx context.Context, tx *gorm.DB) ([]TypeSum, error) {
	if tx == nil {
		tx = r.db
	}
	var sums []TypeSum
	err := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("type, COALESCE(SUM(rmb_amount), 0) AS rmb_amount, COALESCE(SUM(hkd_amount), 0) AS hkd_amount, COUNT(*) AS count").
		Where("settlement_status = ?", model.SettlementStatusUnsettled).
		Group("type").
		Scan(&sums).Error
	return sums, err
}

func (r *TransactionRepository) CountUnsettled(ctx context.Context, tx *gorm.DB) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("settlement_status = ?", model.SettlementStatusUnsettled).
		Count(&count).Error
	return count, err
}

// MarkAllSettled 把当前全部未结算流水一次性转为已结算
// 整批转移，不允许只结算一部分；返回实际关账的笔数
func (r *TransactionRepository) MarkAllSettled(ctx context.Context, tx *gorm.DB, settlementID int64) (int64, error) {
	result := tx.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("settlement_status = ?", model.SettlementStatusUnsettled).
		Updates(map[string]interface{}{
			"settlement_status": model.SettlementStatusSettled,
			"settlement_id":     settlementID,
		})
	return result.RowsAffected, result.Error
}
