package repository

import (
	"context"
	"errors"

	"cashledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSettlementNotFound = errors.New("结算记录不存在")
)

type SettlementRepository struct {
	db *gorm.DB
}

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) Create(ctx context.Context, tx *gorm.DB, settlement *model.Settlement) error {
	return tx.WithContext(ctx).Create(settlement).Error
}

func (r *SettlementRepository) CreateExpenses(ctx context.Context, tx *gorm.DB, expenses []*model.SettlementExpense) error {
	if len(expenses) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(&expenses).Error
}

func (r *SettlementRepository) GetByID(ctx context.Context, id int64) (*model.Settlement, error) {
	var settlement model.Settlement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettlementNotFound
		}
		return nil, err
	}
	return &settlement, nil
}

// MaxSequenceForUpdate 加锁读取当前最大期数
// 在结算事务内调用，配合唯一索引保证期数不重号
func (r *SettlementRepository) MaxSequenceForUpdate(ctx context.Context, tx *gorm.DB) (int64, error) {
	var settlement model.Settlement
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("sequence_number DESC").
		First(&settlement).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return settlement.SequenceNumber, nil
}

// List 按期数倒序分页
func (r *SettlementRepository) List(ctx context.Context, page, pageSize int) ([]*model.Settlement, int64, error) {
	var settlements []*model.Settlement
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Settlement{})

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("sequence_number DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&settlements).Error

	return settlements, total, err
}

func (r *SettlementRepository) ListExpenses(ctx context.Context, settlementID int64) ([]*model.SettlementExpense, error) {
	var expenses []*model.SettlementExpense
	err := r.db.WithContext(ctx).
		Where("settlement_id = ?", settlementID).
		Order("id ASC").
		Find(&expenses).Error
	return expenses, err
}
