package repository

import (
	"context"
	"errors"

	"cashledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LedgerStateRepository struct {
	db *gorm.DB
}

func NewLedgerStateRepository(db *gorm.DB) *LedgerStateRepository {
	return &LedgerStateRepository{db: db}
}

// Get 读取全局账本状态，不存在时返回零值行
func (r *LedgerStateRepository) Get(ctx context.Context) (*model.LedgerState, error) {
	var state model.LedgerState
	err := r.db.WithContext(ctx).Where("id = ?", model.LedgerStateID).First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.LedgerState{ID: model.LedgerStateID}, nil
		}
		return nil, err
	}
	return &state, nil
}

// GetForUpdate 加排他锁读取全局账本状态行
//
// 【关键点】这一行是结算执行的串行化点：
// 两个并发的结算执行都要先拿到这把行锁，后来者会阻塞到前者提交，
// 再读到的就是前者提交后的未结算集合（为空），不会重复关账
func (r *LedgerStateRepository) GetForUpdate(ctx context.Context, tx *gorm.DB) (*model.LedgerState, error) {
	state := &model.LedgerState{ID: model.LedgerStateID}

	// 先确保单行存在，再加锁读取
	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(state).Error
	if err != nil {
		return nil, err
	}

	err = tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", model.LedgerStateID).
		First(state).Error
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Update 改写本金与港币余额，只允许在结算事务内调用
func (r *LedgerStateRepository) Update(ctx context.Context, tx *gorm.DB, state *model.LedgerState) error {
	result := tx.WithContext(ctx).
		Model(&model.LedgerState{}).
		Where("id = ?", model.LedgerStateID).
		Updates(map[string]interface{}{
			"capital":     state.Capital,
			"hkd_balance": state.HkdBalance,
			"version":     gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return result.Error
	}
	return nil
}
