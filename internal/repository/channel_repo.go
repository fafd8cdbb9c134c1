package repository

import (
	"context"
	"errors"

	"cashledger/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrChannelNotFound = errors.New("渠道不存在")
)

type ChannelRepository struct {
	db *gorm.DB
}

func NewChannelRepository(db *gorm.DB) *ChannelRepository {
	return &ChannelRepository{db: db}
}

func (r *ChannelRepository) Create(ctx context.Context, channel *model.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

func (r *ChannelRepository) GetByID(ctx context.Context, id int64) (*model.Channel, error) {
	var channel model.Channel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return &channel, nil
}

// GetByIDForUpdate 加排他锁读取渠道行
// 交易录入/修改/删除与结算执行都先锁渠道行，保证两者互相串行
func (r *ChannelRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Channel, error) {
	var channel model.Channel
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	return &channel, nil
}

func (r *ChannelRepository) ListAll(ctx context.Context) ([]*model.Channel, error) {
	var channels []*model.Channel
	err := r.db.WithContext(ctx).Order("id ASC").Find(&channels).Error
	return channels, err
}

func (r *ChannelRepository) ListActive(ctx context.Context) ([]*model.Channel, error) {
	var channels []*model.Channel
	err := r.db.WithContext(ctx).
		Where("status = ?", model.ChannelStatusActive).
		Order("id ASC").
		Find(&channels).Error
	return channels, err
}

// LockActiveForUpdate 结算执行前锁定全部启用渠道
func (r *ChannelRepository) LockActiveForUpdate(ctx context.Context, tx *gorm.DB) ([]*model.Channel, error) {
	var channels []*model.Channel
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("status = ?", model.ChannelStatusActive).
		Order("id ASC").
		Find(&channels).Error
	return channels, err
}

func (r *ChannelRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Channel{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChannelNotFound
	}
	return nil
}
