package service

import (
	"context"
	"errors"

	"cashledger/internal/model"
	"cashledger/internal/repository"

	"gorm.io/gorm"
)

type ChannelService struct {
	channelRepo *repository.ChannelRepository
	db          *gorm.DB
}

func NewChannelService(db *gorm.DB) *ChannelService {
	return &ChannelService{
		channelRepo: repository.NewChannelRepository(db),
		db:          db,
	}
}

func (s *ChannelService) Create(ctx context.Context, name, channelType, remark string) (*model.Channel, error) {
	if name == "" {
		return nil, errors.New("渠道名称不能为空")
	}
	if !model.IsValidChannelType(channelType) {
		return nil, errors.New("渠道类型不合法")
	}

	channel := &model.Channel{
		Name:   name,
		Type:   channelType,
		Status: model.ChannelStatusActive,
		Remark: remark,
	}
	if err := s.channelRepo.Create(ctx, channel); err != nil {
		return nil, err
	}
	return channel, nil
}

func (s *ChannelService) Get(ctx context.Context, id int64) (*model.Channel, error) {
	return s.channelRepo.GetByID(ctx, id)
}

func (s *ChannelService) List(ctx context.Context) ([]*model.Channel, error) {
	return s.channelRepo.ListAll(ctx)
}

// SetStatus 停用的渠道不再参与日结任务与报表，历史流水保持不动
func (s *ChannelService) SetStatus(ctx context.Context, id int64, status string) error {
	if status != model.ChannelStatusActive && status != model.ChannelStatusInactive {
		return errors.New("渠道状态不合法")
	}
	return s.channelRepo.UpdateStatus(ctx, id, status)
}
