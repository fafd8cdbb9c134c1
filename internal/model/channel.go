package model

import (
	"time"
)

const (
	ChannelStatusActive   = "ACTIVE"
	ChannelStatusInactive = "INACTIVE"
)

const (
	ChannelTypeBank    = "BANK"    // 银行账户
	ChannelTypeEWallet = "EWALLET" // 电子钱包
	ChannelTypeCash    = "CASH"    // 现金
	ChannelTypeCustom  = "CUSTOM"  // 自定义渠道
)

func IsValidChannelType(channelType string) bool {
	switch channelType {
	case ChannelTypeBank, ChannelTypeEWallet, ChannelTypeCash, ChannelTypeCustom:
		return true
	}
	return false
}

// Channel 收付款渠道表
// 渠道本身不存余额 —— 余额由流水推导，见 ChannelBalance
type Channel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"name"`
	Type      string    `gorm:"type:varchar(20);not null" json:"type"`
	Status    string    `gorm:"type:varchar(20);index;not null;default:ACTIVE" json:"status"`
	Remark    string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Channel) TableName() string {
	return "channels"
}
