package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChannelBalance 渠道每日余额表（按渠道+币种+日期一行）
//
// current_balance = initial_amount + income_amount - outcome_amount
// initial_amount(当日) = current_balance(前一日)，无前一日记录时为 0
//
// 该表是派生数据，任何时刻都可以从流水全量重算
type ChannelBalance struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ChannelID      int64           `gorm:"not null;uniqueIndex:uk_channel_currency_date,priority:1" json:"channel_id"`
	Currency       string          `gorm:"type:varchar(10);not null;uniqueIndex:uk_channel_currency_date,priority:2" json:"currency"`
	BalanceDate    time.Time       `gorm:"type:date;not null;uniqueIndex:uk_channel_currency_date,priority:3" json:"balance_date"`
	InitialAmount  decimal.Decimal `gorm:"type:decimal(20,3);not null;default:0" json:"initial_amount"`  // 期初（= 前一日期末）
	IncomeAmount   decimal.Decimal `gorm:"type:decimal(20,3);not null;default:0" json:"income_amount"`   // 当日流入（正数）
	OutcomeAmount  decimal.Decimal `gorm:"type:decimal(20,3);not null;default:0" json:"outcome_amount"`  // 当日流出（正数）
	CurrentBalance decimal.Decimal `gorm:"type:decimal(20,3);not null;default:0" json:"current_balance"` // 期末
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ChannelBalance) TableName() string {
	return "channel_balances"
}

const (
	AdjustmentTypeManual = "MANUAL" // 人工调整
	AdjustmentTypeSystem = "SYSTEM" // 系统调整
)

// BalanceAdjustment 余额调整记录表
// 记录调整前后快照：after_amount = before_amount + adjustment_amount
type BalanceAdjustment struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	AdjustmentNo     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"adjustment_no"`
	ChannelID        int64           `gorm:"index;not null" json:"channel_id"`
	Currency         string          `gorm:"type:varchar(10);not null" json:"currency"`
	BeforeAmount     decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"before_amount"`
	AdjustmentAmount decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"adjustment_amount"`
	AfterAmount      decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"after_amount"`
	Type             string          `gorm:"type:varchar(20);not null" json:"type"`
	Reason           string          `gorm:"type:varchar(256);not null" json:"reason"`
	Operator         string          `gorm:"type:varchar(64)" json:"operator"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (BalanceAdjustment) TableName() string {
	return "balance_adjustments"
}

// BalanceCarryForward 人民币余额结转表（按渠道+日期一行）
// 作为次日报表的"昨日余额"种子，只由报表持久化步骤写入
type BalanceCarryForward struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ChannelID   int64           `gorm:"not null;uniqueIndex:uk_carry_channel_date,priority:1" json:"channel_id"`
	BalanceDate time.Time       `gorm:"type:date;not null;uniqueIndex:uk_carry_channel_date,priority:2" json:"balance_date"`
	BalanceCny  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance_cny"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BalanceCarryForward) TableName() string {
	return "balance_carry_forwards"
}
