package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement 结算批次表
//
// 一次结算把当前全部未结算流水一次性关账，并推进全局本金与港币余额。
// 结算记录一经创建永不修改 —— 所有字段都是创建时刻的快照
type Settlement struct {
	ID                 int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SettlementNo       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"settlement_no"`
	SequenceNumber     int64           `gorm:"uniqueIndex;not null" json:"sequence_number"` // 期数，严格递增
	PreviousCapital    decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"previous_capital"`
	PreviousHkdBalance decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"previous_hkd_balance"`
	RmbBalanceTotal    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"rmb_balance_total"`   // 全渠道人民币余额合计
	IncomeRmbTotal     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"income_rmb_total"`    // 未结算收款人民币合计
	IncomeHkdTotal     decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"income_hkd_total"`    // 未结算收款港币合计
	OutcomeRmbTotal    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"outcome_rmb_total"`   // 未结算付款人民币合计
	OutcomeHkdTotal    decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"outcome_hkd_total"`   // 未结算付款港币合计
	SettlementRate     decimal.Decimal `gorm:"type:decimal(12,5);not null" json:"settlement_rate"`     // 结算汇率（5位小数）
	OutcomeHkdCost     decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"outcome_hkd_cost"`    // 付款人民币折算港币成本（取整到10）
	Profit             decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"profit"`              // 本期利润（3位小数）
	OtherExpensesTotal decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"other_expenses_total"`
	NewCapital         decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"new_capital"`
	NewHkdBalance      decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"new_hkd_balance"`
	TransactionCount   int64           `gorm:"not null;default:0" json:"transaction_count"` // 本期关账的流水笔数
	Notes              string          `gorm:"type:varchar(512)" json:"notes"`
	CreatedAt          time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Settlement) TableName() string {
	return "settlements"
}

// SettlementExpense 结算杂项支出明细
// 明细金额之和 = settlement.other_expenses_total
type SettlementExpense struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	SettlementID int64           `gorm:"index;not null" json:"settlement_id"`
	ItemName     string          `gorm:"type:varchar(128);not null" json:"item_name"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"amount"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (SettlementExpense) TableName() string {
	return "settlement_expenses"
}
