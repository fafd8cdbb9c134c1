package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 币种与交易类型常量
// ============================================================================

const (
	CurrencyRMB = "RMB" // 人民币
	CurrencyHKD = "HKD" // 港币
)

// Currencies 系统支持的全部币种
var Currencies = []string{CurrencyRMB, CurrencyHKD}

func IsValidCurrency(currency string) bool {
	return currency == CurrencyRMB || currency == CurrencyHKD
}

const (
	TransactionTypeIncome        = "INCOME"         // 收款：收人民币，付港币
	TransactionTypeOutcome       = "OUTCOME"        // 付款：付人民币，收港币
	TransactionTypeExchange      = "EXCHANGE"       // 兑换：按挂牌汇率的收款
	TransactionTypeInstantBuyout = "INSTANT_BUYOUT" // 即时买断：按即时汇率成交，利润独立核算
)

func IsValidTransactionType(txType string) bool {
	switch txType {
	case TransactionTypeIncome, TransactionTypeOutcome,
		TransactionTypeExchange, TransactionTypeInstantBuyout:
		return true
	}
	return false
}

const (
	SettlementStatusUnsettled = "UNSETTLED"
	SettlementStatusSettled   = "SETTLED"
)

// ============================================================================
// 交易流水实体
// ============================================================================

// Transaction 交易流水表
// 记录每一笔现金进出，是余额计算和结算的唯一依据
//
// 【重要】流水表设计原则：
// 1. 已结算的流水不允许修改、不允许删除 —— 结算是终态
// 2. 余额不落在渠道表上，而是由流水推导 —— 随时可全量重算
// 3. 结算状态与结算ID必须同时设置 —— settled ⇔ settlement_id 非空
type Transaction struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo    string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	Type             string          `gorm:"type:varchar(20);index;not null" json:"type"`                 // 交易类型
	ChannelID        int64           `gorm:"index;not null" json:"channel_id"`                            // 渠道ID
	RmbAmount        decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"rmb_amount"`               // 人民币金额
	HkdAmount        decimal.Decimal `gorm:"type:decimal(20,3);not null" json:"hkd_amount"`               // 港币金额
	ExchangeRate     decimal.Decimal `gorm:"type:decimal(12,5);not null" json:"exchange_rate"`            // 成交汇率
	InstantRate      decimal.Decimal `gorm:"type:decimal(12,5)" json:"instant_rate"`                      // 即时买断汇率
	InstantProfit    decimal.Decimal `gorm:"type:decimal(20,3)" json:"instant_profit"`                    // 即时买断利润
	SettlementStatus string          `gorm:"type:varchar(20);index;not null;default:UNSETTLED" json:"settlement_status"`
	SettlementID     *int64          `gorm:"index" json:"settlement_id"` // 所属结算批次，未结算时为空
	Remark           string          `gorm:"type:varchar(256)" json:"remark"`
	SubmitTime       time.Time       `gorm:"index;not null" json:"submit_time"` // 业务发生时间（外勤录入）
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// IsSettled 已结算的流水不可再变更
func (t *Transaction) IsSettled() bool {
	return t.SettlementStatus == SettlementStatusSettled
}

// BalanceDelta 返回该笔交易对指定币种余额的带符号影响
//
// 【方向规则（业务固定语义，不可更改）】
//
// 人民币方向：收款 +rmb，付款 -rmb
// 港币方向与人民币相反：收款 -hkd，付款 +hkd
//   —— 收一笔人民币意味着要付出等值港币，反之亦然
// 即时买断同时影响两个币种，按收款腿的语义处理
func (t *Transaction) BalanceDelta(currency string) decimal.Decimal {
	switch currency {
	case CurrencyRMB:
		switch t.Type {
		case TransactionTypeIncome, TransactionTypeExchange, TransactionTypeInstantBuyout:
			return t.RmbAmount
		case TransactionTypeOutcome:
			return t.RmbAmount.Neg()
		}
	case CurrencyHKD:
		switch t.Type {
		case TransactionTypeIncome, TransactionTypeExchange, TransactionTypeInstantBuyout:
			return t.HkdAmount.Neg()
		case TransactionTypeOutcome:
			return t.HkdAmount
		}
	}
	return decimal.Zero
}
