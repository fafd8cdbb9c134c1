package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerStateID 全局账本状态只有一行
const LedgerStateID int64 = 1

// LedgerState 全局账本状态表（单行）
//
// 系统本金与港币浮存余额。只有结算执行步骤允许改写这两个数字，
// 执行期间必须对该行加排他锁，作为结算的串行化点
type LedgerState struct {
	ID         int64           `gorm:"primaryKey" json:"id"`
	Capital    decimal.Decimal `gorm:"type:decimal(20,3);not null;default:0" json:"capital"`     // 本金
	HkdBalance decimal.Decimal `gorm:"type:decimal(20,3);not null;default:0" json:"hkd_balance"` // 港币余额
	Version    int             `gorm:"not null;default:0" json:"version"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LedgerState) TableName() string {
	return "ledger_state"
}
