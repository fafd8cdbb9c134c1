package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 金额舍入与日期工具
// ============================================================================
//
// 各类金额的舍入规则（业务约定，测试钉死）：
//   - 人民币金额：2位小数
//   - 港币结算金额/利润：3位小数
//   - 结算汇率：5位小数
//   - 付款人民币折算港币成本、即时买断港币：取整到 10

var ten = decimal.NewFromInt(10)

// RoundRmb 人民币金额，2位小数
func RoundRmb(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RoundHkd 港币结算金额，3位小数
func RoundHkd(d decimal.Decimal) decimal.Decimal {
	return d.Round(3)
}

// RoundRate 结算汇率，5位小数
func RoundRate(d decimal.Decimal) decimal.Decimal {
	return d.Round(5)
}

// RoundToTen 取整到最接近的 10
func RoundToTen(d decimal.Decimal) decimal.Decimal {
	return d.Div(ten).Round(0).Mul(ten)
}

// DateOf 截断到自然日（本地时区）
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayRange 返回某日的半开区间 [当日0点, 次日0点)
func DayRange(date time.Time) (time.Time, time.Time) {
	start := DateOf(date)
	return start, start.AddDate(0, 0, 1)
}

// ExpenseItem 杂项支出条目（结算与报表共用）
type ExpenseItem struct {
	ItemName string          `json:"item_name"`
	Amount   decimal.Decimal `json:"amount"`
}

// SumExpenses 杂项支出合计
func SumExpenses(items []ExpenseItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}
