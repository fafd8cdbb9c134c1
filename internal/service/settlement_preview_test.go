package service

import (
	"testing"

	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/stretchr/testify/assert"
)

// 结算核心算法：本金1000、港币余额500、未结算付款 rmb=200/hkd=230、
// 人民币余额合计1000 时，汇率 2.00000、折算成本 100、本期利润 130
func TestBuildPreviewSettlementAlgebra(t *testing.T) {
	unsettled := []repository.TypeSum{
		{Type: model.TransactionTypeOutcome, RmbAmount: d("200"), HkdAmount: d("230"), Count: 2},
	}

	p := BuildPreview(d("1000"), d("500"), d("1000"), unsettled)

	assert.True(t, p.UnsettledIncomeRmb.IsZero())
	assert.True(t, p.UnsettledIncomeHkd.IsZero())
	assert.True(t, p.UnsettledOutcomeRmb.Equal(d("200")))
	assert.True(t, p.UnsettledOutcomeHkd.Equal(d("230")))
	assert.True(t, p.RmbTotal.Equal(d("1000")))
	assert.True(t, p.HkdTotal.Equal(d("500")))
	assert.Equal(t, "2.00000", p.SettlementRate.StringFixed(5))
	assert.True(t, p.OutcomeHkdCost.Equal(d("100")))
	assert.Equal(t, "130.000", p.Profit.StringFixed(3))
	assert.Equal(t, int64(2), p.UnsettledCount)
}

// 收款口径包含 INCOME 与 EXCHANGE，计入 rmb_total/hkd_total
func TestBuildPreviewIncomeIncludesExchange(t *testing.T) {
	unsettled := []repository.TypeSum{
		{Type: model.TransactionTypeIncome, RmbAmount: d("300"), HkdAmount: d("330"), Count: 1},
		{Type: model.TransactionTypeExchange, RmbAmount: d("200"), HkdAmount: d("220"), Count: 1},
	}

	p := BuildPreview(d("0"), d("450"), d("500"), unsettled)

	assert.True(t, p.UnsettledIncomeRmb.Equal(d("500")))
	assert.True(t, p.UnsettledIncomeHkd.Equal(d("550")))
	assert.True(t, p.RmbTotal.Equal(d("1000")))
	assert.True(t, p.HkdTotal.Equal(d("1000")))
	assert.Equal(t, "1.00000", p.SettlementRate.StringFixed(5))
}

// 即时买断不参与汇率与利润计算，但计入关账笔数
func TestBuildPreviewInstantBuyoutExcludedFromAlgebra(t *testing.T) {
	unsettled := []repository.TypeSum{
		{Type: model.TransactionTypeInstantBuyout, RmbAmount: d("1000"), HkdAmount: d("1090"), Count: 3},
	}

	p := BuildPreview(d("100"), d("200"), d("400"), unsettled)

	assert.True(t, p.UnsettledIncomeRmb.IsZero())
	assert.True(t, p.UnsettledOutcomeRmb.IsZero())
	assert.True(t, p.RmbTotal.Equal(d("400")))
	assert.True(t, p.HkdTotal.Equal(d("200")))
	assert.Equal(t, int64(3), p.UnsettledCount)
}

// 没有未结算流水时，预览返回良定义的零值
func TestBuildPreviewEmptyUnsettled(t *testing.T) {
	p := BuildPreview(d("1000"), d("0"), d("0"), nil)

	assert.True(t, p.RmbTotal.IsZero())
	assert.True(t, p.HkdTotal.IsZero())
	assert.True(t, p.SettlementRate.IsZero())
	assert.True(t, p.OutcomeHkdCost.IsZero())
	assert.True(t, p.Profit.IsZero())
	assert.Equal(t, int64(0), p.UnsettledCount)
}

// hkd_total 为 0 时汇率记 0，折算成本记 0，利润 = 实付港币
func TestBuildPreviewZeroHkdTotal(t *testing.T) {
	unsettled := []repository.TypeSum{
		{Type: model.TransactionTypeOutcome, RmbAmount: d("200"), HkdAmount: d("230"), Count: 1},
	}

	p := BuildPreview(d("0"), d("0"), d("1000"), unsettled)

	assert.True(t, p.SettlementRate.IsZero())
	assert.True(t, p.OutcomeHkdCost.IsZero())
	assert.Equal(t, "230.000", p.Profit.StringFixed(3))
}

// 汇率保留5位小数，折算成本取整到10
func TestBuildPreviewRounding(t *testing.T) {
	unsettled := []repository.TypeSum{
		{Type: model.TransactionTypeOutcome, RmbAmount: d("333"), HkdAmount: d("380"), Count: 1},
	}

	p := BuildPreview(d("0"), d("920"), d("1000"), unsettled)

	// 1000 / 920 = 1.0869565... -> 1.08696
	assert.Equal(t, "1.08696", p.SettlementRate.StringFixed(5))
	// 333 / 1.08696 = 306.357... -> 310
	assert.True(t, p.OutcomeHkdCost.Equal(d("310")), "cost = %s", p.OutcomeHkdCost)
	assert.Equal(t, "70.000", p.Profit.StringFixed(3))
}

// SplitFlows 与方向规则一致：港币的流入对应付款腿
func TestSplitFlows(t *testing.T) {
	sums := []repository.TypeSum{
		{Type: model.TransactionTypeIncome, RmbAmount: d("100"), HkdAmount: d("115")},
		{Type: model.TransactionTypeOutcome, RmbAmount: d("40"), HkdAmount: d("46")},
	}

	rmbIn, rmbOut := SplitFlows(sums, model.CurrencyRMB)
	assert.True(t, rmbIn.Equal(d("100")))
	assert.True(t, rmbOut.Equal(d("40")))

	hkdIn, hkdOut := SplitFlows(sums, model.CurrencyHKD)
	assert.True(t, hkdIn.Equal(d("46")))
	assert.True(t, hkdOut.Equal(d("115")))
}
