package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// 方向规则：人民币收款为正、付款为负；港币方向与人民币相反
func TestBalanceDeltaDirectionRule(t *testing.T) {
	income := &Transaction{Type: TransactionTypeIncome, RmbAmount: d("100"), HkdAmount: d("115")}
	outcome := &Transaction{Type: TransactionTypeOutcome, RmbAmount: d("40"), HkdAmount: d("46")}

	assert.True(t, income.BalanceDelta(CurrencyRMB).Equal(d("100")))
	assert.True(t, income.BalanceDelta(CurrencyHKD).Equal(d("-115")))
	assert.True(t, outcome.BalanceDelta(CurrencyRMB).Equal(d("-40")))
	assert.True(t, outcome.BalanceDelta(CurrencyHKD).Equal(d("46")))

	// 同日一收一付的净影响：人民币 +60，港币 -69
	rmbNet := income.BalanceDelta(CurrencyRMB).Add(outcome.BalanceDelta(CurrencyRMB))
	hkdNet := income.BalanceDelta(CurrencyHKD).Add(outcome.BalanceDelta(CurrencyHKD))
	assert.True(t, rmbNet.Equal(d("60")))
	assert.True(t, hkdNet.Equal(d("-69")))
}

func TestBalanceDeltaExchangeAndInstant(t *testing.T) {
	exchange := &Transaction{Type: TransactionTypeExchange, RmbAmount: d("500"), HkdAmount: d("550")}
	assert.True(t, exchange.BalanceDelta(CurrencyRMB).Equal(d("500")))
	assert.True(t, exchange.BalanceDelta(CurrencyHKD).Equal(d("-550")))

	// 即时买断同时影响两个币种
	instant := &Transaction{Type: TransactionTypeInstantBuyout, RmbAmount: d("1000"), HkdAmount: d("1090")}
	assert.True(t, instant.BalanceDelta(CurrencyRMB).Equal(d("1000")))
	assert.True(t, instant.BalanceDelta(CurrencyHKD).Equal(d("-1090")))
}

func TestBalanceDeltaUnknownCurrency(t *testing.T) {
	txn := &Transaction{Type: TransactionTypeIncome, RmbAmount: d("100"), HkdAmount: d("115")}
	assert.True(t, txn.BalanceDelta("USD").IsZero())
}

func TestIsValidTransactionType(t *testing.T) {
	assert.True(t, IsValidTransactionType(TransactionTypeIncome))
	assert.True(t, IsValidTransactionType(TransactionTypeOutcome))
	assert.True(t, IsValidTransactionType(TransactionTypeExchange))
	assert.True(t, IsValidTransactionType(TransactionTypeInstantBuyout))
	assert.False(t, IsValidTransactionType("TRANSFER"))
	assert.False(t, IsValidTransactionType(""))
}

func TestIsSettled(t *testing.T) {
	txn := &Transaction{SettlementStatus: SettlementStatusUnsettled}
	assert.False(t, txn.IsSettled())
	txn.SettlementStatus = SettlementStatusSettled
	assert.True(t, txn.IsSettled())
}
