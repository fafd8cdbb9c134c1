package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundToTen(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"100", "100"},
		{"104.9", "100"},
		{"105", "110"},
		{"96.123", "100"},
		{"94.999", "90"},
		{"0", "0"},
		{"-14.9", "-10"},
	}
	for _, tc := range cases {
		got := RoundToTen(d(tc.in))
		assert.True(t, got.Equal(d(tc.want)), "RoundToTen(%s) = %s, want %s", tc.in, got, tc.want)
	}
}

func TestRoundRate(t *testing.T) {
	assert.Equal(t, "1.08696", RoundRate(d("1000").Div(d("920"))).StringFixed(5))
	assert.Equal(t, "2.00000", RoundRate(d("1000").Div(d("500"))).StringFixed(5))
}

func TestRoundHkdAndRmb(t *testing.T) {
	assert.Equal(t, "130.000", RoundHkd(d("130")).StringFixed(3))
	assert.Equal(t, "129.996", RoundHkd(d("129.9955")).StringFixed(3))
	assert.Equal(t, "100.46", RoundRmb(d("100.456")).StringFixed(2))
}

func TestDayRange(t *testing.T) {
	at := time.Date(2024, 1, 15, 14, 30, 52, 0, time.Local)
	start, end := DayRange(at)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local), start)
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.Local), end)
	assert.Equal(t, start, DateOf(at))
}

func TestSumExpenses(t *testing.T) {
	assert.True(t, SumExpenses(nil).IsZero())

	total := SumExpenses([]ExpenseItem{
		{ItemName: "租金", Amount: d("30")},
		{ItemName: "车费", Amount: d("12.5")},
	})
	assert.True(t, total.Equal(d("42.5")))
}
