package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReportService 报表生成
//
// 读路径只组合结转快照与流水汇总，不动任何在线余额；
// 唯一的写路径是把某日报表的期末余额落成次日的结转种子
type ReportService struct {
	db          *gorm.DB
	cfg         *config.Config
	channelRepo *repository.ChannelRepository
	txnRepo     *repository.TransactionRepository
	carryRepo   *repository.CarryForwardRepository
}

func NewReportService(db *gorm.DB, cfg *config.Config) *ReportService {
	return &ReportService{
		db:          db,
		cfg:         cfg,
		channelRepo: repository.NewChannelRepository(db),
		txnRepo:     repository.NewTransactionRepository(db),
		carryRepo:   repository.NewCarryForwardRepository(db),
	}
}

// ============================================================
// 日报
// ============================================================

type DailyChannelReport struct {
	ChannelID        int64           `json:"channel_id"`
	ChannelName      string          `json:"channel_name"`
	YesterdayBalance decimal.Decimal `json:"yesterday_balance"` // 昨日结转（无记录为 0）
	TodayIncomeRmb   decimal.Decimal `json:"today_income_rmb"`
	TodayOutcomeRmb  decimal.Decimal `json:"today_outcome_rmb"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	TodayIncomeHkd   decimal.Decimal `json:"today_income_hkd"`
	TodayOutcomeHkd  decimal.Decimal `json:"today_outcome_hkd"`
	ProfitHkd        decimal.Decimal `json:"profit_hkd"`
}

type DailyReport struct {
	Date                time.Time             `json:"date"`
	Channels            []*DailyChannelReport `json:"channels"`
	TotalCurrentBalance decimal.Decimal       `json:"total_current_balance"`
	TotalIncomeRmb      decimal.Decimal       `json:"total_income_rmb"`
	TotalOutcomeRmb     decimal.Decimal       `json:"total_outcome_rmb"`
	TotalProfitHkd      decimal.Decimal       `json:"total_profit_hkd"`
}

// DailyReport 生成某日日报
// 渠道期末 = 昨日结转 + 当日收款人民币 - 当日付款人民币
// 当日利润（港币口径）= 当日付款港币 - 当日收款港币
func (s *ReportService) DailyReport(ctx context.Context, date time.Time) (*DailyReport, error) {
	date = DateOf(date)
	yesterday := date.AddDate(0, 0, -1)

	channels, err := s.channelRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取渠道列表失败: %w", err)
	}

	report := &DailyReport{
		Date:                date,
		Channels:            make([]*DailyChannelReport, 0, len(channels)),
		TotalCurrentBalance: decimal.Zero,
		TotalIncomeRmb:      decimal.Zero,
		TotalOutcomeRmb:     decimal.Zero,
		TotalProfitHkd:      decimal.Zero,
	}

	dayStart, dayEnd := DayRange(date)
	for _, channel := range channels {
		carried, err := s.carryRepo.Get(ctx, channel.ID, yesterday)
		if err != nil {
			return nil, fmt.Errorf("读取渠道 %d 结转余额失败: %w", channel.ID, err)
		}

		sums, err := s.txnRepo.SumByType(ctx, nil, channel.ID, &dayStart, &dayEnd)
		if err != nil {
			return nil, fmt.Errorf("汇总渠道 %d 当日流水失败: %w", channel.ID, err)
		}

		incomeRmb, outcomeRmb := SplitFlows(sums, model.CurrencyRMB)
		// 港币方向与人民币相反：SplitFlows 的"流入"是付款腿收到的港币
		incomeHkdFlow, outcomeHkdFlow := SplitFlows(sums, model.CurrencyHKD)
		incomeHkd, outcomeHkd := outcomeHkdFlow, incomeHkdFlow

		row := &DailyChannelReport{
			ChannelID:        channel.ID,
			ChannelName:      channel.Name,
			YesterdayBalance: carried,
			TodayIncomeRmb:   RoundRmb(incomeRmb),
			TodayOutcomeRmb:  RoundRmb(outcomeRmb),
			CurrentBalance:   RoundRmb(carried.Add(incomeRmb).Sub(outcomeRmb)),
			TodayIncomeHkd:   RoundHkd(incomeHkd),
			TodayOutcomeHkd:  RoundHkd(outcomeHkd),
			ProfitHkd:        RoundHkd(outcomeHkd.Sub(incomeHkd)),
		}
		report.Channels = append(report.Channels, row)

		report.TotalCurrentBalance = report.TotalCurrentBalance.Add(row.CurrentBalance)
		report.TotalIncomeRmb = report.TotalIncomeRmb.Add(row.TodayIncomeRmb)
		report.TotalOutcomeRmb = report.TotalOutcomeRmb.Add(row.TodayOutcomeRmb)
		report.TotalProfitHkd = report.TotalProfitHkd.Add(row.ProfitHkd)
	}

	return report, nil
}

// PersistCarryForward 把某日日报的各渠道期末余额落成结转记录
// 与报表生成分离的、显式的提交动作；全渠道一次事务写入
func (s *ReportService) PersistCarryForward(ctx context.Context, date time.Time) error {
	report, err := s.DailyReport(ctx, date)
	if err != nil {
		return err
	}

	rows := make([]*model.BalanceCarryForward, 0, len(report.Channels))
	for _, channel := range report.Channels {
		rows = append(rows, &model.BalanceCarryForward{
			ChannelID:   channel.ChannelID,
			BalanceDate: report.Date,
			BalanceCny:  channel.CurrentBalance,
		})
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.carryRepo.UpsertBatch(ctx, tx, rows)
	})
	if err != nil {
		return fmt.Errorf("写入结转余额失败: %w", err)
	}

	log.Printf("[ReportService] 结转完成: date=%s, 渠道数=%d",
		report.Date.Format("2006-01-02"), len(rows))
	return nil
}

// ============================================================
// 月报 / 年报
// ============================================================

type PeriodRow struct {
	Period     string          `json:"period"` // 2006-01-02 或 2006-01
	IncomeHkd  decimal.Decimal `json:"income_hkd"`
	OutcomeHkd decimal.Decimal `json:"outcome_hkd"`
	Profit     decimal.Decimal `json:"profit"`
	Principal  decimal.Decimal `json:"principal"` // 累计到本期末的本金
}

type PeriodReport struct {
	Rows           []*PeriodRow    `json:"rows"`
	PrincipalStart decimal.Decimal `json:"principal_start"` // 期前结转种子
	ProfitTotal    decimal.Decimal `json:"profit_total"`
	OtherExpenses  decimal.Decimal `json:"other_expenses"` // 只从期合计里扣一次
	NetProfit      decimal.Decimal `json:"net_profit"`
}

// MonthlyReport 月报：逐日折叠
// 本金种子取月首前一日的全渠道结转合计；单日利润 = 收款港币 - 付款港币
func (s *ReportService) MonthlyReport(ctx context.Context, year int, month time.Month, otherExpenses []ExpenseItem) (*PeriodReport, error) {
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	monthEnd := monthStart.AddDate(0, 1, 0)

	periods := make([]periodRange, 0, 31)
	for d := monthStart; d.Before(monthEnd); d = d.AddDate(0, 0, 1) {
		periods = append(periods, periodRange{
			label: d.Format("2006-01-02"),
			start: d,
			end:   d.AddDate(0, 0, 1),
		})
	}

	// 月度口径：利润 = 收款港币 - 付款港币
	profitFn := func(income, outcome decimal.Decimal) decimal.Decimal {
		return income.Sub(outcome)
	}
	return s.foldPeriods(ctx, monthStart, periods, profitFn, otherExpenses)
}

// YearlyReport 年报：逐月折叠
// 年度口径：利润 = 付款港币 - 收款港币
// 与月报口径相反，是沿用至今的业务约定，保持原样不做统一
func (s *ReportService) YearlyReport(ctx context.Context, year int, otherExpenses []ExpenseItem) (*PeriodReport, error) {
	yearStart := time.Date(year, time.January, 1, 0, 0, 0, 0, time.Local)

	periods := make([]periodRange, 0, 12)
	for m := time.January; m <= time.December; m++ {
		start := time.Date(year, m, 1, 0, 0, 0, 0, time.Local)
		periods = append(periods, periodRange{
			label: start.Format("2006-01"),
			start: start,
			end:   start.AddDate(0, 1, 0),
		})
	}

	profitFn := func(income, outcome decimal.Decimal) decimal.Decimal {
		return outcome.Sub(income)
	}
	return s.foldPeriods(ctx, yearStart, periods, profitFn, otherExpenses)
}

type periodRange struct {
	label string
	start time.Time
	end   time.Time
}

// foldPeriods 显式的按期折叠：第 N 期的本金建立在第 N-1 期的产出之上
func (s *ReportService) foldPeriods(ctx context.Context, rangeStart time.Time, periods []periodRange,
	profitFn func(income, outcome decimal.Decimal) decimal.Decimal, otherExpenses []ExpenseItem) (*PeriodReport, error) {

	seed, err := s.carryRepo.SumByDate(ctx, rangeStart.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("读取期前结转失败: %w", err)
	}

	report := &PeriodReport{
		Rows:           make([]*PeriodRow, 0, len(periods)),
		PrincipalStart: seed,
		ProfitTotal:    decimal.Zero,
	}

	principal := seed
	for _, p := range periods {
		sums, err := s.txnRepo.SumByType(ctx, nil, 0, &p.start, &p.end)
		if err != nil {
			return nil, fmt.Errorf("汇总 %s 流水失败: %w", p.label, err)
		}

		incomeHkdFlow, outcomeHkdFlow := SplitFlows(sums, model.CurrencyHKD)
		incomeHkd, outcomeHkd := outcomeHkdFlow, incomeHkdFlow

		profit := RoundHkd(profitFn(incomeHkd, outcomeHkd))
		principal = principal.Add(profit)

		report.Rows = append(report.Rows, &PeriodRow{
			Period:     p.label,
			IncomeHkd:  RoundHkd(incomeHkd),
			OutcomeHkd: RoundHkd(outcomeHkd),
			Profit:     profit,
			Principal:  principal,
		})
		report.ProfitTotal = report.ProfitTotal.Add(profit)
	}

	report.OtherExpenses = SumExpenses(otherExpenses)
	report.NetProfit = report.ProfitTotal.Sub(report.OtherExpenses)
	return report, nil
}
