package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/model"
	"cashledger/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 数据库集成测试：需要一个可用的 MySQL 实例
// 设置 TEST_MYSQL_DSN 后运行；结算并发相关测试另需 TEST_REDIS_ADDR

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN 未设置，跳过数据库测试")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Channel{},
		&model.Transaction{},
		&model.ChannelBalance{},
		&model.BalanceAdjustment{},
		&model.BalanceCarryForward{},
		&model.Settlement{},
		&model.SettlementExpense{},
		&model.LedgerState{},
		&model.OutboxMessage{},
	))

	cleanupTables(db)
	t.Cleanup(func() { cleanupTables(db) })
	return db
}

func cleanupTables(db *gorm.DB) {
	for _, table := range []string{
		"settlement_expenses", "settlements", "transactions",
		"channel_balances", "balance_adjustments", "balance_carry_forwards",
		"ledger_state", "outbox_message", "channels",
	} {
		db.Exec("DELETE FROM " + table)
	}
}

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR 未设置，跳过结算测试")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis 连接失败: %v", err)
	}
	return client
}

func testConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				SettlementExecuted: "test.settlement.executed",
				BalanceAdjusted:    "test.balance.adjusted",
			},
		},
		Business: config.BusinessConfig{
			DailyBalanceCron:      "0 1 * * *",
			SettlementLockSeconds: 30,
			MaxRetryCount:         3,
		},
	}
}

func createTestChannel(t *testing.T, db *gorm.DB, name string) *model.Channel {
	t.Helper()
	channel, err := NewChannelService(db).Create(context.Background(), name, model.ChannelTypeBank, "")
	require.NoError(t, err)
	return channel
}

func seedLedgerState(t *testing.T, db *gorm.DB, capital, hkdBalance string) {
	t.Helper()
	require.NoError(t, db.Create(&model.LedgerState{
		ID:         model.LedgerStateID,
		Capital:    d(capital),
		HkdBalance: d(hkdBalance),
	}).Error)
}

// 直接落一笔已结算的流水作为历史种子
func seedSettledIncome(t *testing.T, db *gorm.DB, channelID int64, rmb, hkd string, at time.Time) {
	t.Helper()
	settlementID := int64(999)
	require.NoError(t, db.Create(&model.Transaction{
		TransactionNo:    "TXNSEED" + rmb + hkd + time.Now().Format("150405.000000000"),
		Type:             model.TransactionTypeIncome,
		ChannelID:        channelID,
		RmbAmount:        d(rmb),
		HkdAmount:        d(hkd),
		ExchangeRate:     d("1.08"),
		SettlementStatus: model.SettlementStatusSettled,
		SettlementID:     &settlementID,
		SubmitTime:       at,
	}).Error)
}

// ============================================================
// 余额引擎
// ============================================================

func TestDailyBalanceDirectionRule(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行A")
	txnService := NewTransactionService(db, cfg)
	day := time.Date(2024, 1, 15, 10, 0, 0, 0, time.Local)

	_, err := txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeIncome, ChannelID: channel.ID,
		RmbAmount: d("100"), HkdAmount: d("115"), ExchangeRate: d("1.15"),
		SubmitTime: day,
	})
	require.NoError(t, err)
	_, err = txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeOutcome, ChannelID: channel.ID,
		RmbAmount: d("40"), HkdAmount: d("46"), ExchangeRate: d("1.15"),
		SubmitTime: day.Add(time.Hour),
	})
	require.NoError(t, err)

	balanceService := NewBalanceService(db, cfg)

	rmbRow, err := balanceService.CalculateDailyBalance(ctx, nil, channel.ID, model.CurrencyRMB, day)
	require.NoError(t, err)
	assert.True(t, rmbRow.CurrentBalance.Equal(d("60")), "RMB 期末 = %s", rmbRow.CurrentBalance)
	assert.True(t, rmbRow.IncomeAmount.Equal(d("100")))
	assert.True(t, rmbRow.OutcomeAmount.Equal(d("40")))

	hkdRow, err := balanceService.CalculateDailyBalance(ctx, nil, channel.ID, model.CurrencyHKD, day)
	require.NoError(t, err)
	assert.True(t, hkdRow.CurrentBalance.Equal(d("-69")), "HKD 期末 = %s", hkdRow.CurrentBalance)
	assert.True(t, hkdRow.IncomeAmount.Equal(d("46")))
	assert.True(t, hkdRow.OutcomeAmount.Equal(d("115")))
}

// 录入钩子增量维护的余额行必须与全量重算一致
func TestTransactionHooksMatchRecompute(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行B")
	txnService := NewTransactionService(db, cfg)
	balanceService := NewBalanceService(db, cfg)
	balanceRepo := repository.NewChannelBalanceRepository(db)
	day := time.Date(2024, 2, 1, 9, 0, 0, 0, time.Local)

	txn, err := txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeIncome, ChannelID: channel.ID,
		RmbAmount: d("300"), HkdAmount: d("330"), ExchangeRate: d("1.10"),
		SubmitTime: day,
	})
	require.NoError(t, err)

	// 钩子已把当日余额行写好
	hookRow, err := balanceRepo.Get(ctx, nil, channel.ID, model.CurrencyRMB, DateOf(day))
	require.NoError(t, err)
	assert.True(t, hookRow.CurrentBalance.Equal(d("300")))

	// 修改金额：先冲销再套用
	newRmb := d("250")
	_, err = txnService.Edit(ctx, txn.ID, &EditTransactionRequest{RmbAmount: &newRmb})
	require.NoError(t, err)

	hookRow, err = balanceRepo.Get(ctx, nil, channel.ID, model.CurrencyRMB, DateOf(day))
	require.NoError(t, err)
	assert.True(t, hookRow.CurrentBalance.Equal(d("250")))

	recomputed, err := balanceService.CalculateDailyBalance(ctx, nil, channel.ID, model.CurrencyRMB, day)
	require.NoError(t, err)
	assert.True(t, recomputed.CurrentBalance.Equal(hookRow.CurrentBalance))

	// 删除后余额回零
	require.NoError(t, txnService.Delete(ctx, txn.ID))
	hookRow, err = balanceRepo.Get(ctx, nil, channel.ID, model.CurrencyRMB, DateOf(day))
	require.NoError(t, err)
	assert.True(t, hookRow.CurrentBalance.IsZero())
}

func TestRecalculateRangeIdempotentAndChained(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行C")
	txnService := NewTransactionService(db, cfg)
	day1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local)
	day2 := day1.AddDate(0, 0, 1)

	_, err := txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeIncome, ChannelID: channel.ID,
		RmbAmount: d("100"), HkdAmount: d("110"), ExchangeRate: d("1.10"),
		SubmitTime: day1,
	})
	require.NoError(t, err)
	_, err = txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeOutcome, ChannelID: channel.ID,
		RmbAmount: d("30"), HkdAmount: d("33"), ExchangeRate: d("1.10"),
		SubmitTime: day2,
	})
	require.NoError(t, err)

	balanceService := NewBalanceService(db, cfg)
	require.NoError(t, balanceService.RecalculateRange(ctx, day1, day2, channel.ID))

	snapshot := func() []model.ChannelBalance {
		var rows []model.ChannelBalance
		require.NoError(t, db.
			Where("channel_id = ?", channel.ID).
			Order("currency, balance_date").
			Find(&rows).Error)
		return rows
	}

	first := snapshot()
	require.NoError(t, balanceService.RecalculateRange(ctx, day1, day2, channel.ID))
	second := snapshot()

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.True(t, first[i].InitialAmount.Equal(second[i].InitialAmount))
		assert.True(t, first[i].CurrentBalance.Equal(second[i].CurrentBalance))
		assert.True(t, first[i].IncomeAmount.Equal(second[i].IncomeAmount))
		assert.True(t, first[i].OutcomeAmount.Equal(second[i].OutcomeAmount))
	}

	// 链式结转：次日期初 = 前日期末
	balanceRepo := repository.NewChannelBalanceRepository(db)
	d1, err := balanceRepo.Get(ctx, nil, channel.ID, model.CurrencyRMB, DateOf(day1))
	require.NoError(t, err)
	d2, err := balanceRepo.Get(ctx, nil, channel.ID, model.CurrencyRMB, DateOf(day2))
	require.NoError(t, err)
	assert.True(t, d2.InitialAmount.Equal(d1.CurrentBalance))
	assert.True(t, d1.CurrentBalance.Equal(d("100")))
	assert.True(t, d2.CurrentBalance.Equal(d("70")))
}

func TestLiveBalanceMatchesRecompute(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行D")
	txnService := NewTransactionService(db, cfg)
	day := time.Date(2024, 4, 10, 12, 0, 0, 0, time.Local)

	amounts := []struct{ txType, rmb, hkd string }{
		{model.TransactionTypeIncome, "500", "550"},
		{model.TransactionTypeOutcome, "120", "132"},
		{model.TransactionTypeExchange, "80", "88"},
	}
	for _, a := range amounts {
		_, err := txnService.Record(ctx, &RecordTransactionRequest{
			Type: a.txType, ChannelID: channel.ID,
			RmbAmount: d(a.rmb), HkdAmount: d(a.hkd), ExchangeRate: d("1.10"),
			SubmitTime: day,
		})
		require.NoError(t, err)
	}

	balanceService := NewBalanceService(db, cfg)
	require.NoError(t, balanceService.RecalculateRange(ctx, day, day, channel.ID))

	for _, currency := range model.Currencies {
		live, err := balanceService.LiveBalance(ctx, channel.ID, currency)
		require.NoError(t, err)
		row, err := repository.NewChannelBalanceRepository(db).Get(ctx, nil, channel.ID, currency, DateOf(day))
		require.NoError(t, err)
		assert.True(t, live.Equal(row.CurrentBalance),
			"%s 实时余额 %s != 重算期末 %s", currency, live, row.CurrentBalance)
	}
}

func TestAdjustBalance(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试现金柜")
	balanceService := NewBalanceService(db, cfg)

	adjustment, err := balanceService.AdjustBalance(ctx, channel.ID, model.CurrencyRMB,
		d("50"), model.AdjustmentTypeManual, "盘点差异", "admin")
	require.NoError(t, err)

	assert.True(t, adjustment.BeforeAmount.IsZero())
	assert.True(t, adjustment.AdjustmentAmount.Equal(d("50")))
	assert.True(t, adjustment.AfterAmount.Equal(d("50")))

	row, err := repository.NewChannelBalanceRepository(db).Get(ctx, nil, channel.ID, model.CurrencyRMB, DateOf(time.Now()))
	require.NoError(t, err)
	assert.True(t, row.CurrentBalance.Equal(d("50")))

	// 币种不合法时直接拒绝，不落任何记录
	_, err = balanceService.AdjustBalance(ctx, channel.ID, "USD", d("1"), model.AdjustmentTypeManual, "x", "admin")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

// ============================================================
// 结算引擎
// ============================================================

func TestSettlementExecuteAlgebra(t *testing.T) {
	db := setupTestDB(t)
	rdb := setupTestRedis(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行E")
	seedLedgerState(t, db, "1000", "500")

	day := time.Date(2024, 5, 10, 10, 0, 0, 0, time.Local)
	// 历史已结算收款，使全渠道人民币余额合计为 1000
	seedSettledIncome(t, db, channel.ID, "1200", "1300", day.AddDate(0, 0, -10))

	txnService := NewTransactionService(db, cfg)
	for i := 0; i < 2; i++ {
		_, err := txnService.Record(ctx, &RecordTransactionRequest{
			Type: model.TransactionTypeOutcome, ChannelID: channel.ID,
			RmbAmount: d("100"), HkdAmount: d("115"), ExchangeRate: d("1.15"),
			SubmitTime: day.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	settlementService := NewSettlementService(db, rdb, cfg)

	preview, err := settlementService.Preview(ctx)
	require.NoError(t, err)
	assert.True(t, preview.RmbBalanceTotal.Equal(d("1000")))
	assert.Equal(t, "2.00000", preview.SettlementRate.StringFixed(5))
	assert.True(t, preview.OutcomeHkdCost.Equal(d("100")))
	assert.Equal(t, "130.000", preview.Profit.StringFixed(3))

	settlement, err := settlementService.Execute(ctx, nil, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), settlement.SequenceNumber)
	assert.True(t, settlement.PreviousCapital.Equal(d("1000")))
	assert.True(t, settlement.PreviousHkdBalance.Equal(d("500")))
	assert.Equal(t, "130.000", settlement.Profit.StringFixed(3))
	assert.True(t, settlement.NewCapital.Equal(d("1130")))
	assert.True(t, settlement.NewHkdBalance.Equal(d("630")))
	assert.Equal(t, int64(2), settlement.TransactionCount)

	// 全局状态已推进
	state, err := repository.NewLedgerStateRepository(db).Get(ctx)
	require.NoError(t, err)
	assert.True(t, state.Capital.Equal(d("1130")))
	assert.True(t, state.HkdBalance.Equal(d("630")))

	// 全部未结算流水已关账到本期
	var unsettledCount int64
	require.NoError(t, db.Model(&model.Transaction{}).
		Where("settlement_status = ?", model.SettlementStatusUnsettled).
		Count(&unsettledCount).Error)
	assert.Equal(t, int64(0), unsettledCount)

	var settled []model.Transaction
	require.NoError(t, db.
		Where("settlement_id = ?", settlement.ID).
		Find(&settled).Error)
	assert.Len(t, settled, 2)
}

func TestSettlementExpensesReduceCapital(t *testing.T) {
	db := setupTestDB(t)
	rdb := setupTestRedis(t)
	cfg := testConfig()
	ctx := context.Background()

	createTestChannel(t, db, "测试银行F")
	seedLedgerState(t, db, "1000", "500")

	settlementService := NewSettlementService(db, rdb, cfg)

	// 零未结算流水的"空结算"：只扣杂项支出
	settlement, err := settlementService.Execute(ctx, []ExpenseItem{
		{ItemName: "房租", Amount: d("30")},
		{ItemName: "杂费", Amount: d("20")},
	}, "月末杂支")
	require.NoError(t, err)

	assert.True(t, settlement.OtherExpensesTotal.Equal(d("50")))
	assert.True(t, settlement.Profit.IsZero())
	assert.True(t, settlement.NewCapital.Equal(d("950")))
	assert.True(t, settlement.NewHkdBalance.Equal(d("500")))

	expenses, err := repository.NewSettlementRepository(db).ListExpenses(ctx, settlement.ID)
	require.NoError(t, err)
	require.Len(t, expenses, 2)

	total := expenses[0].Amount.Add(expenses[1].Amount)
	assert.True(t, total.Equal(settlement.OtherExpensesTotal))
}

func TestSettlementAtomicity(t *testing.T) {
	db := setupTestDB(t)
	rdb := setupTestRedis(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行G")
	seedLedgerState(t, db, "1000", "500")

	txnService := NewTransactionService(db, cfg)
	day := time.Date(2024, 6, 1, 10, 0, 0, 0, time.Local)
	_, err := txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeOutcome, ChannelID: channel.ID,
		RmbAmount: d("200"), HkdAmount: d("230"), ExchangeRate: d("1.15"),
		SubmitTime: day,
	})
	require.NoError(t, err)

	// 人为制造中途失败：支出明细表不存在，写明细一步必然报错
	require.NoError(t, db.Migrator().DropTable(&model.SettlementExpense{}))
	defer func() {
		require.NoError(t, db.AutoMigrate(&model.SettlementExpense{}))
	}()

	settlementService := NewSettlementService(db, rdb, cfg)
	_, err = settlementService.Execute(ctx, []ExpenseItem{{ItemName: "房租", Amount: d("10")}}, "")
	require.Error(t, err)

	// 整个操作回滚：没有结算记录、没有状态迁移、本金不变
	var settlementCount int64
	require.NoError(t, db.Model(&model.Settlement{}).Count(&settlementCount).Error)
	assert.Equal(t, int64(0), settlementCount)

	var unsettledCount int64
	require.NoError(t, db.Model(&model.Transaction{}).
		Where("settlement_status = ?", model.SettlementStatusUnsettled).
		Count(&unsettledCount).Error)
	assert.Equal(t, int64(1), unsettledCount)

	state, err := repository.NewLedgerStateRepository(db).Get(ctx)
	require.NoError(t, err)
	assert.True(t, state.Capital.Equal(d("1000")))
	assert.True(t, state.HkdBalance.Equal(d("500")))
}

func TestSettledTransactionImmutable(t *testing.T) {
	db := setupTestDB(t)
	rdb := setupTestRedis(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行H")
	seedLedgerState(t, db, "0", "100")

	txnService := NewTransactionService(db, cfg)
	day := time.Date(2024, 7, 1, 10, 0, 0, 0, time.Local)
	txn, err := txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeIncome, ChannelID: channel.ID,
		RmbAmount: d("100"), HkdAmount: d("110"), ExchangeRate: d("1.10"),
		SubmitTime: day,
	})
	require.NoError(t, err)

	settlementService := NewSettlementService(db, rdb, cfg)
	settlement, err := settlementService.Execute(ctx, nil, "")
	require.NoError(t, err)

	newRmb := d("999")
	_, err = txnService.Edit(ctx, txn.ID, &EditTransactionRequest{RmbAmount: &newRmb})
	assert.ErrorIs(t, err, ErrTransactionSettled)

	err = txnService.Delete(ctx, txn.ID)
	assert.ErrorIs(t, err, ErrTransactionSettled)

	// 流水与所属结算均原样未动
	got, err := txnService.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, got.RmbAmount.Equal(d("100")))
	require.NotNil(t, got.SettlementID)
	assert.Equal(t, settlement.ID, *got.SettlementID)
}

func TestConcurrentSettlementSequence(t *testing.T) {
	db := setupTestDB(t)
	rdb := setupTestRedis(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行I")
	seedLedgerState(t, db, "0", "1000")

	txnService := NewTransactionService(db, cfg)
	day := time.Date(2024, 8, 1, 10, 0, 0, 0, time.Local)
	for i := 0; i < 5; i++ {
		_, err := txnService.Record(ctx, &RecordTransactionRequest{
			Type: model.TransactionTypeIncome, ChannelID: channel.ID,
			RmbAmount: d("100"), HkdAmount: d("110"), ExchangeRate: d("1.10"),
			SubmitTime: day.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	results := make([]*model.Settlement, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			svc := NewSettlementService(db, rdb, cfg)
			results[idx], errs[idx] = svc.Execute(ctx, nil, "")
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// 期数不重号，且两期关账的流水集合不相交
	assert.NotEqual(t, results[0].SequenceNumber, results[1].SequenceNumber)
	assert.Equal(t, int64(5), results[0].TransactionCount+results[1].TransactionCount)

	var counts []struct {
		SettlementID int64
		Cnt          int64
	}
	require.NoError(t, db.Model(&model.Transaction{}).
		Select("settlement_id, COUNT(*) AS cnt").
		Group("settlement_id").
		Scan(&counts).Error)
	total := int64(0)
	for _, c := range counts {
		total += c.Cnt
	}
	assert.Equal(t, int64(5), total)
}

// ============================================================
// 报表
// ============================================================

func TestDailyReportAndCarryForward(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行J")
	txnService := NewTransactionService(db, cfg)
	reportService := NewReportService(db, cfg)

	day1 := time.Date(2024, 9, 1, 10, 0, 0, 0, time.Local)
	day2 := day1.AddDate(0, 0, 1)

	_, err := txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeIncome, ChannelID: channel.ID,
		RmbAmount: d("100"), HkdAmount: d("115"), ExchangeRate: d("1.15"),
		SubmitTime: day1,
	})
	require.NoError(t, err)
	_, err = txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeOutcome, ChannelID: channel.ID,
		RmbAmount: d("40"), HkdAmount: d("46"), ExchangeRate: d("1.15"),
		SubmitTime: day2,
	})
	require.NoError(t, err)

	report1, err := reportService.DailyReport(ctx, day1)
	require.NoError(t, err)
	require.Len(t, report1.Channels, 1)
	row1 := report1.Channels[0]
	assert.True(t, row1.YesterdayBalance.IsZero())
	assert.True(t, row1.TodayIncomeRmb.Equal(d("100")))
	assert.True(t, row1.CurrentBalance.Equal(d("100")))
	// 当日利润（港币口径）= 付款港币 - 收款港币 = 0 - 115
	assert.True(t, row1.ProfitHkd.Equal(d("-115")))

	// 结转是独立于读报表的显式提交
	require.NoError(t, reportService.PersistCarryForward(ctx, day1))

	report2, err := reportService.DailyReport(ctx, day2)
	require.NoError(t, err)
	row2 := report2.Channels[0]
	assert.True(t, row2.YesterdayBalance.Equal(d("100")))
	assert.True(t, row2.TodayOutcomeRmb.Equal(d("40")))
	assert.True(t, row2.CurrentBalance.Equal(d("60")))
	assert.True(t, row2.ProfitHkd.Equal(d("46")))

	// 结转可重复执行，覆盖写入
	require.NoError(t, reportService.PersistCarryForward(ctx, day1))
	carry, err := repository.NewCarryForwardRepository(db).Get(ctx, channel.ID, DateOf(day1))
	require.NoError(t, err)
	assert.True(t, carry.Equal(d("100")))
}

// 月报与年报的利润符号口径相反，保持业务原样
func TestPeriodReportProfitConventions(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行K")
	txnService := NewTransactionService(db, cfg)
	reportService := NewReportService(db, cfg)

	day := time.Date(2024, 3, 5, 10, 0, 0, 0, time.Local)
	_, err := txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeIncome, ChannelID: channel.ID,
		RmbAmount: d("100"), HkdAmount: d("115"), ExchangeRate: d("1.15"),
		SubmitTime: day,
	})
	require.NoError(t, err)
	_, err = txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeOutcome, ChannelID: channel.ID,
		RmbAmount: d("40"), HkdAmount: d("46"), ExchangeRate: d("1.15"),
		SubmitTime: day,
	})
	require.NoError(t, err)

	// 月度口径：收款港币 - 付款港币 = 115 - 46 = 69
	monthly, err := reportService.MonthlyReport(ctx, 2024, time.March, nil)
	require.NoError(t, err)
	assert.True(t, monthly.ProfitTotal.Equal(d("69")), "月报利润 = %s", monthly.ProfitTotal)
	assert.Len(t, monthly.Rows, 31)

	// 年度口径相反：付款港币 - 收款港币 = 46 - 115 = -69
	yearly, err := reportService.YearlyReport(ctx, 2024, nil)
	require.NoError(t, err)
	assert.True(t, yearly.ProfitTotal.Equal(d("-69")), "年报利润 = %s", yearly.ProfitTotal)
	assert.Len(t, yearly.Rows, 12)

	// 杂项支出只从期合计扣一次
	withExpenses, err := reportService.MonthlyReport(ctx, 2024, time.March, []ExpenseItem{
		{ItemName: "房租", Amount: d("9")},
	})
	require.NoError(t, err)
	assert.True(t, withExpenses.NetProfit.Equal(d("60")))
}

// ============================================================
// 交易录入
// ============================================================

func TestRecordInstantBuyout(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行L")
	txnService := NewTransactionService(db, cfg)
	day := time.Date(2024, 10, 1, 10, 0, 0, 0, time.Local)

	txn, err := txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeInstantBuyout, ChannelID: channel.ID,
		RmbAmount: d("1000"), ExchangeRate: d("1.08"), InstantRate: d("1.10"),
		SubmitTime: day,
	})
	require.NoError(t, err)

	// 1000 / 1.10 = 909.09... -> 910
	assert.True(t, txn.HkdAmount.Equal(d("910")), "即时港币 = %s", txn.HkdAmount)
	// 1000 / 1.08 - 910 = 925.926 - 910 = 15.926
	assert.Equal(t, "15.926", txn.InstantProfit.StringFixed(3))
}

func TestRecordValidation(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	ctx := context.Background()

	channel := createTestChannel(t, db, "测试银行M")
	txnService := NewTransactionService(db, cfg)

	_, err := txnService.Record(ctx, &RecordTransactionRequest{
		Type: "TRANSFER", ChannelID: channel.ID,
		RmbAmount: d("100"), HkdAmount: d("110"), ExchangeRate: d("1.10"),
	})
	assert.ErrorIs(t, err, ErrInvalidTransactionType)

	_, err = txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeIncome, ChannelID: channel.ID,
		RmbAmount: d("-1"), HkdAmount: d("110"), ExchangeRate: d("1.10"),
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	// 停用渠道拒绝录入
	require.NoError(t, NewChannelService(db).SetStatus(ctx, channel.ID, model.ChannelStatusInactive))
	_, err = txnService.Record(ctx, &RecordTransactionRequest{
		Type: model.TransactionTypeIncome, ChannelID: channel.ID,
		RmbAmount: d("100"), HkdAmount: d("110"), ExchangeRate: d("1.10"),
	})
	assert.ErrorIs(t, err, ErrChannelInactive)
}
