package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/infrastructure/lock"
	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrSettlementConflict = errors.New("另一笔结算正在执行，请稍后重试")
	ErrExpenseInvalid     = errors.New("杂项支出条目不合法")
)

// SettlementService 结算引擎
//
// 把当前全部未结算流水加上各渠道余额，折算出一期结算：
// 先算出结算汇率和本期利润，再原子地关账并推进全局本金/港币余额
type SettlementService struct {
	db             *gorm.DB
	redisClient    *redis.Client
	cfg            *config.Config
	channelRepo    *repository.ChannelRepository
	txnRepo        *repository.TransactionRepository
	settlementRepo *repository.SettlementRepository
	ledgerRepo     *repository.LedgerStateRepository
	outboxRepo     *repository.OutboxRepository
	balanceService *BalanceService
}

func NewSettlementService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *SettlementService {
	return &SettlementService{
		db:             db,
		redisClient:    redisClient,
		cfg:            cfg,
		channelRepo:    repository.NewChannelRepository(db),
		txnRepo:        repository.NewTransactionRepository(db),
		settlementRepo: repository.NewSettlementRepository(db),
		ledgerRepo:     repository.NewLedgerStateRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
		balanceService: NewBalanceService(db, cfg),
	}
}

// SettlementPreview 结算预览，确认页原样展示这些数字
type SettlementPreview struct {
	CurrentCapital      decimal.Decimal `json:"current_capital"`
	CurrentHkdBalance   decimal.Decimal `json:"current_hkd_balance"`
	RmbBalanceTotal     decimal.Decimal `json:"rmb_balance_total"`
	UnsettledIncomeRmb  decimal.Decimal `json:"unsettled_income_rmb"`
	UnsettledIncomeHkd  decimal.Decimal `json:"unsettled_income_hkd"`
	UnsettledOutcomeRmb decimal.Decimal `json:"unsettled_outcome_rmb"`
	UnsettledOutcomeHkd decimal.Decimal `json:"unsettled_outcome_hkd"`
	RmbTotal            decimal.Decimal `json:"rmb_total"`
	HkdTotal            decimal.Decimal `json:"hkd_total"`
	SettlementRate      decimal.Decimal `json:"settlement_rate"`
	OutcomeHkdCost      decimal.Decimal `json:"outcome_hkd_cost"`
	Profit              decimal.Decimal `json:"profit"`
	UnsettledCount      int64           `json:"unsettled_count"`
}

// BuildPreview 结算核心算法（纯计算，便于单测钉死数字）
//
//  1. rmb_total = 全渠道人民币余额合计 + 未结算收款人民币
//     hkd_total = 当前港币余额 + 未结算收款港币
//  2. 结算汇率 = rmb_total / hkd_total，5位小数；hkd_total 为 0 时记 0
//  3. 付款人民币按结算汇率折算港币成本，取整到 10
//  4. 本期利润 = 实际付出港币 - 折算成本，3位小数
//
// 收款口径包含 INCOME 与 EXCHANGE；即时买断的利润在成交时已独立核算，
// 不参与结算汇率与利润计算，但同样会被本期关账
func BuildPreview(capital, hkdBalance, rmbBalanceTotal decimal.Decimal, unsettled []repository.TypeSum) *SettlementPreview {
	p := &SettlementPreview{
		CurrentCapital:      capital,
		CurrentHkdBalance:   hkdBalance,
		RmbBalanceTotal:     rmbBalanceTotal,
		UnsettledIncomeRmb:  decimal.Zero,
		UnsettledIncomeHkd:  decimal.Zero,
		UnsettledOutcomeRmb: decimal.Zero,
		UnsettledOutcomeHkd: decimal.Zero,
	}

	for _, ts := range unsettled {
		p.UnsettledCount += ts.Count
		switch ts.Type {
		case model.TransactionTypeIncome, model.TransactionTypeExchange:
			p.UnsettledIncomeRmb = p.UnsettledIncomeRmb.Add(ts.RmbAmount)
			p.UnsettledIncomeHkd = p.UnsettledIncomeHkd.Add(ts.HkdAmount)
		case model.TransactionTypeOutcome:
			p.UnsettledOutcomeRmb = p.UnsettledOutcomeRmb.Add(ts.RmbAmount)
			p.UnsettledOutcomeHkd = p.UnsettledOutcomeHkd.Add(ts.HkdAmount)
		}
	}

	p.RmbTotal = p.RmbBalanceTotal.Add(p.UnsettledIncomeRmb)
	p.HkdTotal = p.CurrentHkdBalance.Add(p.UnsettledIncomeHkd)

	if p.HkdTotal.IsZero() {
		p.SettlementRate = decimal.Zero
	} else {
		p.SettlementRate = RoundRate(p.RmbTotal.Div(p.HkdTotal))
	}

	if p.SettlementRate.IsPositive() {
		p.OutcomeHkdCost = RoundToTen(p.UnsettledOutcomeRmb.Div(p.SettlementRate))
	} else {
		p.OutcomeHkdCost = decimal.Zero
	}

	p.Profit = RoundHkd(p.UnsettledOutcomeHkd.Sub(p.OutcomeHkdCost))
	return p
}

// Preview 只读的结算预览，不产生任何副作用
// 没有未结算流水时照样返回良定义的全零预览
func (s *SettlementService) Preview(ctx context.Context) (*SettlementPreview, error) {
	state, err := s.ledgerRepo.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取账本状态失败: %w", err)
	}

	rmbTotal, err := s.balanceService.LiveRmbBalanceTotal(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("汇总人民币余额失败: %w", err)
	}

	unsettled, err := s.txnRepo.SumUnsettledByType(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("汇总未结算流水失败: %w", err)
	}

	return BuildPreview(state.Capital, state.HkdBalance, rmbTotal, unsettled), nil
}

// Execute 执行结算
//
// 【关键点】结算是整个系统最核心的资金操作，必须保证：
// 1. 执行时刻重新计算预览数字，绝不信任客户端回传的金额
// 2. 建新结算、关账流水、改写本金/港币余额在一个数据库事务内，要么全有要么全无
// 3. 并发安全：Redis 锁挡住跨进程的并发执行，事务内再对
//    ledger_state 行与启用渠道行加排他锁，与交易录入互相串行
func (s *SettlementService) Execute(ctx context.Context, expenses []ExpenseItem, notes string) (*model.Settlement, error) {
	for _, item := range expenses {
		if item.ItemName == "" || item.Amount.IsNegative() {
			return nil, ErrExpenseInvalid
		}
	}

	settlementNo := idgen.GenerateSettlementNo()

	// 跨进程互斥：同一时刻只允许一笔结算在执行
	execLock := lock.NewSettlementLock(s.redisClient, settlementNo,
		time.Duration(s.cfg.Business.SettlementLockSeconds)*time.Second)
	if err := execLock.Lock(ctx, 100*time.Millisecond, 30); err != nil {
		return nil, ErrSettlementConflict
	}
	defer execLock.Unlock(ctx)

	var settlement *model.Settlement

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 串行化点：锁全局账本状态行
		state, err := s.ledgerRepo.GetForUpdate(ctx, tx)
		if err != nil {
			return fmt.Errorf("锁定账本状态失败: %w", err)
		}

		// 锁全部启用渠道，挡住并发的交易录入/修改
		if _, err := s.channelRepo.LockActiveForUpdate(ctx, tx); err != nil {
			return fmt.Errorf("锁定渠道失败: %w", err)
		}

		rmbTotal, err := s.balanceService.LiveRmbBalanceTotal(ctx, tx)
		if err != nil {
			return fmt.Errorf("汇总人民币余额失败: %w", err)
		}

		unsettled, err := s.txnRepo.SumUnsettledByType(ctx, tx)
		if err != nil {
			return fmt.Errorf("汇总未结算流水失败: %w", err)
		}

		preview := BuildPreview(state.Capital, state.HkdBalance, rmbTotal, unsettled)

		expensesTotal := SumExpenses(expenses)
		newCapital := state.Capital.Add(preview.Profit).Sub(expensesTotal)
		newHkdBalance := state.HkdBalance.Add(preview.Profit)

		maxSeq, err := s.settlementRepo.MaxSequenceForUpdate(ctx, tx)
		if err != nil {
			return fmt.Errorf("读取结算期数失败: %w", err)
		}

		settlement = &model.Settlement{
			SettlementNo:       settlementNo,
			SequenceNumber:     maxSeq + 1,
			PreviousCapital:    state.Capital,
			PreviousHkdBalance: state.HkdBalance,
			RmbBalanceTotal:    RoundRmb(preview.RmbBalanceTotal),
			IncomeRmbTotal:     RoundRmb(preview.UnsettledIncomeRmb),
			IncomeHkdTotal:     RoundHkd(preview.UnsettledIncomeHkd),
			OutcomeRmbTotal:    RoundRmb(preview.UnsettledOutcomeRmb),
			OutcomeHkdTotal:    RoundHkd(preview.UnsettledOutcomeHkd),
			SettlementRate:     preview.SettlementRate,
			OutcomeHkdCost:     preview.OutcomeHkdCost,
			Profit:             preview.Profit,
			OtherExpensesTotal: RoundHkd(expensesTotal),
			NewCapital:         newCapital,
			NewHkdBalance:      newHkdBalance,
			TransactionCount:   preview.UnsettledCount,
			Notes:              notes,
		}
		if err := s.settlementRepo.Create(ctx, tx, settlement); err != nil {
			return fmt.Errorf("创建结算记录失败: %w", err)
		}

		expenseRows := make([]*model.SettlementExpense, 0, len(expenses))
		for _, item := range expenses {
			expenseRows = append(expenseRows, &model.SettlementExpense{
				SettlementID: settlement.ID,
				ItemName:     item.ItemName,
				Amount:       item.Amount,
			})
		}
		if err := s.settlementRepo.CreateExpenses(ctx, tx, expenseRows); err != nil {
			return fmt.Errorf("记录杂项支出失败: %w", err)
		}

		// 整批关账：当前全部未结算流水转为已结算
		marked, err := s.txnRepo.MarkAllSettled(ctx, tx, settlement.ID)
		if err != nil {
			return fmt.Errorf("关账流水失败: %w", err)
		}
		if marked != preview.UnsettledCount {
			return fmt.Errorf("关账笔数不一致: 预期 %d 实际 %d", preview.UnsettledCount, marked)
		}

		state.Capital = newCapital
		state.HkdBalance = newHkdBalance
		if err := s.ledgerRepo.Update(ctx, tx, state); err != nil {
			return fmt.Errorf("改写账本状态失败: %w", err)
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"settlement_no":     settlementNo,
			"sequence_number":   settlement.SequenceNumber,
			"settlement_rate":   settlement.SettlementRate,
			"profit":            settlement.Profit,
			"new_capital":       settlement.NewCapital,
			"new_hkd_balance":   settlement.NewHkdBalance,
			"transaction_count": settlement.TransactionCount,
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: settlementNo,
			EventType:  model.EventSettlementExecuted,
			Topic:      s.cfg.Kafka.Topic.SettlementExecuted,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入结算事件失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[SettlementService] 结算完成: no=%s, 期数=%d, 利润=%s, 关账 %d 笔",
		settlement.SettlementNo, settlement.SequenceNumber,
		settlement.Profit.String(), settlement.TransactionCount)
	return settlement, nil
}

// History 结算历史，按期数倒序
func (s *SettlementService) History(ctx context.Context, page, pageSize int) ([]*model.Settlement, int64, error) {
	return s.settlementRepo.List(ctx, page, pageSize)
}

func (s *SettlementService) Get(ctx context.Context, id int64) (*model.Settlement, []*model.SettlementExpense, error) {
	settlement, err := s.settlementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	expenses, err := s.settlementRepo.ListExpenses(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return settlement, expenses, nil
}
