package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrInvalidCurrency  = errors.New("不支持的币种")
	ErrInvalidDateRange = errors.New("日期范围不合法")
)

// BalanceService 余额引擎
//
// 维护每个（渠道、币种、日期）的流水余额，余额永远可以从流水全量重算。
// 交易落库的代码路径在同一个数据库事务内同步调用 OnTransactionCreated 等钩子，
// 不依赖任何隐式的模型事件
type BalanceService struct {
	db             *gorm.DB
	cfg            *config.Config
	channelRepo    *repository.ChannelRepository
	txnRepo        *repository.TransactionRepository
	balanceRepo    *repository.ChannelBalanceRepository
	adjustmentRepo *repository.AdjustmentRepository
	outboxRepo     *repository.OutboxRepository
}

func NewBalanceService(db *gorm.DB, cfg *config.Config) *BalanceService {
	return &BalanceService{
		db:             db,
		cfg:            cfg,
		channelRepo:    repository.NewChannelRepository(db),
		txnRepo:        repository.NewTransactionRepository(db),
		balanceRepo:    repository.NewChannelBalanceRepository(db),
		adjustmentRepo: repository.NewAdjustmentRepository(db),
		outboxRepo:     repository.NewOutboxRepository(db),
	}
}

// ============================================================
// 流水钩子：与交易落库同事务、同步执行
// ============================================================

func (s *BalanceService) OnTransactionCreated(ctx context.Context, tx *gorm.DB, txn *model.Transaction) error {
	return s.applyTransactionDelta(ctx, tx, txn, false)
}

func (s *BalanceService) OnTransactionDeleted(ctx context.Context, tx *gorm.DB, txn *model.Transaction) error {
	return s.applyTransactionDelta(ctx, tx, txn, true)
}

// OnTransactionEdited 先冲销旧流水的影响，再套用新流水
func (s *BalanceService) OnTransactionEdited(ctx context.Context, tx *gorm.DB, oldTxn, newTxn *model.Transaction) error {
	if err := s.applyTransactionDelta(ctx, tx, oldTxn, true); err != nil {
		return err
	}
	return s.applyTransactionDelta(ctx, tx, newTxn, false)
}

// applyTransactionDelta 把一笔交易的带符号影响套用（或冲销）到当日余额行
func (s *BalanceService) applyTransactionDelta(ctx context.Context, tx *gorm.DB, txn *model.Transaction, reverse bool) error {
	date := DateOf(txn.SubmitTime)

	for _, currency := range model.Currencies {
		delta := txn.BalanceDelta(currency)
		if delta.IsZero() {
			continue
		}

		row, err := s.balanceRepo.Get(ctx, tx, txn.ChannelID, currency, date)
		if err != nil {
			if !errors.Is(err, repository.ErrChannelBalanceNotFound) {
				return err
			}
			initial, initErr := s.initialAmount(ctx, tx, txn.ChannelID, currency, date)
			if initErr != nil {
				return initErr
			}
			row = &model.ChannelBalance{
				ChannelID:      txn.ChannelID,
				Currency:       currency,
				BalanceDate:    date,
				InitialAmount:  initial,
				CurrentBalance: initial,
			}
		}

		magnitude := delta.Abs()
		applied := delta
		if reverse {
			magnitude = magnitude.Neg()
			applied = delta.Neg()
		}
		if delta.IsPositive() {
			row.IncomeAmount = row.IncomeAmount.Add(magnitude)
		} else {
			row.OutcomeAmount = row.OutcomeAmount.Add(magnitude)
		}
		row.CurrentBalance = row.CurrentBalance.Add(applied)

		if err := s.balanceRepo.Upsert(ctx, tx, row); err != nil {
			return fmt.Errorf("更新渠道余额失败: %w", err)
		}
	}
	return nil
}

// initialAmount 当日期初 = 之前最近一日的期末，无记录时为 0
func (s *BalanceService) initialAmount(ctx context.Context, tx *gorm.DB, channelID int64, currency string, date time.Time) (decimal.Decimal, error) {
	prev, err := s.balanceRepo.GetLatestBefore(ctx, tx, channelID, currency, date)
	if err != nil {
		if errors.Is(err, repository.ErrChannelBalanceNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return prev.CurrentBalance, nil
}

// ============================================================
// 日结与重算
// ============================================================

// CalculateDailyBalance 从流水全量重算某渠道某币种某日的余额行
//
// 幂等：同一流水集合算多少次，结果完全一致
func (s *BalanceService) CalculateDailyBalance(ctx context.Context, tx *gorm.DB, channelID int64, currency string, date time.Time) (*model.ChannelBalance, error) {
	if !model.IsValidCurrency(currency) {
		return nil, ErrInvalidCurrency
	}
	if tx == nil {
		tx = s.db
	}
	date = DateOf(date)

	initial, err := s.initialAmount(ctx, tx, channelID, currency, date)
	if err != nil {
		return nil, err
	}

	dayStart, dayEnd := DayRange(date)
	sums, err := s.txnRepo.SumByType(ctx, tx, channelID, &dayStart, &dayEnd)
	if err != nil {
		return nil, fmt.Errorf("汇总当日流水失败: %w", err)
	}

	income, outcome := SplitFlows(sums, currency)

	row := &model.ChannelBalance{
		ChannelID:      channelID,
		Currency:       currency,
		BalanceDate:    date,
		InitialAmount:  initial,
		IncomeAmount:   income,
		OutcomeAmount:  outcome,
		CurrentBalance: initial.Add(income).Sub(outcome),
	}
	if err := s.balanceRepo.Upsert(ctx, tx, row); err != nil {
		return nil, fmt.Errorf("写入渠道余额失败: %w", err)
	}
	return row, nil
}

// SplitFlows 把按类型汇总的金额拆成指定币种的流入/流出（均为正数）
// 方向规则见 model.Transaction.BalanceDelta
func SplitFlows(sums []repository.TypeSum, currency string) (income, outcome decimal.Decimal) {
	income, outcome = decimal.Zero, decimal.Zero
	for _, ts := range sums {
		probe := model.Transaction{Type: ts.Type, RmbAmount: ts.RmbAmount, HkdAmount: ts.HkdAmount}
		delta := probe.BalanceDelta(currency)
		if delta.IsPositive() {
			income = income.Add(delta)
		} else if delta.IsNegative() {
			outcome = outcome.Add(delta.Neg())
		}
	}
	return income, outcome
}

// RecalculateRange 按日顺序重算区间内每一天的余额
//
// 第 N 天的期初依赖第 N-1 天的期末，必须顺序执行。
// channelID 为 0 时重算全部启用渠道。整个重算在一个数据库事务内，
// 任何一步失败则全部回滚，不会留下算到一半的余额
func (s *BalanceService) RecalculateRange(ctx context.Context, startDate, endDate time.Time, channelID int64) error {
	startDate, endDate = DateOf(startDate), DateOf(endDate)
	if endDate.Before(startDate) {
		return ErrInvalidDateRange
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var channels []*model.Channel
		if channelID > 0 {
			channel, err := s.channelRepo.GetByIDForUpdate(ctx, tx, channelID)
			if err != nil {
				return err
			}
			channels = []*model.Channel{channel}
		} else {
			var err error
			channels, err = s.channelRepo.LockActiveForUpdate(ctx, tx)
			if err != nil {
				return err
			}
		}

		for _, channel := range channels {
			for _, currency := range model.Currencies {
				for d := startDate; !d.After(endDate); d = d.AddDate(0, 0, 1) {
					if _, err := s.CalculateDailyBalance(ctx, tx, channel.ID, currency, d); err != nil {
						return fmt.Errorf("重算渠道 %d %s %s 失败: %w",
							channel.ID, currency, d.Format("2006-01-02"), err)
					}
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("[BalanceService] 余额重算完成: %s ~ %s, channelID=%d",
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"), channelID)
	return nil
}

// ============================================================
// 余额调整与实时余额
// ============================================================

// AdjustBalance 人工/系统调整渠道余额
// 记录调整前后快照，并直接改写当日期末余额；不回溯修改流水推导的历史
func (s *BalanceService) AdjustBalance(ctx context.Context, channelID int64, currency string, delta decimal.Decimal, adjustType, reason, operator string) (*model.BalanceAdjustment, error) {
	if !model.IsValidCurrency(currency) {
		return nil, ErrInvalidCurrency
	}
	if adjustType != model.AdjustmentTypeManual && adjustType != model.AdjustmentTypeSystem {
		return nil, errors.New("调整类型不合法")
	}
	if reason == "" {
		return nil, errors.New("调整原因不能为空")
	}

	var adjustment *model.BalanceAdjustment
	today := DateOf(time.Now())

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.channelRepo.GetByIDForUpdate(ctx, tx, channelID); err != nil {
			return err
		}

		row, err := s.balanceRepo.Get(ctx, tx, channelID, currency, today)
		if err != nil {
			if !errors.Is(err, repository.ErrChannelBalanceNotFound) {
				return err
			}
			initial, initErr := s.initialAmount(ctx, tx, channelID, currency, today)
			if initErr != nil {
				return initErr
			}
			row = &model.ChannelBalance{
				ChannelID:      channelID,
				Currency:       currency,
				BalanceDate:    today,
				InitialAmount:  initial,
				CurrentBalance: initial,
			}
		}

		before := row.CurrentBalance
		after := before.Add(delta)

		adjustment = &model.BalanceAdjustment{
			AdjustmentNo:     idgen.GenerateAdjustmentNo(),
			ChannelID:        channelID,
			Currency:         currency,
			BeforeAmount:     before,
			AdjustmentAmount: delta,
			AfterAmount:      after,
			Type:             adjustType,
			Reason:           reason,
			Operator:         operator,
		}
		if err := s.adjustmentRepo.Create(ctx, tx, adjustment); err != nil {
			return fmt.Errorf("记录余额调整失败: %w", err)
		}

		row.CurrentBalance = after
		if err := s.balanceRepo.Upsert(ctx, tx, row); err != nil {
			return fmt.Errorf("改写当日余额失败: %w", err)
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"adjustment_no": adjustment.AdjustmentNo,
			"channel_id":    channelID,
			"currency":      currency,
			"before_amount": before,
			"after_amount":  after,
			"reason":        reason,
			"operator":      operator,
		})
		outboxMsg := &model.OutboxMessage{
			MessageKey: adjustment.AdjustmentNo,
			EventType:  model.EventBalanceAdjusted,
			Topic:      s.cfg.Kafka.Topic.BalanceAdjusted,
			Payload:    string(payload),
			Status:     model.OutboxStatusPending,
		}
		if err := s.outboxRepo.Create(ctx, tx, outboxMsg); err != nil {
			return fmt.Errorf("写入调整事件失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[BalanceService] 余额调整完成: channelID=%d, currency=%s, delta=%s, operator=%s",
		channelID, currency, delta.String(), operator)
	return adjustment, nil
}

// BalanceHistory 某渠道某币种在日期区间内的每日余额行
func (s *BalanceService) BalanceHistory(ctx context.Context, channelID int64, currency string, start, end time.Time) ([]*model.ChannelBalance, error) {
	if !model.IsValidCurrency(currency) {
		return nil, ErrInvalidCurrency
	}
	start, end = DateOf(start), DateOf(end)
	if end.Before(start) {
		return nil, ErrInvalidDateRange
	}
	return s.balanceRepo.ListByChannel(ctx, channelID, currency, start, end)
}

// DailyBalances 某日全渠道余额快照
func (s *BalanceService) DailyBalances(ctx context.Context, currency string, date time.Time) ([]*model.ChannelBalance, error) {
	if !model.IsValidCurrency(currency) {
		return nil, ErrInvalidCurrency
	}
	return s.balanceRepo.ListByDate(ctx, nil, currency, DateOf(date))
}

// ListAdjustments 渠道调整历史，倒序分页
func (s *BalanceService) ListAdjustments(ctx context.Context, channelID int64, page, pageSize int) ([]*model.BalanceAdjustment, int64, error) {
	return s.adjustmentRepo.ListByChannel(ctx, channelID, page, pageSize)
}

// LiveBalance 实时余额：该渠道该币种全部历史流水带符号求和
// 全量重算后与当日 current_balance 一致
func (s *BalanceService) LiveBalance(ctx context.Context, channelID int64, currency string) (decimal.Decimal, error) {
	if !model.IsValidCurrency(currency) {
		return decimal.Zero, ErrInvalidCurrency
	}
	sums, err := s.txnRepo.SumByType(ctx, nil, channelID, nil, nil)
	if err != nil {
		return decimal.Zero, err
	}
	income, outcome := SplitFlows(sums, currency)
	return income.Sub(outcome), nil
}

// LiveRmbBalanceTotal 全渠道人民币实时余额合计（结算预览的输入之一）
func (s *BalanceService) LiveRmbBalanceTotal(ctx context.Context, tx *gorm.DB) (decimal.Decimal, error) {
	sums, err := s.txnRepo.SumByType(ctx, tx, 0, nil, nil)
	if err != nil {
		return decimal.Zero, err
	}
	income, outcome := SplitFlows(sums, model.CurrencyRMB)
	return income.Sub(outcome), nil
}
