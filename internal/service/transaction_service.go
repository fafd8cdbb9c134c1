package service

import (
	"context"
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
	ErrInvalidTransactionType = errors.New("不支持的交易类型")
	ErrInvalidAmount          = errors.New("金额不合法")
	ErrInvalidRate            = errors.New("汇率不合法")
	ErrChannelInactive        = errors.New("渠道已停用")
	ErrTransactionSettled     = errors.New("流水已结算，禁止修改或删除")
)

// TransactionService 交易录入
// 落库与余额钩子在同一个数据库事务内，失败则双双回滚
type TransactionService struct {
	db             *gorm.DB
	cfg            *config.Config
	channelRepo    *repository.ChannelRepository
	txnRepo        *repository.TransactionRepository
	balanceService *BalanceService
}

func NewTransactionService(db *gorm.DB, cfg *config.Config) *TransactionService {
	return &TransactionService{
		db:             db,
		cfg:            cfg,
		channelRepo:    repository.NewChannelRepository(db),
		txnRepo:        repository.NewTransactionRepository(db),
		balanceService: NewBalanceService(db, cfg),
	}
}

// RecordTransactionRequest 录入一笔交易
type RecordTransactionRequest struct {
	Type         string
	ChannelID    int64
	RmbAmount    decimal.Decimal
	HkdAmount    decimal.Decimal
	ExchangeRate decimal.Decimal
	InstantRate  decimal.Decimal
	SubmitTime   time.Time
	Remark       string
}

func (req *RecordTransactionRequest) validate() error {
	if !model.IsValidTransactionType(req.Type) {
		return ErrInvalidTransactionType
	}
	if req.RmbAmount.IsNegative() || req.HkdAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if req.ExchangeRate.IsNegative() {
		return ErrInvalidRate
	}
	if req.Type == model.TransactionTypeInstantBuyout && !req.InstantRate.IsPositive() {
		return ErrInvalidRate
	}
	return nil
}

// Record 录入交易并同步更新渠道余额
//
// 即时买断：港币腿按即时汇率折算并取整到 10，
// 买断利润 = 挂牌汇率折算港币 - 实付港币，成交时即独立核算
func (s *TransactionService) Record(ctx context.Context, req *RecordTransactionRequest) (*model.Transaction, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	submitTime := req.SubmitTime
	if submitTime.IsZero() {
		submitTime = time.Now()
	}

	txn := &model.Transaction{
		TransactionNo:    idgen.GenerateTransactionNo(),
		Type:             req.Type,
		ChannelID:        req.ChannelID,
		RmbAmount:        RoundRmb(req.RmbAmount),
		HkdAmount:        RoundHkd(req.HkdAmount),
		ExchangeRate:     req.ExchangeRate,
		InstantRate:      req.InstantRate,
		SettlementStatus: model.SettlementStatusUnsettled,
		Remark:           req.Remark,
		SubmitTime:       submitTime,
	}

	if req.Type == model.TransactionTypeInstantBuyout {
		txn.HkdAmount = RoundToTen(txn.RmbAmount.Div(req.InstantRate))
		if req.ExchangeRate.IsPositive() {
			listed := txn.RmbAmount.Div(req.ExchangeRate)
			txn.InstantProfit = RoundHkd(listed.Sub(txn.HkdAmount))
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		channel, err := s.channelRepo.GetByIDForUpdate(ctx, tx, req.ChannelID)
		if err != nil {
			return err
		}
		if channel.Status != model.ChannelStatusActive {
			return ErrChannelInactive
		}

		if err := s.txnRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("创建流水失败: %w", err)
		}
		return s.balanceService.OnTransactionCreated(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[TransactionService] 流水录入: no=%s, type=%s, channelID=%d, rmb=%s, hkd=%s",
		txn.TransactionNo, txn.Type, txn.ChannelID,
		txn.RmbAmount.String(), txn.HkdAmount.String())
	return txn, nil
}

// EditTransactionRequest 修改未结算流水，为空的字段不改
type EditTransactionRequest struct {
	RmbAmount    *decimal.Decimal
	HkdAmount    *decimal.Decimal
	ExchangeRate *decimal.Decimal
	Remark       *string
}

// Edit 修改未结算流水：先冲销旧影响，再套用新金额
func (s *TransactionService) Edit(ctx context.Context, id int64, req *EditTransactionRequest) (*model.Transaction, error) {
	var txn *model.Transaction

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		txn, err = s.txnRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if txn.IsSettled() {
			return ErrTransactionSettled
		}
		if _, err := s.channelRepo.GetByIDForUpdate(ctx, tx, txn.ChannelID); err != nil {
			return err
		}

		oldTxn := *txn
		if req.RmbAmount != nil {
			if req.RmbAmount.IsNegative() {
				return ErrInvalidAmount
			}
			txn.RmbAmount = RoundRmb(*req.RmbAmount)
		}
		if req.HkdAmount != nil {
			if req.HkdAmount.IsNegative() {
				return ErrInvalidAmount
			}
			txn.HkdAmount = RoundHkd(*req.HkdAmount)
		}
		if req.ExchangeRate != nil {
			if req.ExchangeRate.IsNegative() {
				return ErrInvalidRate
			}
			txn.ExchangeRate = *req.ExchangeRate
		}
		if req.Remark != nil {
			txn.Remark = *req.Remark
		}

		if err := s.txnRepo.Update(ctx, tx, txn); err != nil {
			return fmt.Errorf("更新流水失败: %w", err)
		}
		return s.balanceService.OnTransactionEdited(ctx, tx, &oldTxn, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Delete 删除未结算流水并冲销其余额影响
// 已结算流水永不物理删除
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		txn, err := s.txnRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if txn.IsSettled() {
			return ErrTransactionSettled
		}
		if _, err := s.channelRepo.GetByIDForUpdate(ctx, tx, txn.ChannelID); err != nil {
			return err
		}

		if err := s.txnRepo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("删除流水失败: %w", err)
		}
		return s.balanceService.OnTransactionDeleted(ctx, tx, txn)
	})
}

func (s *TransactionService) Get(ctx context.Context, id int64) (*model.Transaction, error) {
	return s.txnRepo.GetByID(ctx, id)
}

func (s *TransactionService) List(ctx context.Context, filter *repository.TransactionFilter, page, pageSize int) ([]*model.Transaction, int64, error) {
	return s.txnRepo.List(ctx, filter, page, pageSize)
}
