package handler

import (
	"errors"
	"strconv"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/repository"
	"cashledger/internal/service"
	"cashledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	channelService     *service.ChannelService
	transactionService *service.TransactionService
	balanceService     *service.BalanceService
	settlementService  *service.SettlementService
	reportService      *service.ReportService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	return &Handler{
		channelService:     service.NewChannelService(db),
		transactionService: service.NewTransactionService(db, cfg),
		balanceService:     service.NewBalanceService(db, cfg),
		settlementService:  service.NewSettlementService(db, rdb, cfg),
		reportService:      service.NewReportService(db, cfg),
	}
}

const dateLayout = "2006-01-02"

func parseDate(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	date, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		response.ParamError(c, key+" 参数错误，格式应为 "+dateLayout)
		return time.Time{}, false
	}
	return date, true
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "id 参数错误")
		return 0, false
	}
	return id, true
}

// ============================================================
// 渠道相关接口
// ============================================================

// CreateChannelRequest 创建渠道请求
type CreateChannelRequest struct {
	Name   string `json:"name" binding:"required"`
	Type   string `json:"type" binding:"required"`
	Remark string `json:"remark"`
}

// CreateChannel 创建渠道
// POST /api/v1/channel/create
func (h *Handler) CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	channel, err := h.channelService.Create(c.Request.Context(), req.Name, req.Type, req.Remark)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, channel)
}

// ListChannels 渠道列表
// GET /api/v1/channel/list
func (h *Handler) ListChannels(c *gin.Context) {
	channels, err := h.channelService.List(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, channels)
}

// SetChannelStatus 启用/停用渠道
// POST /api/v1/channel/status
func (h *Handler) SetChannelStatus(c *gin.Context) {
	var req struct {
		ChannelID int64  `json:"channel_id" binding:"required"`
		Status    string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.channelService.SetStatus(c.Request.Context(), req.ChannelID, req.Status); err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			response.BusinessError(c, response.CodeChannelNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "渠道状态已更新"})
}

// ============================================================
// 交易流水接口
// ============================================================

// RecordTransactionRequest 录入交易请求
type RecordTransactionRequest struct {
	Type         string          `json:"type" binding:"required"`
	ChannelID    int64           `json:"channel_id" binding:"required"`
	RmbAmount    decimal.Decimal `json:"rmb_amount"`
	HkdAmount    decimal.Decimal `json:"hkd_amount"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	InstantRate  decimal.Decimal `json:"instant_rate"`
	SubmitTime   string          `json:"submit_time"` // 2006-01-02 15:04:05，缺省为当前时间
	Remark       string          `json:"remark"`
}

// RecordTransaction 录入一笔交易
// POST /api/v1/transaction/record
func (h *Handler) RecordTransaction(c *gin.Context) {
	var req RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	var submitTime time.Time
	if req.SubmitTime != "" {
		parsed, err := time.ParseInLocation("2006-01-02 15:04:05", req.SubmitTime, time.Local)
		if err != nil {
			response.ParamError(c, "submit_time 格式错误")
			return
		}
		submitTime = parsed
	}

	txn, err := h.transactionService.Record(c.Request.Context(), &service.RecordTransactionRequest{
		Type:         req.Type,
		ChannelID:    req.ChannelID,
		RmbAmount:    req.RmbAmount,
		HkdAmount:    req.HkdAmount,
		ExchangeRate: req.ExchangeRate,
		InstantRate:  req.InstantRate,
		SubmitTime:   submitTime,
		Remark:       req.Remark,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTransactionType),
			errors.Is(err, service.ErrInvalidAmount),
			errors.Is(err, service.ErrInvalidRate):
			response.BusinessError(c, response.CodeInvalidAmount, err.Error())
		case errors.Is(err, repository.ErrChannelNotFound):
			response.BusinessError(c, response.CodeChannelNotFound, err.Error())
		case errors.Is(err, service.ErrChannelInactive):
			response.BusinessError(c, response.CodeChannelInactive, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, txn)
}

// EditTransactionRequest 修改未结算流水请求
type EditTransactionRequest struct {
	RmbAmount    *decimal.Decimal `json:"rmb_amount"`
	HkdAmount    *decimal.Decimal `json:"hkd_amount"`
	ExchangeRate *decimal.Decimal `json:"exchange_rate"`
	Remark       *string          `json:"remark"`
}

// EditTransaction 修改未结算流水
// POST /api/v1/transaction/:id/edit
func (h *Handler) EditTransaction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req EditTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	txn, err := h.transactionService.Edit(c.Request.Context(), id, &service.EditTransactionRequest{
		RmbAmount:    req.RmbAmount,
		HkdAmount:    req.HkdAmount,
		ExchangeRate: req.ExchangeRate,
		Remark:       req.Remark,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTransactionNotFound):
			response.BusinessError(c, response.CodeTransactionNotFound, err.Error())
		case errors.Is(err, service.ErrTransactionSettled):
			response.BusinessError(c, response.CodeTransactionSettled, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, txn)
}

// DeleteTransaction 删除未结算流水
// POST /api/v1/transaction/:id/delete
func (h *Handler) DeleteTransaction(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.transactionService.Delete(c.Request.Context(), id); err != nil {
		switch {
		case errors.Is(err, repository.ErrTransactionNotFound):
			response.BusinessError(c, response.CodeTransactionNotFound, err.Error())
		case errors.Is(err, service.ErrTransactionSettled):
			response.BusinessError(c, response.CodeTransactionSettled, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, gin.H{"message": "流水已删除"})
}

// ListTransactions 流水列表
// GET /api/v1/transaction/list?channel_id=&type=&settlement_status=&page=1&page_size=20
func (h *Handler) ListTransactions(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	channelID, _ := strconv.ParseInt(c.DefaultQuery("channel_id", "0"), 10, 64)

	filter := &repository.TransactionFilter{
		ChannelID:        channelID,
		Type:             c.Query("type"),
		SettlementStatus: c.Query("settlement_status"),
	}

	transactions, total, err := h.transactionService.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 余额接口
// ============================================================

// LiveBalance 渠道实时余额
// GET /api/v1/balance/live?channel_id=xxx&currency=RMB
func (h *Handler) LiveBalance(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Query("channel_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "channel_id 参数错误")
		return
	}
	currency := c.Query("currency")

	balance, err := h.balanceService.LiveBalance(c.Request.Context(), channelID, currency)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCurrency) {
			response.BusinessError(c, response.CodeInvalidCurrency, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"channel_id": channelID,
		"currency":   currency,
		"balance":    balance,
	})
}

// BalanceHistory 渠道余额历史（按日）
// GET /api/v1/balance/history?channel_id=xxx&currency=RMB&start_date=&end_date=
func (h *Handler) BalanceHistory(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Query("channel_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "channel_id 参数错误")
		return
	}
	currency := c.Query("currency")
	start, ok := parseDate(c, "start_date")
	if !ok {
		return
	}
	end, ok := parseDate(c, "end_date")
	if !ok {
		return
	}

	rows, err := h.balanceService.BalanceHistory(c.Request.Context(), channelID, currency, start, end)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCurrency) {
			response.BusinessError(c, response.CodeInvalidCurrency, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, rows)
}

// DailyBalances 某日全渠道余额快照
// GET /api/v1/balance/daily?currency=RMB&date=2024-01-15
func (h *Handler) DailyBalances(c *gin.Context) {
	currency := c.Query("currency")
	date, ok := parseDate(c, "date")
	if !ok {
		return
	}

	rows, err := h.balanceService.DailyBalances(c.Request.Context(), currency, date)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCurrency) {
			response.BusinessError(c, response.CodeInvalidCurrency, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, rows)
}

// ListAdjustments 渠道余额调整历史
// GET /api/v1/balance/adjustments?channel_id=xxx&page=1&page_size=20
func (h *Handler) ListAdjustments(c *gin.Context) {
	channelID, err := strconv.ParseInt(c.Query("channel_id"), 10, 64)
	if err != nil {
		response.ParamError(c, "channel_id 参数错误")
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	adjustments, total, err := h.balanceService.ListAdjustments(c.Request.Context(), channelID, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"list":      adjustments,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// RecalculateBalancesRequest 余额重算请求
type RecalculateBalancesRequest struct {
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
	ChannelID int64  `json:"channel_id"` // 0 为全部启用渠道
}

// RecalculateBalances 管理员回补/重算余额
// POST /api/v1/balance/recalculate
func (h *Handler) RecalculateBalances(c *gin.Context) {
	var req RecalculateBalancesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	start, err := time.ParseInLocation(dateLayout, req.StartDate, time.Local)
	if err != nil {
		response.ParamError(c, "start_date 格式错误")
		return
	}
	end, err := time.ParseInLocation(dateLayout, req.EndDate, time.Local)
	if err != nil {
		response.ParamError(c, "end_date 格式错误")
		return
	}

	if err := h.balanceService.RecalculateRange(c.Request.Context(), start, end, req.ChannelID); err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			response.BusinessError(c, response.CodeChannelNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "余额重算完成"})
}

// AdjustBalanceRequest 余额调整请求
type AdjustBalanceRequest struct {
	ChannelID int64           `json:"channel_id" binding:"required"`
	Currency  string          `json:"currency" binding:"required"`
	Delta     decimal.Decimal `json:"delta" binding:"required"`
	Reason    string          `json:"reason" binding:"required"`
	Operator  string          `json:"operator" binding:"required"`
}

// AdjustBalance 人工调整渠道余额
// POST /api/v1/balance/adjust
func (h *Handler) AdjustBalance(c *gin.Context) {
	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	adjustment, err := h.balanceService.AdjustBalance(c.Request.Context(),
		req.ChannelID, req.Currency, req.Delta, "MANUAL", req.Reason, req.Operator)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCurrency):
			response.BusinessError(c, response.CodeInvalidCurrency, err.Error())
		case errors.Is(err, repository.ErrChannelNotFound):
			response.BusinessError(c, response.CodeChannelNotFound, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, adjustment)
}

// ============================================================
// 结算接口
// ============================================================

// SettlementPreview 结算预览
// GET /api/v1/settlement/preview
//
// 【关键点】预览是只读的，不产生任何副作用；
// 确认页展示的就是这里返回的原始数字
func (h *Handler) SettlementPreview(c *gin.Context) {
	preview, err := h.settlementService.Preview(c.Request.Context())
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, preview)
}

// ExecuteSettlementRequest 执行结算请求
type ExecuteSettlementRequest struct {
	Expenses []service.ExpenseItem `json:"expenses"`
	Notes    string                `json:"notes"`
}

// ExecuteSettlement 执行结算
// POST /api/v1/settlement/execute
//
// 【关键点】执行时刻重新计算全部金额，客户端传来的预览数字只用于展示；
// 建结算、关账、更新本金必须同时成功或同时失败
func (h *Handler) ExecuteSettlement(c *gin.Context) {
	var req ExecuteSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	settlement, err := h.settlementService.Execute(c.Request.Context(), req.Expenses, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSettlementConflict):
			response.BusinessError(c, response.CodeSettlementConflict, err.Error())
		case errors.Is(err, service.ErrExpenseInvalid):
			response.BusinessError(c, response.CodeInvalidAmount, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}
	response.Success(c, settlement)
}

// SettlementHistory 结算历史
// GET /api/v1/settlement/history?page=1&page_size=10
func (h *Handler) SettlementHistory(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	settlements, total, err := h.settlementService.History(c.Request.Context(), page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"list":      settlements,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// SettlementDetail 结算详情（含杂项支出明细）
// GET /api/v1/settlement/:id
func (h *Handler) SettlementDetail(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	settlement, expenses, err := h.settlementService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSettlementNotFound) {
			response.BusinessError(c, response.CodeSettlementNotFound, err.Error())
			return
		}
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{
		"settlement": settlement,
		"expenses":   expenses,
	})
}

// ============================================================
// 报表接口
// ============================================================

// DailyReport 日报
// GET /api/v1/report/daily?date=2024-01-15
func (h *Handler) DailyReport(c *gin.Context) {
	date, ok := parseDate(c, "date")
	if !ok {
		return
	}

	report, err := h.reportService.DailyReport(c.Request.Context(), date)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, report)
}

// PersistCarryForward 落当日结转余额
// POST /api/v1/report/carry-forward?date=2024-01-15
func (h *Handler) PersistCarryForward(c *gin.Context) {
	date, ok := parseDate(c, "date")
	if !ok {
		return
	}

	if err := h.reportService.PersistCarryForward(c.Request.Context(), date); err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, gin.H{"message": "结转完成"})
}

// PeriodReportRequest 月报/年报请求
type PeriodReportRequest struct {
	Year          int                   `json:"year" binding:"required"`
	Month         int                   `json:"month"`
	OtherExpenses []service.ExpenseItem `json:"other_expenses"`
}

// MonthlyReport 月报
// POST /api/v1/report/monthly
func (h *Handler) MonthlyReport(c *gin.Context) {
	var req PeriodReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	if req.Month < 1 || req.Month > 12 {
		response.ParamError(c, "month 参数错误")
		return
	}

	report, err := h.reportService.MonthlyReport(c.Request.Context(), req.Year, time.Month(req.Month), req.OtherExpenses)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, report)
}

// YearlyReport 年报
// POST /api/v1/report/yearly
func (h *Handler) YearlyReport(c *gin.Context) {
	var req PeriodReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	report, err := h.reportService.YearlyReport(c.Request.Context(), req.Year, req.OtherExpenses)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}
	response.Success(c, report)
}
