package job

import (
	"context"
	"log"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/model"
	"cashledger/internal/repository"
	"cashledger/internal/service"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// DailyBalanceJob 日结任务
//
// 每天定时对所有启用渠道重算前一日与当日的余额行，
// 然后把前一日的期末余额落成结转记录，作为报表的"昨日余额"种子
type DailyBalanceJob struct {
	db             *gorm.DB
	cfg            *config.Config
	channelRepo    *repository.ChannelRepository
	balanceService *service.BalanceService
	reportService  *service.ReportService
	cron           *cron.Cron
}

func NewDailyBalanceJob(db *gorm.DB, cfg *config.Config) *DailyBalanceJob {
	return &DailyBalanceJob{
		db:             db,
		cfg:            cfg,
		channelRepo:    repository.NewChannelRepository(db),
		balanceService: service.NewBalanceService(db, cfg),
		reportService:  service.NewReportService(db, cfg),
		cron:           cron.New(),
	}
}

func (j *DailyBalanceJob) Start(ctx context.Context) {
	spec := j.cfg.Business.DailyBalanceCron
	_, err := j.cron.AddFunc(spec, func() {
		j.run(ctx)
	})
	if err != nil {
		log.Printf("[DailyBalanceJob] cron 表达式不合法: %q, err=%v", spec, err)
		return
	}

	j.cron.Start()
	log.Printf("[DailyBalanceJob] 日结任务启动: cron=%q", spec)

	<-ctx.Done()
	stopCtx := j.cron.Stop()
	<-stopCtx.Done()
	log.Println("[DailyBalanceJob] 收到停止信号，任务退出")
}

// RunOnce 手动触发一次日结（含回补场景）
func (j *DailyBalanceJob) RunOnce(ctx context.Context) {
	j.run(ctx)
}

func (j *DailyBalanceJob) run(ctx context.Context) {
	today := service.DateOf(time.Now())
	yesterday := today.AddDate(0, 0, -1)

	channels, err := j.channelRepo.ListActive(ctx)
	if err != nil {
		log.Printf("[DailyBalanceJob] 读取渠道列表失败: %v", err)
		return
	}

	for _, channel := range channels {
		for _, currency := range model.Currencies {
			for _, date := range []time.Time{yesterday, today} {
				if _, err := j.balanceService.CalculateDailyBalance(ctx, nil, channel.ID, currency, date); err != nil {
					log.Printf("[DailyBalanceJob] 日结失败: channelID=%d, currency=%s, date=%s, err=%v",
						channel.ID, currency, date.Format("2006-01-02"), err)
					return
				}
			}
		}
	}

	if err := j.reportService.PersistCarryForward(ctx, yesterday); err != nil {
		log.Printf("[DailyBalanceJob] 结转失败: date=%s, err=%v", yesterday.Format("2006-01-02"), err)
		return
	}

	log.Printf("[DailyBalanceJob] 日结完成: date=%s, 渠道数=%d", yesterday.Format("2006-01-02"), len(channels))
}
