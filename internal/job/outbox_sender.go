package job

import (
	"context"
	"log"
	"time"

	"cashledger/internal/config"
	"cashledger/internal/infrastructure/mq"
	"cashledger/internal/model"
	"cashledger/internal/repository"

	"gorm.io/gorm"
)

// OutboxSender 把发件箱里的结算/调整事件投递到 Kafka
// 投递失败只累加重试，不阻塞后续事件；超过上限的事件留作人工排查
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	cfg        *config.Config
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, cfg *config.Config) *OutboxSender {
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		cfg:        cfg,
		interval:   time.Second,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 事件投递任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 事件投递任务退出")
			return
		case <-ticker.C:
			s.drain(ctx)
		}
	}
}

// drain 一轮把当前积压的待投递事件全部处理完
func (s *OutboxSender) drain(ctx context.Context) {
	for {
		messages, err := s.outboxRepo.ListPending(ctx, s.batchSize)
		if err != nil {
			log.Printf("[OutboxSender] 查询待投递事件失败: %v", err)
			return
		}
		if len(messages) == 0 {
			return
		}
		for _, msg := range messages {
			s.deliver(ctx, msg)
		}
		if len(messages) < s.batchSize {
			return
		}
	}
}

func (s *OutboxSender) deliver(ctx context.Context, msg *model.OutboxMessage) {
	if err := mq.SendMessage(msg.Topic, msg.MessageKey, msg.Payload); err != nil {
		log.Printf("[OutboxSender] 投递失败: id=%d, topic=%s, err=%v", msg.ID, msg.Topic, err)
		if markErr := s.outboxRepo.MarkRetry(ctx, msg.ID, s.cfg.Business.MaxRetryCount); markErr != nil {
			log.Printf("[OutboxSender] 记录重试失败: id=%d, err=%v", msg.ID, markErr)
		}
		return
	}

	if err := s.outboxRepo.MarkSent(ctx, msg.ID); err != nil {
		log.Printf("[OutboxSender] 更新事件状态失败: id=%d, err=%v", msg.ID, err)
		return
	}
	log.Printf("[OutboxSender] 事件已投递: id=%d, topic=%s, key=%s", msg.ID, msg.Topic, msg.MessageKey)
}
