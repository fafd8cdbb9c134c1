package lock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么结算需要分布式锁？】
//
// 场景：两个管理员几乎同时点击"确认结算"
//
// 如果没有锁：
//   执行1: 读未结算流水100笔 -> 算利润 -> 关账 -> 更新本金
//   执行2: 读到同一批100笔   -> 算利润 -> 再关账  同一批流水被结算两次！
//
// 加了锁之后，执行2要么等待执行1提交后看到空的未结算集合，
// 要么重试超时直接报冲突。数据库内部的 ledger_state 行锁
// 是第二道防线，Redis 锁把冲突挡在事务之外，减少锁等待
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：使用 Lua 脚本保证"检查+删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed = errors.New("获取分布式锁失败")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
//
// 检查 value 是自己的才删除：A 持锁超时自动过期后 B 拿到锁，
// A 迟到的 Unlock 不能把 B 的锁删掉
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：结算执行锁
// ============================================================================

// NewSettlementLock 创建结算执行锁
//
// 结算关的是"当前全部未结算流水"这个全局集合，不存在按渠道并发的余地，
// 所以用一把全局锁；value 用本次结算单号，便于追踪持有者
func NewSettlementLock(client *redis.Client, settlementNo string, expiration time.Duration) *DistributedLock {
	return NewDistributedLock(client, "settlement:lock:execute", settlementNo, expiration)
}
