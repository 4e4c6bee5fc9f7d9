/*
 * @module service/distributed_lock/redis_lock
 * @description 运行锁实现，同一版本同类运行防并发；Redis 多实例锁，未配置时退化为进程内锁
 * @architecture 工具层 - 提供运行互斥能力
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 获取锁 -> 执行运行 -> 释放锁/自动过期
 * @rules Redis 用 SET NX 实现，仅持有者可释放；锁键 = 运行类型:版本ID
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/init.go, api/controllers/detection_controller.go, api/controllers/imputation_controller.go
 */

package distributed_lock

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// RunLock 运行锁接口
type RunLock interface {
	// TryLock 尝试获取锁，已被持有时返回 false
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Unlock 释放锁
	Unlock(ctx context.Context, key string) error
	// Close 释放底层资源
	Close() error
}

// NewRunLockFromEnv 按环境变量装配运行锁
// 配置了 REDIS_HOST 时使用 Redis 分布式锁，否则使用进程内锁
func NewRunLockFromEnv() RunLock {
	if os.Getenv("REDIS_HOST") == "" {
		slog.Info("未配置 Redis，运行锁使用进程内实现")
		return NewLocalLock()
	}
	lock, err := NewRedisLock()
	if err != nil {
		slog.Error("Redis 运行锁初始化失败，降级为进程内锁", "error", err)
		return NewLocalLock()
	}
	return lock
}

// RedisLock Redis 运行锁实现
type RedisLock struct {
	client     *redis.Client
	instanceID string // 锁持有者标识
}

// NewRedisLock 创建 Redis 运行锁
func NewRedisLock() (*RedisLock, error) {
	host := getEnvWithDefault("REDIS_HOST", "localhost")
	port := getEnvWithDefault("REDIS_PORT", "6379")
	password := os.Getenv("REDIS_PASSWORD")
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		fmt.Sscanf(dbStr, "%d", &db)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	hostname, _ := os.Hostname()
	instanceID := fmt.Sprintf("%s:%d", hostname, os.Getpid())

	slog.Info("Redis 运行锁初始化成功",
		"instance_id", instanceID,
		"redis_host", host,
		"redis_port", port)

	return &RedisLock{client: client, instanceID: instanceID}, nil
}

// TryLock 尝试获取锁，使用 SET NX，key 不存在时才设置成功
func (r *RedisLock) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	lockKey := fmt.Sprintf("quality_run:lock:%s", key)

	result, err := r.client.SetNX(ctx, lockKey, r.instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("获取锁失败: %w", err)
	}
	if result {
		slog.Debug("运行锁: 成功获取锁", "key", key, "ttl", ttl, "instance", r.instanceID)
	}
	return result, nil
}

// Unlock 释放锁，Lua 脚本保证只有持有者能释放
func (r *RedisLock) Unlock(ctx context.Context, key string) error {
	lockKey := fmt.Sprintf("quality_run:lock:%s", key)

	script := `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	result, err := r.client.Eval(ctx, script, []string{lockKey}, r.instanceID).Result()
	if err != nil {
		return fmt.Errorf("释放锁失败: %w", err)
	}
	if result.(int64) != 1 {
		slog.Warn("运行锁: 锁不存在或已被其他实例持有", "key", key, "instance", r.instanceID)
	}
	return nil
}

// Close 关闭 Redis 客户端
func (r *RedisLock) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// LocalLock 进程内运行锁，单实例部署时使用
type LocalLock struct {
	mu    sync.Mutex
	held  map[string]time.Time // key -> 过期时间
}

// NewLocalLock 创建进程内运行锁
func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(map[string]time.Time)}
}

// TryLock 尝试获取锁，过期的持有视同未持有
func (l *LocalLock) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.held[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	l.held[key] = time.Now().Add(ttl)
	return true, nil
}

// Unlock 释放锁
func (l *LocalLock) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

// Close 进程内锁无需释放资源
func (l *LocalLock) Close() error {
	return nil
}

// getEnvWithDefault 获取环境变量，不存在时返回默认值
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
