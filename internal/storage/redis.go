package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talent-match-go/internal/config"
	"talent-match-go/internal/constants"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound 键不存在时返回，封装底层的redis.Nil
var ErrNotFound = redis.Nil

// Redis 去重登记表存储。
// 内容哈希到候选人ID的映射放在这里，摄取时同一份简历文本
// 无论换了多少次文件名都落到同一个候选人。
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter 创建Redis客户端连接
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis配置不能为空")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis地址不能为空")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子，记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("为Redis添加OpenTelemetry钩子失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("连接Redis %s 失败: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close 关闭Redis连接
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping 检查Redis连接
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	return r.Client.Ping(ctx).Err()
}

// ContentHashExpireDuration 返回配置的内容哈希记录过期时间
func (r *Redis) ContentHashExpireDuration() time.Duration {
	days := r.config.ContentHashExpireDays
	if days <= 0 {
		return constants.DefaultContentHashExpire
	}
	return time.Duration(days) * 24 * time.Hour
}

// RegisterContentHash 原子登记内容哈希到候选人ID的映射。
// 返回 (true, candidateID, nil) 表示本次登记成功；
// 返回 (false, existingID, nil) 表示哈希已被占用，调用方应复用existingID。
func (r *Redis) RegisterContentHash(ctx context.Context, contentHash, candidateID string) (bool, string, error) {
	if r.Client == nil {
		return false, "", fmt.Errorf("redis客户端未初始化")
	}
	if contentHash == "" || candidateID == "" {
		return false, "", fmt.Errorf("内容哈希和候选人ID都不能为空")
	}

	key := fmt.Sprintf(constants.KeyContentHashToID, contentHash)
	ok, err := r.Client.SetNX(ctx, key, candidateID, r.ContentHashExpireDuration()).Result()
	if err != nil {
		return false, "", fmt.Errorf("登记内容哈希失败: %w", err)
	}
	if ok {
		return true, candidateID, nil
	}

	// 并发窗口里被别的进程抢注了，取回已存在的ID
	existing, err := r.Client.Get(ctx, key).Result()
	if err != nil {
		return false, "", fmt.Errorf("获取已登记的候选人ID失败: %w", err)
	}
	return false, existing, nil
}

// LookupContentHash 查询内容哈希对应的候选人ID，未登记时返回ErrNotFound
func (r *Redis) LookupContentHash(ctx context.Context, contentHash string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}

	key := fmt.Sprintf(constants.KeyContentHashToID, contentHash)
	id, err := r.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("查询内容哈希失败: %w", err)
	}
	return id, nil
}

// DeleteContentHash 删除一条内容哈希登记，统一归并后清理旧映射用
func (r *Redis) DeleteContentHash(ctx context.Context, contentHash string) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}
	key := fmt.Sprintf(constants.KeyContentHashToID, contentHash)
	return r.Client.Del(ctx, key).Err()
}
