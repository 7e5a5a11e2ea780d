package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"mailproxy/backend/internal/config"
	"mailproxy/backend/internal/domain"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Cache Redis 缓存实现
type Cache struct {
	client *goredis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(cfg *config.RedisConfig) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx := context.Background()

	// 测试连接
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// ========== 账户缓存 ==========

// CacheAccount 缓存账户信息
func (c *Cache) CacheAccount(account *domain.Account, ttl time.Duration) error {
	key := fmt.Sprintf("account:%s", account.Email)
	data, err := json.Marshal(account)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedAccount 获取缓存的账户信息
func (c *Cache) GetCachedAccount(email string) (*domain.Account, error) {
	key := fmt.Sprintf("account:%s", email)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var account domain.Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// DeleteCachedAccount 删除缓存的账户信息
func (c *Cache) DeleteCachedAccount(email string) error {
	key := fmt.Sprintf("account:%s", email)
	return c.client.Del(c.ctx, key).Err()
}

// ========== 邮件缓存 ==========

// CacheMessageList 缓存账户的邮件列表
func (c *Cache) CacheMessageList(ownerEmail string, messages []domain.Message, ttl time.Duration) error {
	key := fmt.Sprintf("messages:%s", ownerEmail)
	data, err := json.Marshal(messages)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedMessageList 获取缓存的邮件列表
func (c *Cache) GetCachedMessageList(ownerEmail string) ([]domain.Message, error) {
	key := fmt.Sprintf("messages:%s", ownerEmail)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var messages []domain.Message
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteCachedMessageList 删除缓存的邮件列表
func (c *Cache) DeleteCachedMessageList(ownerEmail string) error {
	key := fmt.Sprintf("messages:%s", ownerEmail)
	return c.client.Del(c.ctx, key).Err()
}

// CacheMessage 缓存单封邮件（含正文）
func (c *Cache) CacheMessage(message *domain.Message, ttl time.Duration) error {
	key := fmt.Sprintf("message:%s:%s", message.OwnerEmail, message.MessageID)
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedMessage 获取缓存的单封邮件
func (c *Cache) GetCachedMessage(ownerEmail, messageID string) (*domain.Message, error) {
	key := fmt.Sprintf("message:%s:%s", ownerEmail, messageID)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var message domain.Message
	if err := json.Unmarshal([]byte(data), &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// DeleteCachedMessage 删除缓存的单封邮件
func (c *Cache) DeleteCachedMessage(ownerEmail, messageID string) error {
	key := fmt.Sprintf("message:%s:%s", ownerEmail, messageID)
	return c.client.Del(c.ctx, key).Err()
}

// InvalidateOwner 删除账户的全部缓存条目
func (c *Cache) InvalidateOwner(ownerEmail string) error {
	keys := []string{
		fmt.Sprintf("account:%s", ownerEmail),
		fmt.Sprintf("messages:%s", ownerEmail),
	}
	if err := c.client.Del(c.ctx, keys...).Err(); err != nil {
		return err
	}

	// 单封邮件缓存按前缀扫描删除
	pattern := fmt.Sprintf("message:%s:*", ownerEmail)
	iter := c.client.Scan(c.ctx, 0, pattern, 100).Iterator()
	for iter.Next(c.ctx) {
		if err := c.client.Del(c.ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// ========== 域名缓存 ==========

// CacheDomainList 缓存域名列表
func (c *Cache) CacheDomainList(domains []domain.MailDomain, ttl time.Duration) error {
	key := "mail_domains:list"
	data, err := json.Marshal(domains)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedDomainList 获取缓存的域名列表
func (c *Cache) GetCachedDomainList() ([]domain.MailDomain, error) {
	key := "mail_domains:list"
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	var domains []domain.MailDomain
	if err := json.Unmarshal([]byte(data), &domains); err != nil {
		return nil, err
	}
	return domains, nil
}

// DeleteCachedDomainList 删除缓存的域名列表
func (c *Cache) DeleteCachedDomainList() error {
	return c.client.Del(c.ctx, "mail_domains:list").Err()
}

// ========== 工具方法 ==========

// Ping 测试 Redis 连接
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}
