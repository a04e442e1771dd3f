package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/LJTian/JuventudHub/internal/logger"
	"github.com/LJTian/JuventudHub/internal/processor"
	"github.com/redis/go-redis/v9"
)

const (
	articlesCacheKey = "youthnews:articles"
	// DefaultCacheTTL 看板频繁读取，短 TTL 即可减轻文件解析压力
	DefaultCacheTTL = 60 * time.Second
)

// CachedRepository 在 Repository 前加一层 Redis 缓存；Save 成功后清掉缓存。
// Redis 不可用时直接读写底层存储。
type CachedRepository struct {
	next Repository
	rdb  *redis.Client
	ttl  time.Duration
	log  logger.Logger
}

func NewCachedRepository(next Repository, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedRepository {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedRepository{next: next, rdb: rdb, ttl: ttl, log: log}
}

// NewRedisClient 连接失败只记录告警，缓存层会自动降级
func NewRedisClient(ctx context.Context, addr string, log logger.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis ping failed", logger.String("addr", addr), logger.Err(err))
	}
	return rdb
}

func (c *CachedRepository) Load(ctx context.Context) ([]processor.Article, error) {
	if c.rdb != nil {
		bs, err := c.rdb.Get(ctx, articlesCacheKey).Bytes()
		switch {
		case err == nil:
			var cached []processor.Article
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		case !errors.Is(err, redis.Nil):
			c.log.Debug("article cache read failed", logger.Err(err))
		}
	}

	articles, err := c.next.Load(ctx)
	if err != nil {
		return nil, err
	}

	if c.rdb != nil {
		if bs, err := json.Marshal(articles); err == nil {
			if err := c.rdb.Set(ctx, articlesCacheKey, bs, c.ttl).Err(); err != nil {
				c.log.Debug("article cache write failed", logger.Err(err))
			}
		}
	}
	return articles, nil
}

func (c *CachedRepository) Save(ctx context.Context, articles []processor.Article) error {
	if err := c.next.Save(ctx, articles); err != nil {
		return err
	}
	c.Invalidate(ctx)
	return nil
}

// Invalidate 删除缓存，下次 Load 重新读取底层存储
func (c *CachedRepository) Invalidate(ctx context.Context) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, articlesCacheKey).Err(); err != nil {
		c.log.Warn("article cache invalidate failed", logger.Err(err))
	}
}
