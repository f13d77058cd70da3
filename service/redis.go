package service

import (
	"context"
	"errors"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/redis/go-redis/v9"
)

// ResultCache 编码结果缓存，未命中时返回 (nil, nil)
type ResultCache interface {
	GetResult(ctx context.Context, key string) ([]byte, error)
	SetResult(ctx context.Context, key string, data []byte) error
}

type RedisService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisService(cfg *config.RedisConfig) *RedisService {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &RedisService{
		client: client,
		ttl:    cfg.TTL,
	}
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// GetResult 从缓存获取编码后的图像
func (s *RedisService) GetResult(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 缓存未命中
		}
		return nil, err
	}
	return data, nil
}

// SetResult 写入缓存
func (s *RedisService) SetResult(ctx context.Context, key string, data []byte) error {
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

// CacheKey 由上传内容的 md5、输出模式与格式组成
func CacheKey(md5 string, opts model.MattingOptions) string {
	return "matte:" + md5 + ":" + opts.Mode.String() + ":" + string(opts.Format)
}
