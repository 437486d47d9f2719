package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrKeyNotFound 会话中不存在该键
var ErrKeyNotFound = errors.New("session key not found")

// 会话中保存的键
const (
	KeyLastRiskLevel    = "last_risk_level"
	KeyLastAnalysisTime = "last_analysis_timestamp"
	KeyLastDetectionID  = "last_detection_id"
)

// DefaultTTL Redis 会话过期时间
const DefaultTTL = 24 * time.Hour

// Session 分析会话（按会话保存最近一次分析结果）
type Session interface {
	ID() string
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// NewID 生成会话 ID：disaster_response_<uuid>
func NewID() string {
	return "disaster_response_" + uuid.New().String()
}

// MemorySession 进程内会话
type MemorySession struct {
	id   string
	mu   sync.RWMutex
	data map[string]string
}

// NewMemorySession 创建内存会话；id 为空时自动生成
func NewMemorySession(id string) *MemorySession {
	if id == "" {
		id = NewID()
	}
	return &MemorySession{id: id, data: make(map[string]string)}
}

func (s *MemorySession) ID() string { return s.id }

func (s *MemorySession) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

func (s *MemorySession) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// RedisSession 基于 Redis Hash 的会话（key: firewatch:session:<id>）
type RedisSession struct {
	id     string
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSession 创建 Redis 会话；ttl<=0 时使用 DefaultTTL
func NewRedisSession(client *redis.Client, id string, ttl time.Duration) *RedisSession {
	if id == "" {
		id = NewID()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisSession{id: id, client: client, ttl: ttl}
}

func (s *RedisSession) ID() string { return s.id }

func (s *RedisSession) key() string {
	return "firewatch:session:" + s.id
}

func (s *RedisSession) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.HGet(ctx, s.key(), key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrKeyNotFound
		}
		return "", err
	}
	return val, nil
}

func (s *RedisSession) Set(ctx context.Context, key, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(), key, value)
	pipe.Expire(ctx, s.key(), s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}
