package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// StreamNotifier 把分析事件写入 Redis Stream（XADD）
type StreamNotifier struct {
	client *redis.Client
	stream string
}

// NewStreamNotifier 创建 Stream 推送
func NewStreamNotifier(client *redis.Client, stream string) *StreamNotifier {
	return &StreamNotifier{
		client: client,
		stream: stream,
	}
}

func (s *StreamNotifier) Name() string { return "redis_stream:" + s.stream }

// Notify 写入一条消息：event_type / risk_level / data(JSON) / timestamp
func (s *StreamNotifier) Notify(ctx context.Context, event AnalysisEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis event: %w", err)
	}

	_, err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"event_type": event.EventType,
			"session_id": event.SessionID,
			"risk_level": event.OverallRiskLevel.String(),
			"data":       string(data),
			"timestamp":  time.Now().Unix(),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to stream %s: %w", s.stream, err)
	}
	return nil
}
