package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier 通过 HTTP POST 推送分析事件
type WebhookNotifier struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookNotifier 创建 Webhook 推送
func NewWebhookNotifier(url string, retryCount int, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(retryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Notify(ctx context.Context, event AnalysisEvent) error {
	resp, err := w.httpClient.R().
		SetContext(ctx).
		SetBody(event).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("failed to call webhook: %w", err)
	}

	if resp.IsError() {
		w.logger.Warn("Webhook returned error status",
			zap.String("url", w.url),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}
	return nil
}
