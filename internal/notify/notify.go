package notify

import (
	"context"
	"errors"
	"fmt"

	"wisefido-firewatch/internal/models"

	"go.uber.org/zap"
)

// AnalysisEvent 推送给下游的分析事件
type AnalysisEvent struct {
	EventType        string               `json:"event_type"`
	SessionID        string               `json:"session_id,omitempty"`
	DetectionID      string               `json:"detection_id,omitempty"`
	FileName         string               `json:"file_name,omitempty"`
	OverallRiskLevel models.RiskLevel     `json:"overall_risk_level"`
	TotalReadings    int                  `json:"total_readings"`
	Analysis         []models.RiskVerdict `json:"analysis"`
	Timestamp        string               `json:"timestamp"`
}

// EventTypeAnalysis 分析完成事件
const EventTypeAnalysis = "risk_analysis"

// NewAnalysisEvent 由分析结果构造事件
func NewAnalysisEvent(result models.AnalysisResult, sessionID string) AnalysisEvent {
	return AnalysisEvent{
		EventType:        EventTypeAnalysis,
		SessionID:        sessionID,
		OverallRiskLevel: result.OverallRiskLevel,
		TotalReadings:    result.TotalReadings,
		Analysis:         result.Analysis,
		Timestamp:        result.Timestamp,
	}
}

// Notifier 分析事件推送
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event AnalysisEvent) error
}

// Fanout 推送给多个下游；单个下游失败不影响其他下游
type Fanout struct {
	notifiers []Notifier
	minLevel  models.RiskLevel
	logger    *zap.Logger
}

// NewFanout 创建 Fanout；低于 minLevel 的事件不推送
func NewFanout(minLevel models.RiskLevel, logger *zap.Logger, notifiers ...Notifier) *Fanout {
	return &Fanout{
		notifiers: notifiers,
		minLevel:  minLevel,
		logger:    logger,
	}
}

// Add 追加下游
func (f *Fanout) Add(n Notifier) {
	f.notifiers = append(f.notifiers, n)
}

// Len 下游数量
func (f *Fanout) Len() int {
	return len(f.notifiers)
}

// Names 下游名称
func (f *Fanout) Names() []string {
	names := make([]string, 0, len(f.notifiers))
	for _, n := range f.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// Notify 依次推送，返回合并后的错误
func (f *Fanout) Notify(ctx context.Context, event AnalysisEvent) error {
	if event.OverallRiskLevel < f.minLevel {
		f.logger.Debug("Analysis event below notify threshold, skipped",
			zap.String("risk_level", event.OverallRiskLevel.String()),
			zap.String("min_level", f.minLevel.String()),
		)
		return nil
	}

	var errs []error
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			f.logger.Warn("Failed to publish analysis event",
				zap.String("notifier", n.Name()),
				zap.String("risk_level", event.OverallRiskLevel.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		f.logger.Debug("Analysis event published",
			zap.String("notifier", n.Name()),
			zap.String("session_id", event.SessionID),
		)
	}
	return errors.Join(errs...)
}
