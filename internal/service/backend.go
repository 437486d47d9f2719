package service

import (
	"context"
	"time"

	"wisefido-firewatch/internal/classifier"
	"wisefido-firewatch/internal/models"
	"wisefido-firewatch/internal/session"

	"go.uber.org/zap"
)

// Backend 分析后端（对一批读数给出整体风险评估）
type Backend interface {
	Name() string
	Description() string
	Analyze(ctx context.Context, readings []models.Reading, sess session.Session) (models.AnalysisResponse, error)
}

// 分析后端名称与描述
const (
	BackendName        = "disaster_response_agent"
	BackendDescription = "Rule-based fire risk analysis of temperature and smoke sensor readings"
)

// ClassifierBackend 基于阈值分类器的分析后端
type ClassifierBackend struct {
	classifier *classifier.Classifier
	logger     *zap.Logger
	now        func() time.Time
}

// NewClassifierBackend 创建分析后端
func NewClassifierBackend(c *classifier.Classifier, logger *zap.Logger) *ClassifierBackend {
	return &ClassifierBackend{
		classifier: c,
		logger:     logger,
		now:        time.Now,
	}
}

func (b *ClassifierBackend) Name() string { return BackendName }

func (b *ClassifierBackend) Description() string { return BackendDescription }

// Analyze 分类并聚合；结果写入会话（会话写入失败只记录日志）
func (b *ClassifierBackend) Analyze(ctx context.Context, readings []models.Reading, sess session.Session) (models.AnalysisResponse, error) {
	now := b.now()
	result := b.classifier.Analyze(readings, now)

	resp := models.AnalysisResponse{
		AnalysisResult: result,
		AgentInfo: &models.AgentInfo{
			AgentName:           b.Name(),
			AgentDescription:    b.Description(),
			ProcessingTimestamp: now.UTC().Format(time.RFC3339Nano),
		},
	}

	if sess != nil {
		resp.SessionID = sess.ID()
		if err := sess.Set(ctx, session.KeyLastRiskLevel, result.OverallRiskLevel.String()); err != nil {
			b.logger.Warn("Failed to record risk level in session",
				zap.String("session_id", sess.ID()),
				zap.Error(err),
			)
		} else if err := sess.Set(ctx, session.KeyLastAnalysisTime, result.Timestamp); err != nil {
			b.logger.Warn("Failed to record analysis timestamp in session",
				zap.String("session_id", sess.ID()),
				zap.Error(err),
			)
		}
	}

	b.logger.Info("Sensor data analyzed",
		zap.String("overall_risk_level", result.OverallRiskLevel.String()),
		zap.Int("total_readings", result.TotalReadings),
	)
	return resp, nil
}
