package service

import (
	"context"
	"time"

	"wisefido-firewatch/internal/history"
	"wisefido-firewatch/internal/models"
	"wisefido-firewatch/internal/notify"
	"wisefido-firewatch/internal/session"

	"go.uber.org/zap"
)

// Detector 读数来源
type Detector interface {
	DetectNext(criteria models.DetectionCriteria) models.DetectionOutcome
	Find(pattern string) ([]string, error)
	DataDir() string
}

// HistoryLogger 历史记录
type HistoryLogger interface {
	LogBatch(ctx context.Context, batch *models.Batch, detectionTime time.Time) models.LoggingOutcome
	QueryHistory(ctx context.Context, location string, hoursBack int) ([]models.HistoryRecord, bool)
	Status() history.Status
}

// Notifier 分析结果推送
type Notifier interface {
	Notify(ctx context.Context, event notify.AnalysisEvent) error
}

// DetectionService 检测周期：读取 → 记录历史 → 分析 → 推送
type DetectionService struct {
	detector Detector
	history  HistoryLogger
	backend  Backend
	session  session.Session
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewDetectionService 创建检测服务；notifier 可为 nil
func NewDetectionService(
	detector Detector,
	historyLogger HistoryLogger,
	backend Backend,
	sess session.Session,
	notifier Notifier,
	logger *zap.Logger,
) *DetectionService {
	return &DetectionService{
		detector: detector,
		history:  historyLogger,
		backend:  backend,
		session:  sess,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SessionID 当前会话 ID
func (s *DetectionService) SessionID() string {
	if s.session == nil {
		return ""
	}
	return s.session.ID()
}

// Detect 读取下一个批次，读取成功时写入历史
func (s *DetectionService) Detect(ctx context.Context, criteria models.DetectionCriteria) models.DetectionOutcome {
	outcome := s.detector.DetectNext(criteria)
	if !outcome.Detected() {
		s.logger.Info("No sensor data detected",
			zap.String("status", outcome.Status),
			zap.String("error", outcome.Error),
		)
		return outcome
	}

	// 历史行与 detection_info 使用同一个读取时间
	detectionTime := outcome.Batch.ReadAt
	if detectionTime.IsZero() {
		detectionTime = s.now()
	}
	outcome.Logging = s.history.LogBatch(ctx, outcome.Batch, detectionTime.UTC())

	s.logger.Info("Detected batch processed by history logger",
		zap.String("file_name", outcome.Batch.FileName),
		zap.Int("readings", outcome.Batch.Len()),
		zap.String("logging_status", outcome.Logging.Status),
	)
	return outcome
}

// Analyze 分析调用方提交的读数并推送结果
func (s *DetectionService) Analyze(ctx context.Context, readings []models.Reading) (models.AnalysisResponse, error) {
	return s.analyze(ctx, readings, "", "")
}

// RunCycle 执行一个完整检测周期
func (s *DetectionService) RunCycle(ctx context.Context, criteria models.DetectionCriteria) models.CycleReport {
	outcome := s.Detect(ctx, criteria)
	report := models.CycleReport{Detection: outcome}
	if !outcome.Detected() {
		return report
	}

	resp, err := s.analyze(ctx, outcome.Batch.Readings, outcome.Logging.DetectionID, outcome.Batch.FileName)
	if err != nil {
		s.logger.Error("Failed to analyze detected batch",
			zap.String("file_name", outcome.Batch.FileName),
			zap.Error(err),
		)
		return report
	}
	report.Analysis = &resp
	return report
}

func (s *DetectionService) analyze(ctx context.Context, readings []models.Reading, detectionID, fileName string) (models.AnalysisResponse, error) {
	resp, err := s.backend.Analyze(ctx, readings, s.session)
	if err != nil {
		return models.AnalysisResponse{}, err
	}

	if detectionID != "" && s.session != nil {
		if err := s.session.Set(ctx, session.KeyLastDetectionID, detectionID); err != nil {
			s.logger.Warn("Failed to record detection id in session", zap.Error(err))
		}
	}

	if s.notifier != nil {
		event := notify.NewAnalysisEvent(resp.AnalysisResult, resp.SessionID)
		event.DetectionID = detectionID
		event.FileName = fileName
		if err := s.notifier.Notify(ctx, event); err != nil {
			s.logger.Warn("Analysis event not fully delivered", zap.Error(err))
		}
	}
	return resp, nil
}

// ListFiles 列出数据目录中匹配的文件
func (s *DetectionService) ListFiles(pattern string) ([]string, error) {
	return s.detector.Find(pattern)
}

// DataDir 数据目录
func (s *DetectionService) DataDir() string {
	return s.detector.DataDir()
}

// History 查询历史；ok=false 表示存储不可用
func (s *DetectionService) History(ctx context.Context, location string, hoursBack int) ([]models.HistoryRecord, bool) {
	return s.history.QueryHistory(ctx, location, hoursBack)
}

// HistoryStatus 历史存储状态
func (s *DetectionService) HistoryStatus() history.Status {
	return s.history.Status()
}

// BackendInfo 分析后端信息
func (s *DetectionService) BackendInfo() (name, description string) {
	return s.backend.Name(), s.backend.Description()
}
