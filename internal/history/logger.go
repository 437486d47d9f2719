package history

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"wisefido-firewatch/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State 历史记录器状态
// Unconfigured → Connecting → Enabled | Disabled，Disabled 后不再重连
type State int

const (
	StateUnconfigured State = iota
	StateConnecting
	StateEnabled
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateEnabled:
		return "enabled"
	case StateDisabled:
		return "disabled"
	default:
		return "unconfigured"
	}
}

// DefaultHoursBack 默认查询时间窗口（小时）
const DefaultHoursBack = 24

// Options 历史记录器配置
type Options struct {
	Project  string // 数据库名称
	Dataset  string
	Table    string
	Location string // 区域标识
}

// Status 历史记录器状态快照
type Status struct {
	StoreConfigured bool    `json:"store_configured"`
	Enabled         bool    `json:"enabled"`
	State           string  `json:"state"`
	Project         string  `json:"project_id"`
	Dataset         string  `json:"dataset_id"`
	Table           string  `json:"table_id"`
	Location        string  `json:"location"`
	TableCreated    bool    `json:"table_created"`
	FullTableID     *string `json:"full_table_id"`
	InitError       string  `json:"init_error,omitempty"`
}

// Logger 把每个批次的读数写入历史存储
type Logger struct {
	store  Store
	opts   Options
	logger *zap.Logger
	now    func() time.Time
	newID  func() string

	mu           sync.RWMutex
	state        State
	tableCreated bool
	initErr      error
}

// NewLogger 创建历史记录器；store 为 nil 时保持 Unconfigured
func NewLogger(store Store, opts Options, logger *zap.Logger) *Logger {
	return &Logger{
		store:  store,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		newID:  newDetectionID,
		state:  StateUnconfigured,
	}
}

// Init 连接存储并确保 schema 存在；失败时进入 Disabled（非致命）
// 只在第一次调用时生效
func (l *Logger) Init(ctx context.Context) error {
	l.mu.Lock()
	if l.store == nil || l.state != StateUnconfigured {
		l.mu.Unlock()
		return nil
	}
	l.state = StateConnecting
	l.mu.Unlock()

	err := l.connect(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.state = StateDisabled
		l.initErr = err
		l.logger.Warn("History store initialization failed, detection will continue without history logging",
			zap.String("table_id", l.store.TableID()),
			zap.Error(err),
		)
		return err
	}

	l.state = StateEnabled
	l.tableCreated = true
	l.logger.Info("History logging enabled",
		zap.String("table_id", l.store.TableID()),
	)
	return nil
}

func (l *Logger) connect(ctx context.Context) error {
	if err := l.store.Ping(ctx); err != nil {
		return fmt.Errorf("failed to connect history store: %w", err)
	}
	if err := l.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("failed to prepare history schema: %w", err)
	}
	return nil
}

// State 当前状态
func (l *Logger) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Enabled 是否可写入
func (l *Logger) Enabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateEnabled && l.tableCreated
}

// LogBatch 写入一个批次，结果总是以状态返回
func (l *Logger) LogBatch(ctx context.Context, batch *models.Batch, detectionTime time.Time) models.LoggingOutcome {
	if !l.Enabled() {
		return models.LoggingOutcome{Enabled: false, Status: models.LoggingStoreNotEnabled}
	}
	if batch.Len() == 0 {
		return models.LoggingOutcome{Enabled: true, Status: models.LoggingNoDataToLog}
	}

	detectionID := l.newID()
	rows := BuildRecords(batch, detectionID, detectionTime)

	rowErrors, err := l.store.InsertRows(ctx, rows)
	if err != nil {
		l.logger.Error("Failed to insert history rows",
			zap.String("detection_id", detectionID),
			zap.Int("rows_attempted", len(rows)),
			zap.Error(err),
		)
		return models.LoggingOutcome{
			Enabled:       true,
			Status:        models.LoggingError,
			Error:         err.Error(),
			RowsAttempted: len(rows),
		}
	}

	if len(rowErrors) > 0 {
		l.logger.Warn("History insert returned row errors",
			zap.String("detection_id", detectionID),
			zap.Int("rows_attempted", len(rows)),
			zap.Int("error_count", len(rowErrors)),
		)
		return models.LoggingOutcome{
			Enabled:       true,
			Status:        models.LoggingInsertErrors,
			Errors:        rowErrors,
			RowsAttempted: len(rows),
		}
	}

	l.logger.Info("History rows inserted",
		zap.String("detection_id", detectionID),
		zap.String("table_id", l.store.TableID()),
		zap.Int("rows_inserted", len(rows)),
	)
	return models.LoggingOutcome{
		Enabled:      true,
		Status:       models.LoggingSuccess,
		RowsInserted: len(rows),
		TableID:      l.store.TableID(),
		DetectionID:  detectionID,
	}
}

// QueryHistory 查询最近 hoursBack 小时的历史；存储不可用时 ok=false
func (l *Logger) QueryHistory(ctx context.Context, location string, hoursBack int) ([]models.HistoryRecord, bool) {
	if !l.Enabled() {
		return nil, false
	}
	if hoursBack <= 0 {
		hoursBack = DefaultHoursBack
	}

	filter := models.HistoryFilter{
		Since: l.now().Add(-time.Duration(hoursBack) * time.Hour),
		Limit: 1000,
	}
	if location != "" {
		filter.Location = &location
	}

	records, err := l.store.QueryHistory(ctx, filter)
	if err != nil {
		l.logger.Warn("Failed to query history",
			zap.String("location", location),
			zap.Int("hours_back", hoursBack),
			zap.Error(err),
		)
		return nil, false
	}
	return records, true
}

// Status 返回配置与状态
func (l *Logger) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := Status{
		StoreConfigured: l.store != nil,
		Enabled:         l.state == StateEnabled,
		State:           l.state.String(),
		Project:         l.opts.Project,
		Dataset:         l.opts.Dataset,
		Table:           l.opts.Table,
		Location:        l.opts.Location,
		TableCreated:    l.tableCreated,
	}
	if l.store != nil {
		full := l.opts.Project + "." + l.store.TableID()
		st.FullTableID = &full
	}
	if l.initErr != nil {
		st.InitError = l.initErr.Error()
	}
	return st
}

// BuildRecords 为批次中每条读数构建一行历史记录
func BuildRecords(batch *models.Batch, detectionID string, detectionTime time.Time) []models.HistoryRecord {
	total := batch.Len()
	size := batch.FileSize

	rows := make([]models.HistoryRecord, 0, total)
	for i, r := range batch.Readings {
		location := r.Location
		if location == "" {
			location = "Unknown"
		}
		rows = append(rows, models.HistoryRecord{
			DetectionID:        fmt.Sprintf("%s_%d", detectionID, i),
			FileName:           batch.FileName,
			FilePath:           batch.FilePath,
			Location:           location,
			Temperature:        r.Temperature,
			SmokeLevel:         r.SmokeLevel,
			SensorTimestamp:    ParseSensorTimestamp(r.Timestamp, detectionTime),
			DetectionTimestamp: detectionTime,
			FileSize:           &size,
			TotalReadings:      &total,
		})
	}
	return rows
}

// 不带时区的 ISO-8601 格式，按 UTC 解释
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseSensorTimestamp 解析读数时间戳，失败时返回 fallback（不会报错）
func ParseSensorTimestamp(s string, fallback time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}

	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z")
	} else if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return fallback
}

func newDetectionID() string {
	return "detection_" + uuid.New().String()
}
