package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"wisefido-firewatch/internal/export"
	"wisefido-firewatch/internal/history"
	"wisefido-firewatch/internal/models"

	"go.uber.org/zap"
)

// FirewatchService 检测与分析服务
type FirewatchService interface {
	Analyze(ctx context.Context, readings []models.Reading) (models.AnalysisResponse, error)
	RunCycle(ctx context.Context, criteria models.DetectionCriteria) models.CycleReport
	ListFiles(pattern string) ([]string, error)
	DataDir() string
	History(ctx context.Context, location string, hoursBack int) ([]models.HistoryRecord, bool)
	HistoryStatus() history.Status
	SessionID() string
	BackendInfo() (name, description string)
}

// FirewatchHandler 检测与分析接口
type FirewatchHandler struct {
	svc        FirewatchService
	classifier export.RiskClassifier
	logger     *zap.Logger
}

func NewFirewatchHandler(svc FirewatchService, classifier export.RiskClassifier, logger *zap.Logger) *FirewatchHandler {
	return &FirewatchHandler{svc: svc, classifier: classifier, logger: logger}
}

// Analyze POST /analyze  body: {"sensor_data": [...]}
func (h *FirewatchHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var payload models.SensorPayload
	if err := readBodyJSON(r, &payload); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body: "+err.Error()))
		return
	}

	resp, err := h.svc.Analyze(r.Context(), payload.SensorData)
	if err != nil {
		h.logger.Error("Analyze failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(fmt.Sprintf("failed to analyze sensor data: %v", err)))
		return
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// Detect POST /detect  body: {"file_path": "...", "pattern": "..."}（均可省略）
func (h *FirewatchHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var criteria models.DetectionCriteria
	if err := readBodyJSON(r, &criteria); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body: "+err.Error()))
		return
	}

	report := h.svc.RunCycle(r.Context(), criteria)
	writeJSON(w, http.StatusOK, Ok(report))
}

// ListFiles GET /files?pattern=*.json
func (h *FirewatchHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	files, err := h.svc.ListFiles(pattern)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"data_dir":   h.svc.DataDir(),
		"pattern":    pattern,
		"files":      files,
		"file_names": names,
		"count":      len(files),
	}))
}

// History GET /history?location=&hours_back=24
func (h *FirewatchHandler) History(w http.ResponseWriter, r *http.Request) {
	location, hoursBack := historyQuery(r)
	records, ok := h.svc.History(r.Context(), location, hoursBack)
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, Unavailable("historical store not available"))
		return
	}

	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"location":   location,
		"hours_back": hoursBack,
		"count":      len(records),
		"records":    records,
	}))
}

// ExportHistory GET /history/export?location=&hours_back=24  返回 xlsx
func (h *FirewatchHandler) ExportHistory(w http.ResponseWriter, r *http.Request) {
	location, hoursBack := historyQuery(r)
	records, ok := h.svc.History(r.Context(), location, hoursBack)
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, Unavailable("historical store not available"))
		return
	}

	data, err := export.GenerateHistoryWorkbook(records, h.classifier)
	if err != nil {
		h.logger.Error("GenerateHistoryWorkbook failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail(fmt.Sprintf("failed to generate export: %v", err)))
		return
	}

	filename := fmt.Sprintf("sensor-history-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	writeAttachment(w, xlsxContentType, filename, data)
}

// Status GET /status
func (h *FirewatchHandler) Status(w http.ResponseWriter, _ *http.Request) {
	name, description := h.svc.BackendInfo()
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"session_id": h.svc.SessionID(),
		"data_dir":   h.svc.DataDir(),
		"agent": map[string]string{
			"agent_name":        name,
			"agent_description": description,
		},
		"history": h.svc.HistoryStatus(),
	}))
}

func historyQuery(r *http.Request) (string, int) {
	return r.URL.Query().Get("location"), queryInt(r, "hours_back", history.DefaultHoursBack)
}
