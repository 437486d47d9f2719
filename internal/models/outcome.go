package models

// 检测状态
const (
	StatusDataDetected = "data_detected"
	StatusNoDataFound  = "no_data_found"
	StatusFileNotFound = "file_not_found"
	StatusInvalidJSON  = "invalid_json"
	StatusReadError    = "read_error"
)

// 历史记录写入状态
const (
	LoggingNotAttempted    = "not_attempted"
	LoggingNoDataToLog     = "no_data_to_log"
	LoggingStoreNotEnabled = "store_not_enabled"
	LoggingSuccess         = "success"
	LoggingInsertErrors    = "insert_errors"
	LoggingError           = "error"
)

// LoggingOutcome 历史记录写入结果（每个检测结果都会带上）
type LoggingOutcome struct {
	Enabled       bool       `json:"enabled"`
	Status        string     `json:"status"`
	RowsInserted  int        `json:"rows_inserted,omitempty"`
	RowsAttempted int        `json:"rows_attempted,omitempty"`
	TableID       string     `json:"table_id,omitempty"`
	DetectionID   string     `json:"detection_id,omitempty"`
	Errors        []RowError `json:"errors,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// DetectionInfo 检测元数据
type DetectionInfo struct {
	FilePath      string `json:"file_path,omitempty"`
	FileName      string `json:"file_name,omitempty"`
	FileSize      int64  `json:"file_size,omitempty"`
	ReadTimestamp string `json:"read_timestamp,omitempty"`

	// 未找到文件时填充
	DirectoryChecked string `json:"directory_checked,omitempty"`
	PatternSearched  string `json:"pattern_searched,omitempty"`
	FilesFound       *int   `json:"files_found,omitempty"`
}

// DetectionOutcome 一次检测的结构化结果，调用方按 Status 分支处理
type DetectionOutcome struct {
	Status        string         `json:"status"`
	Message       string         `json:"message,omitempty"`
	Error         string         `json:"error,omitempty"`
	Timestamp     string         `json:"timestamp,omitempty"`
	SensorData    []Reading      `json:"sensor_data,omitempty"`
	DetectionInfo *DetectionInfo `json:"detection_info,omitempty"`
	Logging       LoggingOutcome `json:"logging"`

	// Batch 仅在 data_detected 时非空，不参与序列化
	Batch *Batch `json:"-"`
}

// Detected 是否成功读取到数据
func (o *DetectionOutcome) Detected() bool {
	return o.Status == StatusDataDetected && o.Batch != nil
}

// DetectionCriteria 检测条件
type DetectionCriteria struct {
	FilePath string `json:"file_path,omitempty"` // 指定文件（相对路径基于数据目录）
	Pattern  string `json:"pattern,omitempty"`   // glob，默认 "*.json"
}

// AgentInfo 分析后端信息（附加在分析结果上）
type AgentInfo struct {
	AgentName           string `json:"agent_name"`
	AgentDescription    string `json:"agent_description"`
	ProcessingTimestamp string `json:"processing_timestamp"`
}

// AnalysisResponse 返回给调用方的分析结果
type AnalysisResponse struct {
	AnalysisResult
	SessionID string     `json:"session_id,omitempty"`
	AgentInfo *AgentInfo `json:"agent_info,omitempty"`
}

// CycleReport 一个完整检测周期的结果
type CycleReport struct {
	Detection DetectionOutcome  `json:"detection"`
	Analysis  *AnalysisResponse `json:"analysis,omitempty"`
}
