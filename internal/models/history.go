package models

import (
	"time"
)

// HistoryRecord 历史表中的一行（对应 sensor_readings 表）
type HistoryRecord struct {
	DetectionID        string    `json:"detection_id" db:"detection_id"`
	FileName           string    `json:"file_name" db:"file_name"`
	FilePath           string    `json:"file_path" db:"file_path"`
	Location           string    `json:"location" db:"location"`
	Temperature        float64   `json:"temperature" db:"temperature"`
	SmokeLevel         float64   `json:"smoke_level" db:"smoke_level"`
	SensorTimestamp    time.Time `json:"sensor_timestamp" db:"sensor_timestamp"`
	DetectionTimestamp time.Time `json:"detection_timestamp" db:"detection_timestamp"`
	FileSize           *int64    `json:"file_size,omitempty" db:"file_size"`           // 可空
	TotalReadings      *int      `json:"total_readings,omitempty" db:"total_readings"` // 可空
}

// RowError 存储返回的行级错误
type RowError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// HistoryFilter 历史查询条件
type HistoryFilter struct {
	Location *string   // 位置过滤（可选）
	Since    time.Time // detection_timestamp >= Since
	Limit    int
}
