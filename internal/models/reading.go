package models

import (
	"time"
)

// Reading 单条传感器读数（解析后不再修改）
type Reading struct {
	Location    string  `json:"location"`
	Temperature float64 `json:"temperature"` // 温度（摄氏度）
	SmokeLevel  float64 `json:"smoke_level"` // 烟雾浓度（0-100）
	Timestamp   string  `json:"timestamp"`   // ISO-8601，可带 "Z" 后缀
}

// Batch 一次检测周期读取到的读数批次（含来源文件信息）
type Batch struct {
	Readings []Reading
	FilePath string
	FileName string
	FileSize int64
	ReadAt   time.Time
}

// Len 返回批次中的读数数量
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Readings)
}

// SensorPayload 调用方提交的请求体：{ "sensor_data": [...] }
type SensorPayload struct {
	SensorData []Reading `json:"sensor_data"`
}
