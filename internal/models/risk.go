package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RiskLevel 风险等级（Low < Medium < High）
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

func (l RiskLevel) String() string {
	switch l {
	case RiskHigh:
		return "High"
	case RiskMedium:
		return "Medium"
	default:
		return "Low"
	}
}

// ParseRiskLevel 解析风险等级字符串（大小写不敏感）
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	}
	return RiskLow, fmt.Errorf("unknown risk level: %q", s)
}

func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRiskLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// RiskVerdict 单个位置的风险判定
type RiskVerdict struct {
	Location  string    `json:"location"`
	RiskLevel RiskLevel `json:"risk_level"`
	Reasons   []string  `json:"reasons"`
}

// AnalysisResult 一个批次的分析结果
// 不变量：len(Analysis) == TotalReadings
type AnalysisResult struct {
	OverallRiskLevel RiskLevel     `json:"overall_risk_level"`
	TotalReadings    int           `json:"total_readings"`
	Analysis         []RiskVerdict `json:"analysis"`
	Timestamp        string        `json:"timestamp"`
}
