package classifier

import (
	"fmt"
	"time"

	"wisefido-firewatch/internal/models"
)

// 默认阈值
const (
	DefaultTemperatureHigh   = 60.0 // ℃
	DefaultTemperatureMedium = 40.0 // ℃
	DefaultSmokeHigh         = 70.0 // %
	DefaultSmokeMedium       = 40.0 // %
)

// Thresholds 风险阈值（温度、烟雾各自独立升级风险）
type Thresholds struct {
	TemperatureHigh   float64
	TemperatureMedium float64
	SmokeHigh         float64
	SmokeMedium       float64
}

// DefaultThresholds 返回默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		TemperatureHigh:   DefaultTemperatureHigh,
		TemperatureMedium: DefaultTemperatureMedium,
		SmokeHigh:         DefaultSmokeHigh,
		SmokeMedium:       DefaultSmokeMedium,
	}
}

// Validate medium 阈值不能高于 high 阈值
func (t Thresholds) Validate() error {
	if t.TemperatureMedium > t.TemperatureHigh {
		return fmt.Errorf("temperature medium threshold %.1f exceeds high threshold %.1f", t.TemperatureMedium, t.TemperatureHigh)
	}
	if t.SmokeMedium > t.SmokeHigh {
		return fmt.Errorf("smoke medium threshold %.1f exceeds high threshold %.1f", t.SmokeMedium, t.SmokeHigh)
	}
	return nil
}

// Classifier 基于阈值的风险分类器（无副作用、无 I/O）
type Classifier struct {
	thresholds Thresholds
}

// New 创建分类器
func New(thresholds Thresholds) (*Classifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: thresholds}, nil
}

// Thresholds 返回当前阈值
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify 判定单条读数的风险等级
// 温度、烟雾分别判级，取较高者；每个触发的阈值追加一条原因
func (c *Classifier) Classify(r models.Reading) models.RiskVerdict {
	t := c.thresholds
	level := models.RiskLow
	reasons := []string{}

	switch {
	case r.Temperature >= t.TemperatureHigh:
		level = maxLevel(level, models.RiskHigh)
		reasons = append(reasons, fmt.Sprintf("High temperature: %.1f°C (>= %.1f°C)", r.Temperature, t.TemperatureHigh))
	case r.Temperature >= t.TemperatureMedium:
		level = maxLevel(level, models.RiskMedium)
		reasons = append(reasons, fmt.Sprintf("Elevated temperature: %.1f°C (>= %.1f°C)", r.Temperature, t.TemperatureMedium))
	}

	switch {
	case r.SmokeLevel >= t.SmokeHigh:
		level = maxLevel(level, models.RiskHigh)
		reasons = append(reasons, fmt.Sprintf("High smoke level: %.1f%% (>= %.1f%%)", r.SmokeLevel, t.SmokeHigh))
	case r.SmokeLevel >= t.SmokeMedium:
		level = maxLevel(level, models.RiskMedium)
		reasons = append(reasons, fmt.Sprintf("Elevated smoke level: %.1f%% (>= %.1f%%)", r.SmokeLevel, t.SmokeMedium))
	}

	return models.RiskVerdict{
		Location:  r.Location,
		RiskLevel: level,
		Reasons:   reasons,
	}
}

// Aggregate 取所有判定中的最高风险等级，空列表返回 Low
func Aggregate(verdicts []models.RiskVerdict) models.RiskLevel {
	overall := models.RiskLow
	for _, v := range verdicts {
		overall = maxLevel(overall, v.RiskLevel)
	}
	return overall
}

// Analyze 对一个批次逐条分类并汇总
func (c *Classifier) Analyze(readings []models.Reading, now time.Time) models.AnalysisResult {
	verdicts := make([]models.RiskVerdict, 0, len(readings))
	for _, r := range readings {
		verdicts = append(verdicts, c.Classify(r))
	}

	return models.AnalysisResult{
		OverallRiskLevel: Aggregate(verdicts),
		TotalReadings:    len(verdicts),
		Analysis:         verdicts,
		Timestamp:        now.UTC().Format(time.RFC3339Nano),
	}
}

func maxLevel(a, b models.RiskLevel) models.RiskLevel {
	if b > a {
		return b
	}
	return a
}
