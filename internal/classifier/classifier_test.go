package classifier

import (
	"testing"
	"time"

	"wisefido-firewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDefaultClassifier(t *testing.T) *Classifier {
	c, err := New(DefaultThresholds())
	require.NoError(t, err)
	return c
}

func TestClassify_Scenarios(t *testing.T) {
	c := newDefaultClassifier(t)

	tests := []struct {
		name        string
		reading     models.Reading
		wantLevel   models.RiskLevel
		wantReasons int
	}{
		{"low", models.Reading{Location: "Building A - Floor 3", Temperature: 25, SmokeLevel: 15}, models.RiskLow, 0},
		{"medium", models.Reading{Location: "Building B - Basement", Temperature: 45, SmokeLevel: 55}, models.RiskMedium, 2},
		{"high", models.Reading{Location: "Building C - Server Room", Temperature: 75, SmokeLevel: 85}, models.RiskHigh, 2},
		{"high temperature only", models.Reading{Temperature: 90, SmokeLevel: 5}, models.RiskHigh, 1},
		{"high temperature with low smoke", models.Reading{Temperature: 65, SmokeLevel: 10}, models.RiskHigh, 1},
		{"high smoke only", models.Reading{Temperature: 20, SmokeLevel: 70}, models.RiskHigh, 1},
		{"medium temperature only", models.Reading{Temperature: 40, SmokeLevel: 0}, models.RiskMedium, 1},
		{"high temperature with medium smoke", models.Reading{Temperature: 60, SmokeLevel: 40}, models.RiskHigh, 2},
		{"just below every threshold", models.Reading{Temperature: 39.9, SmokeLevel: 39.9}, models.RiskLow, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Classify(tt.reading)
			assert.Equal(t, tt.wantLevel, v.RiskLevel)
			assert.Len(t, v.Reasons, tt.wantReasons)
			assert.Equal(t, tt.reading.Location, v.Location)
		})
	}
}

func TestClassify_BothHighGivesAtLeastTwoReasons(t *testing.T) {
	c := newDefaultClassifier(t)
	for temp := 60.0; temp <= 120; temp += 15 {
		for smoke := 70.0; smoke <= 100; smoke += 10 {
			v := c.Classify(models.Reading{Temperature: temp, SmokeLevel: smoke})
			assert.Equal(t, models.RiskHigh, v.RiskLevel)
			assert.GreaterOrEqual(t, len(v.Reasons), 2)
		}
	}
}

func TestClassify_ReasonsDistinct(t *testing.T) {
	c := newDefaultClassifier(t)
	v := c.Classify(models.Reading{Temperature: 75, SmokeLevel: 85})
	require.Len(t, v.Reasons, 2)
	assert.NotEqual(t, v.Reasons[0], v.Reasons[1])
	assert.Contains(t, v.Reasons[0], "temperature")
	assert.Contains(t, v.Reasons[1], "smoke")
}

func TestClassify_CustomThresholds(t *testing.T) {
	c, err := New(Thresholds{TemperatureHigh: 30, TemperatureMedium: 20, SmokeHigh: 10, SmokeMedium: 5})
	require.NoError(t, err)

	assert.Equal(t, models.RiskHigh, c.Classify(models.Reading{Temperature: 25, SmokeLevel: 15}).RiskLevel)
	assert.Equal(t, models.RiskMedium, c.Classify(models.Reading{Temperature: 21, SmokeLevel: 0}).RiskLevel)
}

func TestNew_RejectsInvertedThresholds(t *testing.T) {
	_, err := New(Thresholds{TemperatureHigh: 40, TemperatureMedium: 60, SmokeHigh: 70, SmokeMedium: 40})
	assert.Error(t, err)

	_, err = New(Thresholds{TemperatureHigh: 60, TemperatureMedium: 40, SmokeHigh: 10, SmokeMedium: 40})
	assert.Error(t, err)
}

func TestAggregate(t *testing.T) {
	assert.Equal(t, models.RiskLow, Aggregate(nil))
	assert.Equal(t, models.RiskMedium, Aggregate([]models.RiskVerdict{
		{RiskLevel: models.RiskLow}, {RiskLevel: models.RiskMedium}, {RiskLevel: models.RiskLow},
	}))
	assert.Equal(t, models.RiskHigh, Aggregate([]models.RiskVerdict{
		{RiskLevel: models.RiskHigh}, {RiskLevel: models.RiskMedium},
	}))
}

func TestAnalyze_ScenarioBatch(t *testing.T) {
	c := newDefaultClassifier(t)
	now := time.Date(2025, 1, 11, 10, 35, 0, 0, time.UTC)

	readings := []models.Reading{
		{Location: "Building A - Floor 3", Temperature: 25, SmokeLevel: 15, Timestamp: "2025-01-11T10:30:00Z"},
		{Location: "Building B - Basement", Temperature: 45, SmokeLevel: 55, Timestamp: "2025-01-11T10:31:00Z"},
		{Location: "Building C - Server Room", Temperature: 75, SmokeLevel: 85, Timestamp: "2025-01-11T10:32:00Z"},
	}

	result := c.Analyze(readings, now)
	assert.Equal(t, models.RiskHigh, result.OverallRiskLevel)
	assert.Equal(t, 3, result.TotalReadings)
	require.Len(t, result.Analysis, 3)
	assert.Equal(t, "Building A - Floor 3", result.Analysis[0].Location)
	assert.Equal(t, models.RiskLow, result.Analysis[0].RiskLevel)
	assert.Equal(t, models.RiskMedium, result.Analysis[1].RiskLevel)
	assert.Equal(t, models.RiskHigh, result.Analysis[2].RiskLevel)
	assert.Equal(t, "2025-01-11T10:35:00Z", result.Timestamp)
}

func TestAnalyze_Empty(t *testing.T) {
	c := newDefaultClassifier(t)
	result := c.Analyze(nil, time.Now())
	assert.Equal(t, models.RiskLow, result.OverallRiskLevel)
	assert.Equal(t, 0, result.TotalReadings)
	assert.Empty(t, result.Analysis)
}
