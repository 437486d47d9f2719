package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"wisefido-firewatch/internal/models"

	"github.com/xuri/excelize/v2"
)

// SheetName 导出工作表名称
const SheetName = "Sensor History"

// HistoryExportHeader 历史导出表头
var HistoryExportHeader = []string{
	"Detection ID",
	"Location",
	"Temperature (°C)",
	"Smoke Level (%)",
	"Risk Level",
	"Reasons",
	"Sensor Time",
	"Detection Time",
	"File Name",
	"File Path",
	"File Size",
	"Total Readings",
}

var historyColumnWidths = []float64{
	50, // Detection ID
	28, // Location
	16, // Temperature
	16, // Smoke Level
	12, // Risk Level
	60, // Reasons
	22, // Sensor Time
	22, // Detection Time
	24, // File Name
	40, // File Path
	12, // File Size
	14, // Total Readings
}

// RiskClassifier 导出时为每行重新评估风险
type RiskClassifier interface {
	Classify(r models.Reading) models.RiskVerdict
}

// 风险等级单元格颜色
var riskFill = map[models.RiskLevel]string{
	models.RiskLow:    "#E2F0D9",
	models.RiskMedium: "#FFF2CC",
	models.RiskHigh:   "#F8CBAD",
}

// GenerateHistoryWorkbook 生成历史记录 Excel 文件；records 为空时只生成表头
func GenerateHistoryWorkbook(records []models.HistoryRecord, classifier RiskClassifier) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	riskStyles := make(map[models.RiskLevel]int, len(riskFill))
	for level, color := range riskFill {
		style, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create risk style: %w", err)
		}
		riskStyles[level] = style
	}

	for col, header := range HistoryExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, historyColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, rec := range records {
		row := i + 2

		var verdict models.RiskVerdict
		if classifier != nil {
			verdict = classifier.Classify(models.Reading{
				Location:    rec.Location,
				Temperature: rec.Temperature,
				SmokeLevel:  rec.SmokeLevel,
			})
		}

		values := []interface{}{
			rec.DetectionID,
			rec.Location,
			rec.Temperature,
			rec.SmokeLevel,
			"",
			"",
			formatTime(rec.SensorTimestamp),
			formatTime(rec.DetectionTimestamp),
			rec.FileName,
			rec.FilePath,
			nil,
			nil,
		}
		if classifier != nil {
			values[4] = verdict.RiskLevel.String()
			values[5] = strings.Join(verdict.Reasons, "; ")
		}
		if rec.FileSize != nil {
			values[10] = *rec.FileSize
		}
		if rec.TotalReadings != nil {
			values[11] = *rec.TotalReadings
		}

		for col, value := range values {
			if value == nil || value == "" {
				continue
			}
			if err := setCellValue(f, col+1, row, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}

		if classifier != nil {
			cell, _ := excelize.CoordinatesToCellName(5, row)
			if err := f.SetCellStyle(SheetName, cell, cell, riskStyles[verdict.RiskLevel]); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set risk style: %w", err)
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

func setCellValue(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(SheetName, cell, value)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
