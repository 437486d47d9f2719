package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"wisefido-firewatch/internal/models"

	"go.uber.org/zap"
)

// DefaultPattern 默认文件匹配模式
const DefaultPattern = "*.json"

// ErrorKind 读取错误分类
type ErrorKind string

const (
	KindFileNotFound ErrorKind = "file_not_found"
	KindParseError   ErrorKind = "parse_error"
	KindReadError    ErrorKind = "read_error"
)

// ErrOutsideDataDir 路径不在数据目录内
var ErrOutsideDataDir = errors.New("path is outside the data directory")

// DetectionError 读取批次失败
type DetectionError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *DetectionError) Error() string {
	switch e.Kind {
	case KindFileNotFound:
		return fmt.Sprintf("File not found: %s", e.Path)
	case KindParseError:
		return fmt.Sprintf("Invalid JSON in file %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("Error reading file %s: %v", e.Path, e.Err)
	}
}

func (e *DetectionError) Unwrap() error {
	return e.Err
}

// DirectorySource 基于目录的读数来源（每个检测周期读取一个 JSON 文件）
type DirectorySource struct {
	dataDir        string
	defaultPattern string
	logger         *zap.Logger
	now            func() time.Time
}

// NewDirectorySource 创建目录读数来源
func NewDirectorySource(dataDir, defaultPattern string, logger *zap.Logger) *DirectorySource {
	if abs, err := filepath.Abs(dataDir); err == nil {
		dataDir = abs
	}
	if defaultPattern == "" {
		defaultPattern = DefaultPattern
	}
	return &DirectorySource{
		dataDir:        dataDir,
		defaultPattern: defaultPattern,
		logger:         logger,
		now:            time.Now,
	}
}

// DataDir 返回数据目录绝对路径
func (s *DirectorySource) DataDir() string {
	return s.dataDir
}

// Find 按 glob 模式列出数据目录中的文件（字典序），目录不存在时返回空列表
func (s *DirectorySource) Find(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = s.defaultPattern
	}
	// 模式只能匹配数据目录本层的文件名
	if strings.ContainsRune(pattern, filepath.Separator) || strings.Contains(pattern, "/") || strings.Contains(pattern, "..") {
		return nil, fmt.Errorf("invalid file pattern %q: must be a file name pattern without path elements", pattern)
	}

	info, err := os.Stat(s.dataDir)
	if err != nil || !info.IsDir() {
		s.logger.Warn("Data directory does not exist",
			zap.String("data_dir", s.dataDir),
		)
		return []string{}, nil
	}

	files, err := filepath.Glob(filepath.Join(s.dataDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	if files == nil {
		files = []string{}
	}
	sort.Strings(files)
	return files, nil
}

// ListAvailableFiles 列出默认模式下的所有文件
func (s *DirectorySource) ListAvailableFiles() ([]string, error) {
	return s.Find(s.defaultPattern)
}

// ReadBatch 读取并解析单个 JSON 文件
// 支持两种格式：读数数组，或 {"sensor_data": [...]}
func (s *DirectorySource) ReadBatch(path string) (*models.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &DetectionError{Kind: KindFileNotFound, Path: path, Err: err}
		}
		return nil, &DetectionError{Kind: KindReadError, Path: path, Err: err}
	}
	readAt := s.now()

	readings, err := decodeReadings(data)
	if err != nil {
		return nil, &DetectionError{Kind: KindParseError, Path: path, Err: err}
	}

	return &models.Batch{
		Readings: readings,
		FilePath: path,
		FileName: filepath.Base(path),
		FileSize: int64(len(data)),
		ReadAt:   readAt,
	}, nil
}

// DetectNext 解析一个检测周期要处理的文件并读取
// 指定 FilePath 时直接读取，否则读取匹配结果中字典序第一个文件
func (s *DirectorySource) DetectNext(criteria models.DetectionCriteria) models.DetectionOutcome {
	if criteria.FilePath != "" {
		path, err := s.resolve(criteria.FilePath)
		if err != nil {
			s.logger.Warn("Rejected file path outside data directory",
				zap.String("file_path", criteria.FilePath),
				zap.String("data_dir", s.dataDir),
			)
			return models.DetectionOutcome{
				Status:    models.StatusReadError,
				Error:     err.Error(),
				Timestamp: isoTimestamp(s.now()),
				Logging:   models.LoggingOutcome{Status: models.LoggingNoDataToLog},
			}
		}
		return s.readOutcome(path)
	}

	pattern := criteria.Pattern
	if pattern == "" {
		pattern = s.defaultPattern
	}

	files, err := s.Find(pattern)
	if err != nil {
		return models.DetectionOutcome{
			Status:    models.StatusReadError,
			Error:     err.Error(),
			Timestamp: isoTimestamp(s.now()),
			Logging:   models.LoggingOutcome{Status: models.LoggingNoDataToLog},
		}
	}

	if len(files) == 0 {
		found := 0
		return models.DetectionOutcome{
			Status:    models.StatusNoDataFound,
			Message:   fmt.Sprintf("No JSON files found in %s", s.dataDir),
			Timestamp: isoTimestamp(s.now()),
			DetectionInfo: &models.DetectionInfo{
				DirectoryChecked: s.dataDir,
				PatternSearched:  pattern,
				FilesFound:       &found,
			},
			Logging: models.LoggingOutcome{Status: models.LoggingNoDataToLog},
		}
	}

	s.logger.Debug("Detected sensor files",
		zap.Int("files_found", len(files)),
		zap.String("next_file", files[0]),
	)
	return s.readOutcome(files[0])
}

// resolve 把调用方给出的路径解析到数据目录下，越界时返回 ErrOutsideDataDir
func (s *DirectorySource) resolve(name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dataDir, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(s.dataDir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &DetectionError{Kind: KindReadError, Path: name, Err: ErrOutsideDataDir}
	}
	return path, nil
}

func (s *DirectorySource) readOutcome(path string) models.DetectionOutcome {
	batch, err := s.ReadBatch(path)
	if err != nil {
		var de *DetectionError
		status := models.StatusReadError
		if errors.As(err, &de) {
			switch de.Kind {
			case KindFileNotFound:
				status = models.StatusFileNotFound
			case KindParseError:
				status = models.StatusInvalidJSON
			}
		}
		s.logger.Warn("Failed to read sensor file",
			zap.String("file_path", path),
			zap.String("status", status),
			zap.Error(err),
		)
		return models.DetectionOutcome{
			Status:    status,
			Error:     err.Error(),
			Timestamp: isoTimestamp(s.now()),
			Logging:   models.LoggingOutcome{Status: models.LoggingNoDataToLog},
		}
	}

	s.logger.Info("Sensor data detected",
		zap.String("file_name", batch.FileName),
		zap.Int("readings", batch.Len()),
	)
	return models.DetectionOutcome{
		Status:     models.StatusDataDetected,
		Timestamp:  isoTimestamp(batch.ReadAt),
		SensorData: batch.Readings,
		DetectionInfo: &models.DetectionInfo{
			FilePath:      batch.FilePath,
			FileName:      batch.FileName,
			FileSize:      batch.FileSize,
			ReadTimestamp: isoTimestamp(batch.ReadAt),
		},
		Logging: models.LoggingOutcome{Status: models.LoggingNotAttempted},
		Batch:   batch,
	}
}

// decodeReadings 解析读数，兼容数组和 sensor_data 包装两种格式
func decodeReadings(data []byte) ([]models.Reading, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	switch trimmed[0] {
	case '[':
		var readings []models.Reading
		if err := json.Unmarshal(trimmed, &readings); err != nil {
			return nil, err
		}
		return nonNil(readings), nil
	case '{':
		var wrapped struct {
			SensorData *[]models.Reading `json:"sensor_data"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.SensorData == nil {
			return nil, fmt.Errorf("object has no sensor_data array")
		}
		return nonNil(*wrapped.SensorData), nil
	default:
		return nil, fmt.Errorf("expected a JSON array or object, got %q", trimmed[0])
	}
}

func nonNil(readings []models.Reading) []models.Reading {
	if readings == nil {
		return []models.Reading{}
	}
	return readings
}

func isoTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
