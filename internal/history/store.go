package history

import (
	"context"
	"sort"
	"sync"

	"wisefido-firewatch/internal/models"
)

// Store 历史存储抽象（生产环境为 PostgreSQL，测试使用内存实现）
type Store interface {
	Ping(ctx context.Context) error
	EnsureSchema(ctx context.Context) error
	// InsertRows 返回行级错误列表；error 表示整体失败
	InsertRows(ctx context.Context, rows []models.HistoryRecord) ([]models.RowError, error)
	QueryHistory(ctx context.Context, filter models.HistoryFilter) ([]models.HistoryRecord, error)
	TableID() string
}

// MemoryStore 内存历史存储（未配置数据库时用于联调和测试）
type MemoryStore struct {
	mu      sync.RWMutex
	tableID string
	rows    []models.HistoryRecord
}

// NewMemoryStore 创建内存存储
func NewMemoryStore(tableID string) *MemoryStore {
	return &MemoryStore{tableID: tableID}
}

func (m *MemoryStore) Ping(_ context.Context) error { return nil }

func (m *MemoryStore) EnsureSchema(_ context.Context) error { return nil }

func (m *MemoryStore) TableID() string { return m.tableID }

func (m *MemoryStore) InsertRows(_ context.Context, rows []models.HistoryRecord) ([]models.RowError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return nil, nil
}

func (m *MemoryStore) QueryHistory(_ context.Context, filter models.HistoryFilter) ([]models.HistoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.HistoryRecord{}
	for _, r := range m.rows {
		if r.DetectionTimestamp.Before(filter.Since) {
			continue
		}
		if filter.Location != nil && *filter.Location != "" && r.Location != *filter.Location {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SensorTimestamp.After(out[j].SensorTimestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Rows 返回已写入的全部记录（副本）
func (m *MemoryStore) Rows() []models.HistoryRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.HistoryRecord, len(m.rows))
	copy(out, m.rows)
	return out
}
