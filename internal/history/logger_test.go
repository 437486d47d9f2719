package history

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wisefido-firewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore 可注入失败的存储
type fakeStore struct {
	pingErr   error
	schemaErr error
	insertErr error
	rowErrors []models.RowError
	queryErr  error

	pings    int
	inserted [][]models.HistoryRecord
	filters  []models.HistoryFilter
}

func (f *fakeStore) Ping(context.Context) error {
	f.pings++
	return f.pingErr
}

func (f *fakeStore) EnsureSchema(context.Context) error { return f.schemaErr }

func (f *fakeStore) TableID() string { return "disaster_response.sensor_readings" }

func (f *fakeStore) InsertRows(_ context.Context, rows []models.HistoryRecord) ([]models.RowError, error) {
	f.inserted = append(f.inserted, rows)
	return f.rowErrors, f.insertErr
}

func (f *fakeStore) QueryHistory(_ context.Context, filter models.HistoryFilter) ([]models.HistoryRecord, error) {
	f.filters = append(f.filters, filter)
	return []models.HistoryRecord{}, f.queryErr
}

func testOptions() Options {
	return Options{Project: "firewatch", Dataset: "disaster_response", Table: "sensor_readings", Location: "US"}
}

func scenarioBatch() *models.Batch {
	return &models.Batch{
		FilePath: "/data/sample.json",
		FileName: "sample.json",
		FileSize: 412,
		Readings: []models.Reading{
			{Location: "Building A - Floor 3", Temperature: 25, SmokeLevel: 15, Timestamp: "2025-01-11T10:30:00Z"},
			{Location: "Building B - Kitchen", Temperature: 45, SmokeLevel: 55, Timestamp: "2025-01-11T10:31:00Z"},
			{Location: "Building C - Server Room", Temperature: 75, SmokeLevel: 85, Timestamp: "2025-01-11T10:32:00Z"},
		},
	}
}

func enabledLogger(t *testing.T, store Store) *Logger {
	t.Helper()
	l := NewLogger(store, testOptions(), zap.NewNop())
	require.NoError(t, l.Init(context.Background()))
	require.Equal(t, StateEnabled, l.State())
	return l
}

func TestLogger_UnconfiguredReportsNotEnabled(t *testing.T) {
	l := NewLogger(nil, testOptions(), zap.NewNop())
	require.NoError(t, l.Init(context.Background()))
	assert.Equal(t, StateUnconfigured, l.State())

	outcome := l.LogBatch(context.Background(), scenarioBatch(), time.Now())
	assert.False(t, outcome.Enabled)
	assert.Equal(t, models.LoggingStoreNotEnabled, outcome.Status)

	records, ok := l.QueryHistory(context.Background(), "", 24)
	assert.False(t, ok)
	assert.Nil(t, records)

	st := l.Status()
	assert.False(t, st.StoreConfigured)
	assert.Nil(t, st.FullTableID)
}

func TestLogger_InitFailureIsTerminal(t *testing.T) {
	store := &fakeStore{pingErr: errors.New("connection refused")}
	l := NewLogger(store, testOptions(), zap.NewNop())

	err := l.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateDisabled, l.State())

	// 后续存储恢复也不会重连
	store.pingErr = nil
	require.NoError(t, l.Init(context.Background()))
	assert.Equal(t, StateDisabled, l.State())
	assert.Equal(t, 1, store.pings)

	outcome := l.LogBatch(context.Background(), scenarioBatch(), time.Now())
	assert.Equal(t, models.LoggingStoreNotEnabled, outcome.Status)
	assert.Empty(t, store.inserted)

	st := l.Status()
	assert.True(t, st.StoreConfigured)
	assert.False(t, st.Enabled)
	assert.Equal(t, "disabled", st.State)
	assert.Contains(t, st.InitError, "connection refused")
}

func TestLogger_SchemaFailureDisables(t *testing.T) {
	store := &fakeStore{schemaErr: errors.New("permission denied")}
	l := NewLogger(store, testOptions(), zap.NewNop())

	err := l.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prepare history schema")
	assert.False(t, l.Enabled())
}

func TestLogger_LogBatchSuccess(t *testing.T) {
	store := NewMemoryStore("disaster_response.sensor_readings")
	l := enabledLogger(t, store)
	l.newID = func() string { return "detection_fixed" }

	detectionTime := time.Date(2025, 1, 11, 10, 35, 0, 0, time.UTC)
	outcome := l.LogBatch(context.Background(), scenarioBatch(), detectionTime)

	assert.True(t, outcome.Enabled)
	assert.Equal(t, models.LoggingSuccess, outcome.Status)
	assert.Equal(t, 3, outcome.RowsInserted)
	assert.Equal(t, "disaster_response.sensor_readings", outcome.TableID)
	assert.Equal(t, "detection_fixed", outcome.DetectionID)

	rows := store.Rows()
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, "detection_fixed_"+string(rune('0'+i)), row.DetectionID)
		assert.Equal(t, "sample.json", row.FileName)
		assert.Equal(t, detectionTime, row.DetectionTimestamp)
		require.NotNil(t, row.TotalReadings)
		assert.Equal(t, 3, *row.TotalReadings)
		require.NotNil(t, row.FileSize)
		assert.Equal(t, int64(412), *row.FileSize)
	}
	assert.Equal(t, time.Date(2025, 1, 11, 10, 32, 0, 0, time.UTC), rows[2].SensorTimestamp)
}

func TestLogger_DetectionIDsAreUnique(t *testing.T) {
	store := NewMemoryStore("ds.t")
	l := enabledLogger(t, store)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		outcome := l.LogBatch(context.Background(), scenarioBatch(), time.Now())
		require.Equal(t, models.LoggingSuccess, outcome.Status)
		assert.True(t, strings.HasPrefix(outcome.DetectionID, "detection_"))
		assert.False(t, seen[outcome.DetectionID])
		seen[outcome.DetectionID] = true
	}

	rowIDs := map[string]bool{}
	for _, row := range store.Rows() {
		assert.False(t, rowIDs[row.DetectionID])
		rowIDs[row.DetectionID] = true
	}
	assert.Len(t, rowIDs, 60)
}

func TestLogger_PartialRowErrors(t *testing.T) {
	rowErrors := []models.RowError{
		{Index: 1, Message: "invalid value for field smoke_level"},
	}
	store := &fakeStore{rowErrors: rowErrors}
	l := enabledLogger(t, store)

	outcome := l.LogBatch(context.Background(), scenarioBatch(), time.Now())
	assert.True(t, outcome.Enabled)
	assert.Equal(t, models.LoggingInsertErrors, outcome.Status)
	assert.Equal(t, 3, outcome.RowsAttempted)
	assert.Equal(t, rowErrors, outcome.Errors)
	assert.Zero(t, outcome.RowsInserted)
	assert.Empty(t, outcome.DetectionID)
}

func TestLogger_InsertError(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("failed to begin transaction: connection reset")}
	l := enabledLogger(t, store)

	outcome := l.LogBatch(context.Background(), scenarioBatch(), time.Now())
	assert.Equal(t, models.LoggingError, outcome.Status)
	assert.Equal(t, 3, outcome.RowsAttempted)
	assert.Contains(t, outcome.Error, "connection reset")
}

func TestLogger_EmptyBatch(t *testing.T) {
	store := &fakeStore{}
	l := enabledLogger(t, store)

	outcome := l.LogBatch(context.Background(), &models.Batch{FileName: "empty.json"}, time.Now())
	assert.Equal(t, models.LoggingNoDataToLog, outcome.Status)
	assert.Empty(t, store.inserted)

	outcome = l.LogBatch(context.Background(), nil, time.Now())
	assert.Equal(t, models.LoggingNoDataToLog, outcome.Status)
}

func TestLogger_QueryHistory(t *testing.T) {
	now := time.Date(2025, 1, 11, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	l := enabledLogger(t, store)
	l.now = func() time.Time { return now }

	records, ok := l.QueryHistory(context.Background(), "Building B - Kitchen", 6)
	require.True(t, ok)
	assert.NotNil(t, records)
	require.Len(t, store.filters, 1)
	assert.Equal(t, now.Add(-6*time.Hour), store.filters[0].Since)
	require.NotNil(t, store.filters[0].Location)
	assert.Equal(t, "Building B - Kitchen", *store.filters[0].Location)

	_, ok = l.QueryHistory(context.Background(), "", 0)
	require.True(t, ok)
	assert.Equal(t, now.Add(-24*time.Hour), store.filters[1].Since)
	assert.Nil(t, store.filters[1].Location)

	store.queryErr = errors.New("relation does not exist")
	records, ok = l.QueryHistory(context.Background(), "", 24)
	assert.False(t, ok)
	assert.Nil(t, records)
}

func TestLogger_QueryHistoryFromMemoryStore(t *testing.T) {
	store := NewMemoryStore("ds.t")
	l := enabledLogger(t, store)

	l.LogBatch(context.Background(), scenarioBatch(), time.Now())

	records, ok := l.QueryHistory(context.Background(), "Building C - Server Room", 1)
	require.True(t, ok)
	require.Len(t, records, 1)
	assert.Equal(t, 75.0, records[0].Temperature)

	records, ok = l.QueryHistory(context.Background(), "", 1)
	require.True(t, ok)
	require.Len(t, records, 3)
	assert.Equal(t, "Building C - Server Room", records[0].Location)
}

func TestLogger_Status(t *testing.T) {
	l := enabledLogger(t, &fakeStore{})

	st := l.Status()
	assert.True(t, st.StoreConfigured)
	assert.True(t, st.Enabled)
	assert.True(t, st.TableCreated)
	assert.Equal(t, "enabled", st.State)
	assert.Equal(t, "US", st.Location)
	require.NotNil(t, st.FullTableID)
	assert.Equal(t, "firewatch.disaster_response.sensor_readings", *st.FullTableID)
}

func TestBuildRecords_UnknownLocationAndBadTimestamp(t *testing.T) {
	detectionTime := time.Date(2025, 1, 11, 10, 35, 0, 0, time.UTC)
	batch := &models.Batch{
		FileName: "odd.json",
		Readings: []models.Reading{
			{Temperature: 30, SmokeLevel: 10, Timestamp: "yesterday afternoon"},
		},
	}

	rows := BuildRecords(batch, "detection_abc", detectionTime)
	require.Len(t, rows, 1)
	assert.Equal(t, "detection_abc_0", rows[0].DetectionID)
	assert.Equal(t, "Unknown", rows[0].Location)
	assert.Equal(t, detectionTime, rows[0].SensorTimestamp)
}

func TestParseSensorTimestamp(t *testing.T) {
	fallback := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"z suffix", "2025-01-11T10:30:00Z", time.Date(2025, 1, 11, 10, 30, 0, 0, time.UTC)},
		{"z suffix fractional", "2025-01-11T10:30:00.250Z", time.Date(2025, 1, 11, 10, 30, 0, 250000000, time.UTC)},
		{"naive", "2025-01-11T10:30:00", time.Date(2025, 1, 11, 10, 30, 0, 0, time.UTC)},
		{"space separated", "2025-01-11 10:30:00", time.Date(2025, 1, 11, 10, 30, 0, 0, time.UTC)},
		{"date only", "2025-01-11", time.Date(2025, 1, 11, 0, 0, 0, 0, time.UTC)},
		{"empty", "", fallback},
		{"garbage", "not-a-time", fallback},
		{"bare z", "Z", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSensorTimestamp(tt.input, fallback)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
		})
	}

	offset := ParseSensorTimestamp("2025-01-11T12:30:00+02:00", fallback)
	assert.True(t, offset.Equal(time.Date(2025, 1, 11, 10, 30, 0, 0, time.UTC)))
}
