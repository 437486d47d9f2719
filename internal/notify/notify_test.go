package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"wisefido-firewatch/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func highEvent() AnalysisEvent {
	return NewAnalysisEvent(models.AnalysisResult{
		OverallRiskLevel: models.RiskHigh,
		TotalReadings:    1,
		Analysis: []models.RiskVerdict{
			{Location: "Building C - Server Room", RiskLevel: models.RiskHigh, Reasons: []string{"High temperature: 75.0°C (>= 60.0°C)"}},
		},
		Timestamp: "2025-01-11T10:35:00Z",
	}, "disaster_response_test")
}

// recordingNotifier 记录收到的事件
type recordingNotifier struct {
	name   string
	err    error
	mu     sync.Mutex
	events []AnalysisEvent
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Notify(_ context.Context, event AnalysisEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.err
}

type fakePublisher struct {
	topic   string
	qos     byte
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(topic string, qos byte, _ bool, payload []byte) error {
	f.topic, f.qos, f.payload = topic, qos, payload
	return f.err
}

func TestNewAnalysisEvent(t *testing.T) {
	event := highEvent()
	assert.Equal(t, EventTypeAnalysis, event.EventType)
	assert.Equal(t, "disaster_response_test", event.SessionID)

	data, err := json.Marshal(event)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"overall_risk_level":"High"`)
}

func TestFanout_ContinuesAfterFailure(t *testing.T) {
	failing := &recordingNotifier{name: "failing", err: errors.New("broker down")}
	ok := &recordingNotifier{name: "ok"}
	f := NewFanout(models.RiskLow, zap.NewNop(), failing)
	f.Add(ok)

	err := f.Notify(context.Background(), highEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failing: broker down")
	assert.Len(t, failing.events, 1)
	assert.Len(t, ok.events, 1)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, []string{"failing", "ok"}, f.Names())
}

func TestFanout_MinLevel(t *testing.T) {
	rec := &recordingNotifier{name: "rec"}
	f := NewFanout(models.RiskMedium, zap.NewNop(), rec)

	low := highEvent()
	low.OverallRiskLevel = models.RiskLow
	require.NoError(t, f.Notify(context.Background(), low))
	assert.Empty(t, rec.events)

	require.NoError(t, f.Notify(context.Background(), highEvent()))
	assert.Len(t, rec.events, 1)
}

func TestStreamNotifier(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	n := NewStreamNotifier(client, "firewatch:analysis")
	assert.Equal(t, "redis_stream:firewatch:analysis", n.Name())
	require.NoError(t, n.Notify(context.Background(), highEvent()))

	msgs, err := client.XRange(context.Background(), "firewatch:analysis", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "High", msgs[0].Values["risk_level"])
	assert.Equal(t, EventTypeAnalysis, msgs[0].Values["event_type"])

	var decoded AnalysisEvent
	require.NoError(t, json.Unmarshal([]byte(msgs[0].Values["data"].(string)), &decoded))
	assert.Equal(t, models.RiskHigh, decoded.OverallRiskLevel)
	assert.Equal(t, "Building C - Server Room", decoded.Analysis[0].Location)
}

func TestStreamNotifier_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	err := NewStreamNotifier(client, "s").Notify(context.Background(), highEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish to stream s")
}

func TestMQTTNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTTNotifier(pub, "firewatch/analysis", 1)
	assert.Equal(t, "mqtt:firewatch/analysis", n.Name())

	require.NoError(t, n.Notify(context.Background(), highEvent()))
	assert.Equal(t, "firewatch/analysis/high", pub.topic)
	assert.Equal(t, byte(1), pub.qos)
	assert.Contains(t, string(pub.payload), `"session_id":"disaster_response_test"`)

	pub.err = errors.New("not connected")
	assert.Error(t, n.Notify(context.Background(), highEvent()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, highEvent()), context.Canceled)
}

func TestWebhookNotifier(t *testing.T) {
	var received AnalysisEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL, 0, zap.NewNop())
	require.NoError(t, n.Notify(context.Background(), highEvent()))
	assert.Equal(t, models.RiskHigh, received.OverallRiskLevel)
	assert.Equal(t, 1, received.TotalReadings)
}

func TestWebhookNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhookNotifier(srv.URL, 0, zap.NewNop()).Notify(context.Background(), highEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
