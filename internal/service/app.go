package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"wisefido-firewatch/internal/classifier"
	"wisefido-firewatch/internal/config"
	"wisefido-firewatch/internal/database"
	"wisefido-firewatch/internal/history"
	"wisefido-firewatch/internal/models"
	"wisefido-firewatch/internal/notify"
	"wisefido-firewatch/internal/repository"
	"wisefido-firewatch/internal/session"
	"wisefido-firewatch/internal/source"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// historyInitTimeout 历史存储初始化超时
const historyInitTimeout = 10 * time.Second

// App 按配置组装的检测服务及其依赖
type App struct {
	Config     *config.Config
	Classifier *classifier.Classifier
	History    *history.Logger
	Notifier   *notify.Fanout
	Detection  *DetectionService

	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *notify.MQTTClient
}

// NewApp 创建服务；外部依赖（数据库、Redis、MQTT）不可用时降级运行
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	c, err := classifier.New(classifier.Thresholds{
		TemperatureHigh:   cfg.Risk.TemperatureHigh,
		TemperatureMedium: cfg.Risk.TemperatureMedium,
		SmokeHigh:         cfg.Risk.SmokeHigh,
		SmokeMedium:       cfg.Risk.SmokeMedium,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid risk thresholds: %w", err)
	}

	minLevel, err := models.ParseRiskLevel(cfg.Notify.MinLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid notify level: %w", err)
	}

	app := &App{
		Config:     cfg,
		Classifier: c,
		Notifier:   notify.NewFanout(minLevel, logger),
		logger:     logger,
	}

	// 历史存储（PostgreSQL）
	var store history.Store
	if cfg.History.Enabled {
		db, err := database.OpenPostgresDB(&cfg.Database)
		if err != nil {
			logger.Warn("History enabled but database could not be opened", zap.Error(err))
		} else {
			app.db = db
			store = repository.NewHistoryRepository(db, cfg.History.Dataset, cfg.History.Table, logger)
		}
	}
	app.History = history.NewLogger(store, history.Options{
		Project:  cfg.Database.Database,
		Dataset:  cfg.History.Dataset,
		Table:    cfg.History.Table,
		Location: cfg.History.Location,
	}, logger)

	initCtx, cancel := context.WithTimeout(ctx, historyInitTimeout)
	_ = app.History.Init(initCtx)
	cancel()

	// 会话与 Stream 推送（Redis）
	var sess session.Session
	if cfg.Redis.Enabled {
		client, err := database.NewRedisClient(ctx, database.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("Redis enabled but unreachable, using in-memory session", zap.Error(err))
		} else {
			app.redisClient = client
			sess = session.NewRedisSession(client, "", session.DefaultTTL)
			if cfg.Notify.Stream != "" {
				app.Notifier.Add(notify.NewStreamNotifier(client, cfg.Notify.Stream))
			}
		}
	}
	if sess == nil {
		sess = session.NewMemorySession("")
	}

	// MQTT 推送
	if cfg.MQTT.Enabled {
		client, err := notify.NewMQTTClient(notify.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			logger.Warn("MQTT enabled but broker unreachable, MQTT notifications disabled", zap.Error(err))
		} else {
			app.mqttClient = client
			app.Notifier.Add(notify.NewMQTTNotifier(client, cfg.MQTT.Topic, cfg.MQTT.QoS))
		}
	}

	// Webhook 推送
	if cfg.Notify.WebhookURL != "" {
		app.Notifier.Add(notify.NewWebhookNotifier(cfg.Notify.WebhookURL, 3, logger))
	}

	var notifier Notifier
	if app.Notifier.Len() > 0 {
		notifier = app.Notifier
	}

	app.Detection = NewDetectionService(
		source.NewDirectorySource(cfg.Source.DataDir, cfg.Source.Pattern, logger),
		app.History,
		NewClassifierBackend(c, logger),
		sess,
		notifier,
		logger,
	)

	logger.Info("Firewatch service initialized",
		zap.String("data_dir", app.Detection.DataDir()),
		zap.String("session_id", sess.ID()),
		zap.String("history_state", app.History.State().String()),
		zap.Strings("notifiers", app.Notifier.Names()),
	)
	return app, nil
}

// Close 释放外部连接
func (a *App) Close() {
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if err := database.Close(a.db); err != nil {
		a.logger.Warn("Failed to close database", zap.Error(err))
	}
}
