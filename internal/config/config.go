package config

import (
	"fmt"
	"os"
	"strconv"

	"wisefido-firewatch/internal/models"

	"github.com/joho/godotenv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// Config 火灾风险检测服务配置
type Config struct {
	// 读数文件目录
	Source struct {
		DataDir string // 传感器 JSON 文件目录
		Pattern string // 默认 glob，如 "*.json"
	}

	// 历史记录存储（PostgreSQL）
	History struct {
		Enabled  bool
		Dataset  string // schema 名称，默认 "disaster_response"
		Table    string // 表名，默认 "sensor_readings"
		Location string // 区域标识，默认 "US"
	}
	Database DatabaseConfig

	// 风险阈值
	Risk struct {
		TemperatureHigh   float64
		TemperatureMedium float64
		SmokeHigh         float64
		SmokeMedium       float64
	}

	Redis struct {
		Enabled  bool
		Addr     string
		Password string
		DB       int
	}

	// 分析结果推送
	Notify struct {
		Stream     string // Redis Stream 名称
		WebhookURL string // 为空时不推送
		MinLevel   string // 最低推送风险等级：Low / Medium / High
	}

	MQTT struct {
		Enabled  bool
		Broker   string
		ClientID string
		Username string
		Password string
		Topic    string
		QoS      byte
	}

	HTTP struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置（.env.local 可选，环境变量优先）
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env.local: %w", err)
	}

	cfg := &Config{}

	cfg.Source.DataDir = getEnv("DATA_DIR", "./simulated_data")
	cfg.Source.Pattern = getEnv("FILE_PATTERN", "*.json")

	cfg.History.Enabled = getEnv("HISTORY_ENABLED", "false") == "true"
	cfg.History.Dataset = getEnv("HISTORY_DATASET", "disaster_response")
	cfg.History.Table = getEnv("HISTORY_TABLE", "sensor_readings")
	cfg.History.Location = getEnv("HISTORY_LOCATION", "US")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "firewatch")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "5"), 5)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "2"), 2)

	cfg.Risk.TemperatureHigh = parseFloat(getEnv("RISK_TEMPERATURE_HIGH", "60"), 60)
	cfg.Risk.TemperatureMedium = parseFloat(getEnv("RISK_TEMPERATURE_MEDIUM", "40"), 40)
	cfg.Risk.SmokeHigh = parseFloat(getEnv("RISK_SMOKE_HIGH", "70"), 70)
	cfg.Risk.SmokeMedium = parseFloat(getEnv("RISK_SMOKE_MEDIUM", "40"), 40)

	cfg.Redis.Enabled = getEnv("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Notify.Stream = getEnv("NOTIFY_STREAM", "firewatch:analysis")
	cfg.Notify.WebhookURL = getEnv("WEBHOOK_URL", "")
	cfg.Notify.MinLevel = getEnv("NOTIFY_MIN_LEVEL", "Low")

	// MQTT 默认禁用
	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "wisefido-firewatch")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "firewatch/analysis")
	cfg.MQTT.QoS = byte(parseInt(getEnv("MQTT_QOS", "1"), 1))

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验阈值配置（medium 不能高于 high）
func (c *Config) Validate() error {
	if c.Risk.TemperatureMedium > c.Risk.TemperatureHigh {
		return fmt.Errorf("RISK_TEMPERATURE_MEDIUM (%.1f) must not exceed RISK_TEMPERATURE_HIGH (%.1f)",
			c.Risk.TemperatureMedium, c.Risk.TemperatureHigh)
	}
	if c.Risk.SmokeMedium > c.Risk.SmokeHigh {
		return fmt.Errorf("RISK_SMOKE_MEDIUM (%.1f) must not exceed RISK_SMOKE_HIGH (%.1f)",
			c.Risk.SmokeMedium, c.Risk.SmokeHigh)
	}
	if _, err := models.ParseRiskLevel(c.Notify.MinLevel); err != nil {
		return fmt.Errorf("invalid NOTIFY_MIN_LEVEL: %w", err)
	}
	if c.History.Enabled && (c.History.Dataset == "" || c.History.Table == "") {
		return fmt.Errorf("HISTORY_DATASET and HISTORY_TABLE are required when history is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
