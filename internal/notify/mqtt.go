package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher MQTT 发布接口（便于测试替换）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTOptions MQTT 连接参数
type MQTTOptions struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// MQTTClient paho 客户端封装
type MQTTClient struct {
	client mqtt.Client
}

// NewMQTTClient 连接 MQTT broker
func NewMQTTClient(opts MQTTOptions) (*MQTTClient, error) {
	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		o.SetPassword(opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetCleanSession(true)

	client := mqtt.NewClient(o)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &MQTTClient{client: client}, nil
}

// Publish 发布消息
func (c *MQTTClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect 断开连接
func (c *MQTTClient) Disconnect() {
	c.client.Disconnect(250)
}

// MQTTNotifier 把分析事件发布到 MQTT 主题
type MQTTNotifier struct {
	publisher Publisher
	topic     string
	qos       byte
}

// NewMQTTNotifier 创建 MQTT 推送
func NewMQTTNotifier(publisher Publisher, topic string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{publisher: publisher, topic: topic, qos: qos}
}

func (m *MQTTNotifier) Name() string { return "mqtt:" + m.topic }

// Notify 发布到 <topic>/<risk_level>，如 firewatch/analysis/high
func (m *MQTTNotifier) Notify(ctx context.Context, event AnalysisEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis event: %w", err)
	}
	return m.publisher.Publish(m.Topic(event), m.qos, false, payload)
}

// Topic 事件对应的主题
func (m *MQTTNotifier) Topic(event AnalysisEvent) string {
	return m.topic + "/" + strings.ToLower(event.OverallRiskLevel.String())
}
