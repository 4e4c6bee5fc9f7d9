/*
 * @module service/event/publishers
 * @description 运行完成事件发布器，支持 Kafka 与 MQTT 通道，按环境变量启用
 * @architecture 事件驱动架构 - 消息通道适配
 * @documentReference ai_docs/quality_engine_req.md
 * @stateFlow 运行结束 -> 构造事件 -> 异步发布 -> 失败仅记日志
 * @rules 发布尽力而为，通道故障不影响运行结果；未配置通道时发布为空操作
 * @dependencies github.com/segmentio/kafka-go, github.com/eclipse/paho.mqtt.golang, encoding/json
 * @refs service/detection/, service/imputation/, service/init.go
 */

package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"fluxqc-service/service/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"
)

// RunPublisher 运行完成事件发布接口
type RunPublisher interface {
	PublishRunEvent(ev *models.QualityRunEvent)
	Close()
}

// NewRunPublisherFromEnv 按环境变量装配发布器
// KAFKA_BROKERS + KAFKA_TOPIC 启用 Kafka；MQTT_BROKER + MQTT_TOPIC 启用 MQTT；都未配置返回空发布器
func NewRunPublisherFromEnv() RunPublisher {
	publishers := make([]RunPublisher, 0, 2)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("KAFKA_TOPIC")
		if topic == "" {
			topic = "qc-run-events"
		}
		publishers = append(publishers, newKafkaRunPublisher(strings.Split(brokers, ","), topic))
		slog.Info("Kafka 运行事件发布已启用", "topic", topic)
	}

	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		topic := os.Getenv("MQTT_TOPIC")
		if topic == "" {
			topic = "fluxqc/run-events"
		}
		pub, err := newMQTTRunPublisher(broker, topic)
		if err != nil {
			slog.Error("MQTT 运行事件发布启用失败", "broker", broker, "error", err)
		} else {
			publishers = append(publishers, pub)
			slog.Info("MQTT 运行事件发布已启用", "topic", topic)
		}
	}

	return &compositePublisher{publishers: publishers}
}

// compositePublisher 组合发布器，逐通道发布
type compositePublisher struct {
	publishers []RunPublisher
}

func (c *compositePublisher) PublishRunEvent(ev *models.QualityRunEvent) {
	for _, p := range c.publishers {
		p.PublishRunEvent(ev)
	}
}

func (c *compositePublisher) Close() {
	for _, p := range c.publishers {
		p.Close()
	}
}

// kafkaRunPublisher Kafka 发布器
type kafkaRunPublisher struct {
	writer *kafka.Writer
}

func newKafkaRunPublisher(brokers []string, topic string) *kafkaRunPublisher {
	return &kafkaRunPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true, // 发布不阻塞运行收尾
		},
	}
}

func (p *kafkaRunPublisher) PublishRunEvent(ev *models.QualityRunEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("序列化运行事件失败", "result_id", ev.ResultID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.ResultID),
		Value: payload,
	})
	if err != nil {
		slog.Error("Kafka 运行事件发布失败", "result_id", ev.ResultID, "error", err)
	}
}

func (p *kafkaRunPublisher) Close() {
	if err := p.writer.Close(); err != nil {
		slog.Error("关闭 Kafka 发布器失败", "error", err)
	}
}

// mqttRunPublisher MQTT 发布器
type mqttRunPublisher struct {
	client mqtt.Client
	topic  string
}

func newMQTTRunPublisher(broker, topic string) (*mqttRunPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(fmt.Sprintf("fluxqc-%d", time.Now().UnixNano())).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	if user := os.Getenv("MQTT_USERNAME"); user != "" {
		opts.SetUsername(user)
		opts.SetPassword(os.Getenv("MQTT_PASSWORD"))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5*time.Second) || token.Error() != nil {
		return nil, fmt.Errorf("连接 MQTT Broker 失败: %v", token.Error())
	}

	return &mqttRunPublisher{client: client, topic: topic}, nil
}

func (p *mqttRunPublisher) PublishRunEvent(ev *models.QualityRunEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		slog.Error("序列化运行事件失败", "result_id", ev.ResultID, "error", err)
		return
	}

	token := p.client.Publish(p.topic, 1, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			slog.Error("MQTT 运行事件发布失败", "result_id", ev.ResultID, "error", token.Error())
		}
	}()
}

func (p *mqttRunPublisher) Close() {
	p.client.Disconnect(250)
}
