package kafka

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"

	"tickflow/pkg/logger"
)

// Kafka 生产者：发布信号与执行的生命周期事件，供外部观测/审计消费
// 定义接口，方便测试和替换
type ProducerService interface {
	Produce(ctx context.Context, key string, event Event) error
	Close()
}

const eventTopic = "tickflow_events"

// Event 生命周期事件：signal_created / signal_sent / signal_filled /
// signal_failed / tick_completed
type Event struct {
	Type      string                 `json:"type"`
	Account   string                 `json:"account,omitempty"`
	Market    string                 `json:"market,omitempty"`
	SignalID  int64                  `json:"signal_id,omitempty"`
	JobName   string                 `json:"job_name,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type eventProducer struct {
	writer *kafka.Writer
}

func NewEventProducer(brokerURL string) ProducerService {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokerURL),
		Topic:    eventTopic,
		Balancer: &kafka.LeastBytes{}, // 保证写入负载均衡
	}
	return &eventProducer{writer: writer}
}

// Produce 序列化事件并写入Kafka，key使用 account:market 保证同一账户事件有序
func (p *eventProducer) Produce(ctx context.Context, key string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
}

func (p *eventProducer) Close() {
	if err := p.writer.Close(); err != nil {
		logger.Errorf("close kafka event writer: %v", err)
	}
}
