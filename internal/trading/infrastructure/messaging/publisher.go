// Package messaging 交易服务的消息发布：成交事件投递到 Kafka
package messaging

import (
	"context"

	"github.com/wyfcoding/stocktrading/internal/trading/domain"
	"github.com/wyfcoding/stocktrading/pkg/mq"
)

// OrderEventPublisher 成交事件的 Kafka 发布实现。
// 以 user_id 为分区键，同一用户的事件保序。
type OrderEventPublisher struct {
	producer *mq.KafkaProducer
	topic    string
}

// NewOrderEventPublisher 创建成交事件发布器
func NewOrderEventPublisher(producer *mq.KafkaProducer, topic string) *OrderEventPublisher {
	return &OrderEventPublisher{producer: producer, topic: topic}
}

// PublishExecuted 发布成交事件
func (p *OrderEventPublisher) PublishExecuted(ctx context.Context, event *domain.OrderExecutedEvent) error {
	return p.producer.SendMessage(ctx, p.topic, event.UserID, event)
}

// NopPublisher 空实现，Kafka 未配置时使用
type NopPublisher struct{}

// PublishExecuted 丢弃事件
func (NopPublisher) PublishExecuted(ctx context.Context, event *domain.OrderExecutedEvent) error {
	return nil
}
