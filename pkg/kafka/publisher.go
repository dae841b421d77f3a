package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"campus-events/config"
)

// 活动类型
const (
	ActivityRegistrationCreated   = "registration.created"
	ActivityRegistrationCancelled = "registration.cancelled"
	ActivityEventDeleted          = "event.deleted"
	ActivityUserDeleted           = "user.deleted"
)

// Activity 报名相关的领域活动
type Activity struct {
	Type       string    `json:"type"`
	EventID    string    `json:"event_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher 活动发布接口
// 发布是尽力而为的：失败只记录日志，不影响已提交的事务
type Publisher interface {
	Publish(ctx context.Context, a Activity)
	Close()
}

// ── Kafka 实现 ──

type kafkaPublisher struct {
	client *kgo.Client
	logger *zap.Logger
}

// NewPublisher 根据配置创建发布器；未配置 brokers 时返回 NopPublisher
func NewPublisher(cfg *config.KafkaConfig, logger *zap.Logger) (Publisher, error) {
	if cfg == nil || !cfg.Enabled() {
		return NopPublisher{}, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 客户端失败: %w", err)
	}

	logger.Info("Kafka 活动发布已启用",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
	)

	return &kafkaPublisher{client: client, logger: logger}, nil
}

// Publish 异步发送活动，按 event_id 分区以保证同一活动内有序
func (p *kafkaPublisher) Publish(ctx context.Context, a Activity) {
	if a.OccurredAt.IsZero() {
		a.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(a)
	if err != nil {
		p.logger.Error("序列化活动失败", zap.String("type", a.Type), zap.Error(err))
		return
	}

	key := a.EventID
	if key == "" {
		key = a.UserID
	}

	record := &kgo.Record{
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte(a.Type)},
		},
	}

	// 与请求生命周期解耦，请求结束后仍可完成投递
	p.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			p.logger.Warn("发布活动失败",
				zap.String("type", a.Type),
				zap.String("key", string(r.Key)),
				zap.Error(err),
			)
		}
	})
}

// Close 刷新缓冲区并关闭客户端
func (p *kafkaPublisher) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("Kafka flush 失败", zap.Error(err))
	}
	p.client.Close()
}

// ── 空实现 ──

// NopPublisher 不发送任何消息
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Activity) {}

func (NopPublisher) Close() {}
