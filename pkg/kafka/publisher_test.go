package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"campus-events/config"
)

func TestNewPublisher_NoBrokersReturnsNop(t *testing.T) {
	p, err := NewPublisher(&config.KafkaConfig{Topic: "campus-events.activity"}, zap.NewNop())
	require.NoError(t, err)

	_, ok := p.(NopPublisher)
	assert.True(t, ok, "未配置 brokers 时应返回 NopPublisher")

	p.Publish(context.Background(), Activity{Type: ActivityRegistrationCreated})
	p.Close()
}

func TestNewPublisher_NilConfig(t *testing.T) {
	p, err := NewPublisher(nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, NopPublisher{}, p)
}

func TestNewPublisher_WithBrokers(t *testing.T) {
	// kgo 客户端惰性连接，创建时不需要 broker 可达
	p, err := NewPublisher(&config.KafkaConfig{
		Brokers: []string{"127.0.0.1:1"},
		Topic:   "campus-events.activity",
	}, zap.NewNop())
	require.NoError(t, err)
	_, ok := p.(*kafkaPublisher)
	assert.True(t, ok)
	p.Close()
}
