package kafka_test

import (
	"testing"

	"storefront/pkg/kafka"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, kafka.ParseBrokers(" a:9092, ,b:9092 ,"))
	assert.Empty(t, kafka.ParseBrokers(""))
}

func TestNewProducer_NoBrokers(t *testing.T) {
	_, err := kafka.NewProducer(" , ", "order-events")
	assert.ErrorIs(t, err, kafka.ErrDisabled)
}

func TestNewProducer(t *testing.T) {
	p, err := kafka.NewProducer("localhost:9092", "order-events")
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}
