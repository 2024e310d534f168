package producer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, splitBrokers(" , "))
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := New(Config{Brokers: " "}, nil)
	assert.Error(t, err)
}

func TestClosedProducerRejectsPublish(t *testing.T) {
	// kgo connects lazily, so no broker is needed to construct or close.
	p, err := New(DefaultConfig("127.0.0.1:1"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Close(ctx)

	assert.ErrorIs(t, p.Publish(context.Background(), &Message{Topic: "t"}), ErrClosed)
	assert.ErrorIs(t, p.Check(context.Background()), ErrClosed)
	assert.NoError(t, p.Close(context.Background()), "second close is a no-op")
}
