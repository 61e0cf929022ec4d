package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducer(t *testing.T) {
	p := NewProducer([]string{"localhost:9092", "localhost:9093"}, "storefront-activity")
	t.Cleanup(func() { _ = p.Close() })

	require.NotNil(t, p.writer)
	assert.Equal(t, "storefront-activity", p.writer.Topic)
}

func TestProducer_Publish_UnencodableEvent(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "storefront-activity")
	t.Cleanup(func() { _ = p.Close() })

	err := p.Publish(context.Background(), "cart", map[string]any{"bad": make(chan int)})

	assert.Error(t, err)
}
