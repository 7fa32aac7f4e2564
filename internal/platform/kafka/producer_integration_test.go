//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"trustscore/pkg/testutil/containers"
)

func TestProducerPublishesSynchronously(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	broker := containers.GetManager().GetKafka(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	topic := "producer-" + uuid.NewString()
	require.NoError(t, EnsureTopic(ctx, broker.Brokers, topic, 1, 1))
	// A second call against an existing topic is a no-op.
	require.NoError(t, EnsureTopic(ctx, broker.Brokers, topic, 1, 1))

	p, err := NewProducer(broker.Brokers, "producer-test")
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.Health(ctx))

	require.NoError(t, p.Publish(ctx, []Message{
		{Topic: topic, Key: []byte("k1"), Value: []byte(`{"n":1}`), Headers: map[string]string{"event_type": "audit.CREATE"}},
		{Topic: topic, Key: []byte("k1"), Value: []byte(`{"n":2}`)},
	}))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	var values []string
	for len(values) < 2 {
		fetches := consumer.PollFetches(ctx)
		require.NoError(t, ctx.Err())
		fetches.EachRecord(func(r *kgo.Record) {
			values = append(values, string(r.Value))
		})
	}
	require.Equal(t, []string{`{"n":1}`, `{"n":2}`}, values)
}
