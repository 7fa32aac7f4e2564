package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustscore/internal/platform/kafka"
	"trustscore/pkg/platform/tx"
)

type fakeSource struct {
	mu        sync.Mutex
	records   []Record
	published map[uuid.UUID]time.Time
}

func newFakeSource(n int) *fakeSource {
	s := &fakeSource{published: make(map[uuid.UUID]time.Time)}
	base := time.Now().Add(-time.Minute)
	for i := range n {
		s.records = append(s.records, Record{
			ID:            uuid.New(),
			AggregateType: "evaluation",
			AggregateID:   "F1",
			EventType:     "audit.UPDATE",
			Payload:       []byte(`{"action":"UPDATE"}`),
			CreatedAt:     base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return s
}

func (s *fakeSource) Claim(_ context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Record
	for _, r := range s.records {
		if _, done := s.published[r.ID]; done {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeSource) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	mark := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, id := range ids {
			s.published[id] = at
		}
	}
	if !tx.OnCommit(ctx, mark) {
		mark()
	}
	return nil
}

func (s *fakeSource) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records) - len(s.published)
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []kafka.Message
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msgs []kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msgs...)
	return nil
}

func TestRelayOnceDeliversInBatches(t *testing.T) {
	source := newFakeSource(5)
	pub := &fakePublisher{}
	m := NewMetrics(prometheus.NewRegistry())
	relay := NewRelay(tx.NewMemoryRunner(), source, pub, "trustscore.audit", WithBatchSize(3), WithMetrics(m))

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	require.Len(t, pub.sent, 5)
	first := pub.sent[0]
	assert.Equal(t, "trustscore.audit", first.Topic)
	assert.Equal(t, []byte("evaluation:F1"), first.Key)
	assert.Equal(t, source.records[0].ID.String(), first.Headers["outbox_id"])
	assert.Equal(t, "audit.UPDATE", first.Headers["event_type"])
	assert.Zero(t, source.pending())
	assert.Equal(t, 5.0, testutil.ToFloat64(m.Published))
}

func TestRelayOnceLeavesRowsOnPublishFailure(t *testing.T) {
	source := newFakeSource(2)
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	relay := NewRelay(tx.NewMemoryRunner(), source, pub, "trustscore.audit")

	_, err := relay.RelayOnce(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, source.pending())

	pub.err = nil
	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, source.pending())
}

func TestRunStopsOnCancel(t *testing.T) {
	source := newFakeSource(4)
	pub := &fakePublisher{}
	relay := NewRelay(tx.NewMemoryRunner(), source, pub, "trustscore.audit",
		WithBatchSize(2), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	require.Eventually(t, func() bool { return source.pending() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}
