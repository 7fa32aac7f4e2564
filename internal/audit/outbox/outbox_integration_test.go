//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"trustscore/internal/audit"
	"trustscore/internal/audit/outbox"
	auditpostgres "trustscore/internal/audit/store/postgres"
	"trustscore/internal/platform/kafka"
	"trustscore/pkg/platform/tx"
	"trustscore/pkg/testutil/containers"
)

type OutboxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	kafka    *containers.KafkaContainer
	producer *kafka.Producer
	source   *outbox.PostgresStore
	entries  *auditpostgres.Store
	runner   *tx.SQLRunner
}

func TestOutboxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxSuite))
}

func (s *OutboxSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.kafka = mgr.GetKafka(s.T())

	producer, err := kafka.NewProducer(s.kafka.Brokers, "outbox-test")
	s.Require().NoError(err)
	s.producer = producer

	s.source = outbox.NewPostgresStore(s.postgres.DB)
	s.entries = auditpostgres.New(s.postgres.DB)
	s.runner = tx.NewSQLRunner(s.postgres.DB)
}

func (s *OutboxSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *OutboxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox", "audit_entries"))
}

func (s *OutboxSuite) appendEntry(firmID string, at time.Time) *audit.Entry {
	e := &audit.Entry{
		ID:         uuid.New(),
		Actor:      audit.Actor{ID: "u-1", Role: "admin"},
		EntityType: audit.EntityEvaluation,
		EntityID:   firmID,
		Action:     audit.ActionCreate,
		Changes: audit.Changes{
			"scores.credibility.trust_signals": {{Field: "no_controversies", OldValue: nil, NewValue: 8.0}},
		},
		CreatedAt: at,
	}
	s.Require().NoError(s.entries.Append(context.Background(), e))
	return e
}

func (s *OutboxSuite) consume(topic string, n int) []*kgo.Record {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.kafka.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var records []*kgo.Record
	for len(records) < n {
		fetches := client.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out after %d of %d records", len(records), n)
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records
}

func (s *OutboxSuite) TestRelayPublishesAndMarks() {
	ctx := context.Background()
	topic := "audit-" + uuid.NewString()
	s.Require().NoError(kafka.EnsureTopic(ctx, s.kafka.Brokers, topic, 1, 1))

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	first := s.appendEntry("F1", base)
	s.appendEntry("F2", base.Add(time.Second))
	s.appendEntry("F1", base.Add(2*time.Second))

	relay := outbox.NewRelay(s.runner, s.source, s.producer, topic, outbox.WithBatchSize(2))
	n, err := relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	pending, err := s.source.Pending(ctx)
	s.Require().NoError(err)
	s.Equal(1, pending)

	n, err = relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	n, err = relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Zero(n)

	records := s.consume(topic, 3)
	s.Require().Len(records, 3)
	s.Equal("evaluation:F1", string(records[0].Key))

	headers := map[string]string{}
	for _, h := range records[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	s.Equal("audit.CREATE", headers["event_type"])
	s.NotEmpty(headers["outbox_id"])

	var decoded audit.Entry
	s.Require().NoError(json.Unmarshal(records[0].Value, &decoded))
	s.Equal(first.ID, decoded.ID)
}

func (s *OutboxSuite) TestConcurrentClaimsAreDisjoint() {
	ctx := context.Background()
	for i := range 4 {
		s.appendEntry("F1", time.Date(2026, 10, 1, 12, 0, i, 0, time.UTC))
	}

	held := make(chan []outbox.Record, 1)
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.runner.RunInTx(ctx, func(txCtx context.Context) error {
			records, err := s.source.Claim(txCtx, 2)
			if err != nil {
				return err
			}
			held <- records
			<-release
			return nil
		})
	}()

	first := <-held
	var second []outbox.Record
	err := s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		second, err = s.source.Claim(txCtx, 4)
		return err
	})
	close(release)
	s.Require().NoError(<-done)
	s.Require().NoError(err)

	s.Len(first, 2)
	s.Len(second, 2)
	for _, a := range first {
		for _, b := range second {
			s.NotEqual(a.ID, b.ID)
		}
	}
}
