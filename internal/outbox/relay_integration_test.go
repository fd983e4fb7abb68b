//go:build integration

package outbox_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	casemodels "caseflow/internal/cases/models"
	casestore "caseflow/internal/cases/store"
	"caseflow/internal/outbox"
	"caseflow/internal/platform/config"
	"caseflow/internal/platform/kafka"
	tlmodels "caseflow/internal/timeline/models"
	tlstore "caseflow/internal/timeline/store"
	"caseflow/pkg/domain"
	"caseflow/pkg/platform/uow"
	"caseflow/pkg/testutil/containers"
)

// RelaySuite drives timeline entries from Postgres through the relay into a
// Redpanda topic.
type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	producer *kgo.Client
	topic    string
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
	s.topic = "case.timeline.it"

	var err error
	s.producer, err = kafka.NewProducer(config.KafkaConfig{Brokers: s.redpanda.Brokers, TimelineTopic: s.topic})
	s.Require().NoError(err)
	s.Require().NoError(kafka.EnsureTopic(context.Background(), s.producer, s.topic, 1))
	s.Require().NoError(kafka.EnsureTopic(context.Background(), s.producer, s.topic, 1), "topic creation is idempotent")
}

func (s *RelaySuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox", "case_timeline", "cases"))
}

func (s *RelaySuite) createCase(ctx context.Context, number string) domain.CaseID {
	c, err := casemodels.NewCase(1, 10, casemodels.ServiceRenewal, casemodels.PriorityNormal, nil, nil, nil, time.Now().UTC())
	s.Require().NoError(err)
	c.CaseNumber = number
	s.Require().NoError(casestore.NewPostgres(s.postgres.DB).Create(ctx, c))
	return c.ID
}

func (s *RelaySuite) appendEntry(ctx context.Context, caseID domain.CaseID) {
	performer := domain.UserID(20)
	err := tlstore.NewPostgres(s.postgres.DB).Append(ctx, &tlmodels.Entry{
		TenantID:    1,
		CaseID:      caseID,
		EventType:   tlmodels.EventWorkflowAutoApproved,
		Description: "Automatically approved by workflow rule: Auto-approve simple renewals",
		PerformedBy: &performer,
		Metadata:    map[string]any{"rule_key": "auto_approve_simple_renewals"},
		CreatedAt:   time.Now().UTC(),
	})
	s.Require().NoError(err)
}

func (s *RelaySuite) TestRelaysAndMarksPublished() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	first := s.createCase(ctx, "APP-2026-001")
	second := s.createCase(ctx, "APP-2026-002")
	s.appendEntry(ctx, first)
	s.appendEntry(ctx, second)

	relay, err := outbox.NewRelay(
		outbox.NewPostgresStore(s.postgres.DB),
		outbox.NewKafkaPublisher(s.producer, s.topic),
		uow.NewPostgres(s.postgres.DB),
		outbox.WithBatchSize(10),
	)
	s.Require().NoError(err)

	n, err := relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = relay.RelayOnce(ctx)
	s.Require().NoError(err)
	s.Equal(0, n, "published rows are not claimed again")

	var pending int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx,
		`SELECT count(*) FROM outbox WHERE published_at IS NULL`).Scan(&pending))
	s.Equal(0, pending)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(s.topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	keys := map[string]bool{}
	for len(keys) < 2 {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out waiting for records")
		fetches.EachRecord(func(r *kgo.Record) {
			keys[string(r.Key)] = true

			var payload map[string]any
			s.Require().NoError(json.Unmarshal(r.Value, &payload))
			s.Equal(string(tlmodels.EventWorkflowAutoApproved), payload["event_type"])
		})
	}
	s.True(keys[first.String()])
	s.True(keys[second.String()])
}
