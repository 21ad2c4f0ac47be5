// Package kafka streams audit events to a Kafka topic for downstream
// reconciliation and compliance consumers.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "brick/pkg/platform/audit"
)

// Store implements audit.Store by producing one record per event, keyed by
// entity so a consumer sees each entity's trail in order.
type Store struct {
	client *kgo.Client
	topic  string
}

// New connects a producer to brokers. The caller owns Close.
func New(brokers []string, topic string) (*Store, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Store{client: client, topic: topic}, nil
}

// EnsureTopic creates the audit topic when missing.
func (s *Store) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	for _, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// payload is the JSON structure published to Kafka.
type payload struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Timestamp  string `json:"timestamp"`
	Action     string `json:"action"`
	Actor      string `json:"actor,omitempty"`
	Subject    string `json:"subject,omitempty"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	PropertyID string `json:"property_id,omitempty"`
	Asset      string `json:"asset,omitempty"`
	Amount     string `json:"amount,omitempty"`
	Reason     string `json:"reason,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func encode(event audit.Event) ([]byte, error) {
	p := payload{
		ID:         event.ID.String(),
		Category:   string(event.Category),
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:     event.Action,
		Actor:      string(event.Actor),
		Subject:    string(event.Subject),
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		PropertyID: string(event.PropertyID),
		Asset:      string(event.Asset),
		Reason:     event.Reason,
		RequestID:  event.RequestID,
	}
	// Amounts travel as strings so consumers never round them through float64.
	if event.Amount > 0 {
		p.Amount = strconv.FormatUint(event.Amount, 10)
	}
	return json.Marshal(p)
}

// Append produces the event and waits for the broker acknowledgement.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	value, err := encode(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(event.EntityType + ":" + event.EntityID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.client.Close()
}
