package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/interndesk/assessment-session-service/internal/models"
)

const TopicSessions = "assessment.sessions"

const (
	TypeSessionStarted   = "session.started"
	TypeSessionCompleted = "session.completed"
	TypeSessionAbandoned = "session.abandoned"
)

// Event is the envelope published for session lifecycle changes.
type Event struct {
	ID         string       `json:"id"`
	Type       string       `json:"type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Data       SessionEvent `json:"data"`
}

// SessionEvent carries the session facts consumers care about. Outcome is
// set only for completed sessions.
type SessionEvent struct {
	SessionID    string          `json:"session_id"`
	AttemptID    string          `json:"attempt_id"`
	AssessmentID string          `json:"assessment_id"`
	UserID       string          `json:"user_id"`
	Outcome      *models.Outcome `json:"outcome,omitempty"`
}

// Publisher fans session lifecycle events out to interested consumers
// (dashboards, notification pipelines). Publishing is best-effort from the
// session service's point of view; a broker problem never blocks a session.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type watermillPublisher struct {
	pub    message.Publisher
	logger *slog.Logger
}

// NewGoChannelPublisher builds an in-process publisher, the default when no
// broker is configured.
func NewGoChannelPublisher(logger *slog.Logger) Publisher {
	pub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	return &watermillPublisher{pub: pub, logger: logger}
}

// NewKafkaPublisher builds a Kafka-backed publisher for deployments where
// other services consume session events.
func NewKafkaPublisher(brokers []string, logger *slog.Logger) (Publisher, error) {
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}
	return &watermillPublisher{pub: pub, logger: logger}, nil
}

func (p *watermillPublisher) Publish(_ context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("type", event.Type)
	if err := p.pub.Publish(TopicSessions, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *watermillPublisher) Close() error {
	return p.pub.Close()
}

// MockEventPublisher records events for assertions in tests.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []Event
	logger *slog.Logger
}

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{logger: logger}
}

func (m *MockEventPublisher) Publish(_ context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventPublisher) Close() error { return nil }

func (m *MockEventPublisher) GetPublishedEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MockEventPublisher) ClearEvents() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
