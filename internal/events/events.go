package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/garba-app/apiserver/config"
)

// Topics the server publishes to.
const (
	TopicUserRegistered = "user.registered"
	TopicProfileUpdated = "user.profile_updated"
)

// UserEvent is the payload published when an account is created or its
// profile changes. Consumers (welcome mail, CRM sync) live outside this repo.
type UserEvent struct {
	UserID     int64     `json:"userId"`
	Email      string    `json:"email"`
	PlanMode   string    `json:"planMode"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Backend defines the broker-agnostic publish operation.
type Backend interface {
	Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Publisher wraps a backend with a stable API.
type Publisher struct {
	backend Backend
}

// New constructs a Publisher from config, selecting the backend by name.
// An empty backend name disables publishing and returns (nil, nil).
func New(ctx context.Context, cfg config.EventsConfig) (*Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return NewPublisher(backend), nil
	case "pubsub":
		backend, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return NewPublisher(backend), nil
	default:
		return nil, errors.New("unknown events backend: " + cfg.Backend)
	}
}

// NewPublisher constructs a Publisher for the provided backend.
func NewPublisher(backend Backend) *Publisher {
	return &Publisher{backend: backend}
}

// PublishUserEvent marshals and publishes a user event to the named topic.
func (p *Publisher) PublishUserEvent(ctx context.Context, topic string, event UserEvent) (string, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return p.backend.Publish(ctx, topic, data, map[string]string{"event": topic})
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	return p.backend.Close()
}
