package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// QuizCompletedRoutingKey carries course-progress updates.
	QuizCompletedRoutingKey = "quiz.completed"
	// PointsAwardedRoutingKey carries reward-point grants.
	PointsAwardedRoutingKey = "points.awarded"

	DefaultExchange = "assessment.events"
)

// QuizCompletedEvent is published after every successful submission.
type QuizCompletedEvent struct {
	UserID     string    `json:"userId"`
	TargetID   string    `json:"targetId"`
	Percentage float64   `json:"percentage"`
	OccurredAt time.Time `json:"occurredAt"`
}

// PointsAwardedEvent is published when a passed attempt earns points.
type PointsAwardedEvent struct {
	UserID      string    `json:"userId"`
	Amount      int       `json:"amount"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards progress and reward notifications to a topic exchange
// consumed by the course and gamification services.
type Publisher struct {
	conn     *amqp.Connection
	exchange string
	log      *slog.Logger
	now      func() time.Time

	// amqp channels are not safe for concurrent publishing.
	mu sync.Mutex
	ch channel
}

// Dial connects to the broker and declares the durable topic exchange.
func Dial(url, exchange string, log *slog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := newPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{ch: ch, exchange: exchange, log: log, now: time.Now}
}

func (p *Publisher) QuizCompleted(ctx context.Context, userID, targetID string, percentage float64) error {
	return p.publish(ctx, QuizCompletedRoutingKey, QuizCompletedEvent{
		UserID:     userID,
		TargetID:   targetID,
		Percentage: percentage,
		OccurredAt: p.now().UTC(),
	})
}

func (p *Publisher) AwardPoints(ctx context.Context, userID string, amount int, category, description string) error {
	return p.publish(ctx, PointsAwardedRoutingKey, PointsAwardedEvent{
		UserID:      userID,
		Amount:      amount,
		Category:    category,
		Description: description,
		OccurredAt:  p.now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, key string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", key, err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.log.Debug("event published", "routing_key", key, "exchange", p.exchange)
	return nil
}

// Close releases the channel and the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
