package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgops/internal/config"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	MigrateQueue  = "migrate_queue"
	RebuildQueue  = "rebuild_queue"
	TrainingQueue = "training_queue"

	// MaxRetries is how often a failed message is retried before it is
	// moved to the dead-letter queue.
	MaxRetries = 10
	retryTTLMs = 10000
)

// Queues lists every work queue the worker consumes.
var Queues = []string{MigrateQueue, RebuildQueue, TrainingQueue}

// JobMsg is the body of every work message. UserID may be empty on the
// migrate queue to mean every user with documents.
type JobMsg struct {
	UserID        string    `json:"user_id"`
	CorrelationID string    `json:"correlation_id"`
	RequestedBy   string    `json:"requested_by,omitempty"`
	RequestedAt   time.Time `json:"requested_at"`
}

func Dial(cfg config.RabbitMQConfig) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// Declarer is the part of *amqp091.Channel needed to declare queues.
type Declarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
}

// SetupQueues declares each queue with a "_dlq" dead-letter queue and a
// "_retry" queue that hands messages back after ten seconds.
func SetupQueues(ch Declarer, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryTTLMs),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}
	return nil
}

// Publisher is the part of *amqp091.Channel needed to publish.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

func PublishFIFO(ch Publisher, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}
	return ch.Publish("", queueName, false, false, publishing)
}

// Enqueue publishes msg on queueName, filling the correlation ID and the
// request time when unset. It returns the message as sent.
func Enqueue(ch Publisher, queueName string, msg JobMsg) (JobMsg, error) {
	if msg.CorrelationID == "" {
		msg.CorrelationID = uuid.NewString()
	}
	if msg.RequestedAt.IsZero() {
		msg.RequestedAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return msg, err
	}
	if err := PublishFIFO(ch, queueName, body); err != nil {
		return msg, fmt.Errorf("failed to publish to %s: %w", queueName, err)
	}
	return msg, nil
}
