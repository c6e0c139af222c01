package queue

import (
	"errors"

	"github.com/OFFIS-RIT/kgops/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// ErrInvalidMessage marks a message that can never succeed. It skips the
// retry queue and goes straight to the dead-letter queue.
var ErrInvalidMessage = errors.New("invalid queue message")

// ErrInterrupted marks a run that stopped before covering every document.
// The message is retried so the skipped documents are picked up again.
var ErrInterrupted = errors.New("document run interrupted")

func retryCount(headers amqp091.Table) int {
	val, ok := headers["x-retries"]
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// HandleProcessingError routes a failed delivery to "<queue>_retry" with an
// incremented x-retries header, or to "<queue>_dlq" once MaxRetries is
// reached. If publishing fails the delivery is requeued.
func HandleProcessingError(ch Publisher, msg amqp091.Delivery, queueName string, procErr error) {
	retries := retryCount(msg.Headers)

	if retries >= MaxRetries || errors.Is(procErr, ErrInvalidMessage) {
		dlqName := queueName + "_dlq"
		logger.Info("[Queue] Sending message to DLQ", "dlq", dlqName, "retries", retries)
		pubErr := ch.Publish(
			"",
			dlqName,
			false,
			false,
			amqp091.Publishing{
				ContentType: msg.ContentType,
				Body:        msg.Body,
				Headers:     msg.Headers,
			},
		)
		if pubErr != nil {
			logger.Error("[Queue] Failed to publish to DLQ", "dlq", dlqName, "err", pubErr)
			_ = msg.Nack(false, true)
			return
		}
		_ = msg.Ack(false)
		return
	}

	retryName := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = int32(retries + 1)

	pubErr := ch.Publish(
		"",
		retryName,
		false,
		false,
		amqp091.Publishing{
			ContentType:  msg.ContentType,
			Body:         msg.Body,
			Headers:      headers,
			DeliveryMode: amqp091.Persistent,
		},
	)
	if pubErr != nil {
		logger.Error("[Queue] Failed to publish to retry queue", "retry_queue", retryName, "err", pubErr)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}
