package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

type MetricsSource interface {
	GetMetrics() ai.ModelMetrics
	ResetMetrics()
}

type queuedMessage struct {
	msg       amqp091.Delivery
	queueName string
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

// Consume reads every queue over one channel with prefetch 1, so only one
// message is processed at a time across all queues. It blocks until ctx is
// cancelled.
func Consume(ctx context.Context, conn *amqp091.Connection, queues []string, h *Handler, metrics MetricsSource) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := SetupQueues(ch, queues); err != nil {
		return err
	}
	if err := ch.Qos(1, 0, true); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	messageChan := make(chan queuedMessage)
	for _, queueName := range queues {
		msgs, err := ch.Consume(
			queueName,
			queueName+"_consumer",
			false, // autoAck
			false, // exclusive
			false, // noLocal
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return fmt.Errorf("failed to start consuming %s: %w", queueName, err)
		}
		go func(qName string, msgs <-chan amqp091.Delivery) {
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("[Queue] Message channel closed", "queue", qName)
						return
					}
					select {
					case messageChan <- queuedMessage{msg: msg, queueName: qName}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(queueName, msgs)
	}

	logger.Info("[Queue] Listening for messages", "queues", queues)
	for {
		select {
		case <-ctx.Done():
			logger.Info("[Queue] Stopping message processor")
			return nil
		case qm := <-messageChan:
			process(ctx, ch, qm, h, metrics)
		}
	}
}

func process(ctx context.Context, ch Publisher, qm queuedMessage, h *Handler, metrics MetricsSource) {
	startTime := time.Now()
	logger.Info("[Queue] Received message", "queue", qm.queueName)

	if err := h.Handle(ctx, qm.queueName, qm.msg.Body); err != nil {
		logger.Error("[Queue] Error processing message", "queue", qm.queueName, "err", err)
		HandleProcessingError(ch, qm.msg, qm.queueName, err)
	} else {
		if err := qm.msg.Ack(false); err != nil {
			logger.Error("[Queue] Failed to ack message", "err", err)
		}
		logger.Info("[Queue] Message processed successfully", "queue", qm.queueName)
	}

	if metrics != nil {
		m := metrics.GetMetrics()
		logger.Info(
			"[Queue] AI Metrics",
			"input_tokens", m.InputTokens,
			"output_tokens", m.OutputTokens,
			"total_tokens", m.TotalTokens,
			"duration", formatDuration(time.Duration(m.DurationMs)*time.Millisecond),
		)
		metrics.ResetMetrics()
	}
	logger.Info("[Queue] Processing time", "duration", formatDuration(time.Since(startTime)))
}
