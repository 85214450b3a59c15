package rabbitmq

import (
	"fmt"
)

// Stage queue names. Each scoring stage consumes exactly one queue, bound to
// the pipeline exchange with the queue name as routing key.
const (
	QueueBasics     = "score.basics"
	QueuePreference = "score.preference"
	QueueSummary    = "score.summary"
)

// StageQueues lists every pipeline queue in stage order
var StageQueues = []string{QueueBasics, QueuePreference, QueueSummary}

// SetupTopology declares the exchange, the stage queues and their bindings.
// Declares are idempotent, so every process can run this at startup.
func SetupTopology(client Client, exchangeName string) error {
	if err := client.DeclareExchange(exchangeName, "direct"); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchangeName, err)
	}

	for _, queueName := range StageQueues {
		if _, err := client.DeclareQueue(queueName); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
		}
		if err := client.BindQueue(queueName, exchangeName, queueName); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", queueName, err)
		}
	}

	return nil
}
