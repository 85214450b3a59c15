package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"scout/internal/database"
	"scout/internal/model"
	"scout/internal/rabbitmq"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Store is the slice of the database the pipeline mutates. Constructors take
// this interface so tests can substitute an in-memory implementation.
type Store interface {
	database.BatchDatabase
	database.ItemDatabase
	database.NotificationDatabase
	database.OwnerDatabase
}

// Queue publishes work items onto stage queues
type Queue interface {
	PublishWorkItem(ctx context.Context, queueName string, item model.WorkItem) error
}

// Profiles serves owner profile text used as scoring context
type Profiles interface {
	GetProfile(ctx context.Context, ownerID string) (string, error)
}

// Contacts resolves where a batch notification should go
type Contacts interface {
	Lookup(ctx context.Context, ownerID string) (*model.OwnerContact, error)
}

type amqpQueue struct {
	client   rabbitmq.Client
	exchange string
}

// NewQueue wraps the broker client with WorkItem marshaling
func NewQueue(client rabbitmq.Client, exchange string) Queue {
	return &amqpQueue{client: client, exchange: exchange}
}

func (q *amqpQueue) PublishWorkItem(ctx context.Context, queueName string, item model.WorkItem) error {
	body, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal work item: %w", err)
	}

	headers := amqp.Table{
		"owner_id": item.OwnerID,
		"item_id":  item.ItemID,
	}
	if item.BatchID != "" {
		headers["batch_id"] = item.BatchID
	}

	if err := q.client.Publish(q.exchange, queueName, body, headers); err != nil {
		return fmt.Errorf("failed to publish work item: %w", err)
	}

	return nil
}
