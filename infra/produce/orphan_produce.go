package produce

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	MediaExchange = "media.exchange"

	// OrphanDeleteQueue carries objects whose metadata insert failed and whose
	// inline cleanup failed too.
	OrphanDeleteQueue      = "media.orphan.delete"
	OrphanDeleteRoutingKey = "media.orphan.delete"
)

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// OrphanObjectMessage asks the consumer to delete an object with no record.
type OrphanObjectMessage struct {
	BucketName string `json:"bucket_name"`
	ObjectPath string `json:"object_path"`
	Reason     string `json:"reason"`
	Timestamp  int64  `json:"timestamp"`
}

type OrphanProduceService struct {
	channel Channel
}

func InitOrphanProduceService(channel Channel) *OrphanProduceService {
	err := channel.ExchangeDeclare(
		MediaExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Media exchange: " + err.Error())
	}

	_, err = channel.QueueDeclare(
		OrphanDeleteQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		panic("Failed to declare OrphanDelete queue: " + err.Error())
	}

	err = channel.QueueBind(
		OrphanDeleteQueue,
		OrphanDeleteRoutingKey,
		MediaExchange,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to bind OrphanDelete queue: " + err.Error())
	}

	return &OrphanProduceService{channel: channel}
}

// PublishOrphanObject queues an object for asynchronous deletion.
func (s *OrphanProduceService) PublishOrphanObject(ctx context.Context, msg OrphanObjectMessage) error {
	msg.Timestamp = time.Now().Unix()

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(
		ctx,
		MediaExchange,
		OrphanDeleteRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}
