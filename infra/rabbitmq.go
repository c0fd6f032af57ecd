package infra

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tnqbao/gau-media-service/config"
)

type RabbitMQClient struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
}

func InitRabbitMQClient(cfg *config.EnvConfig) *RabbitMQClient {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/",
		cfg.RabbitMQ.Username,
		cfg.RabbitMQ.Password,
		cfg.RabbitMQ.Host,
		cfg.RabbitMQ.Port,
	)

	conn, err := amqp.Dial(url)
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to RabbitMQ: %v", err))
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		panic(fmt.Sprintf("Failed to open RabbitMQ channel: %v", err))
	}

	// one unacked delivery per consumer
	if err := channel.Qos(1, 0, false); err != nil {
		_ = conn.Close()
		panic(fmt.Sprintf("Failed to set RabbitMQ QoS: %v", err))
	}

	return &RabbitMQClient{
		Connection: conn,
		Channel:    channel,
	}
}

func (r *RabbitMQClient) Close() error {
	if r.Channel != nil {
		_ = r.Channel.Close()
	}
	if r.Connection != nil {
		return r.Connection.Close()
	}
	return nil
}
