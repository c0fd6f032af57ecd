package produce

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declareErr error
	exchanges  []string
	queues     []string
	bindings   []string
	published  []published
}

func (c *fakeChannel) ExchangeDeclare(name, _ string, _, _, _, _ bool, _ amqp.Table) error {
	c.exchanges = append(c.exchanges, name)
	return c.declareErr
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.queues = append(c.queues, name)
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.bindings = append(c.bindings, exchange+"->"+key+"->"+name)
	return nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.published = append(c.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestInitProduceDeclaresTopology(t *testing.T) {
	channel := &fakeChannel{}

	p := InitProduce(channel)

	require.NotNil(t, p.OrphanService)
	assert.Equal(t, []string{MediaExchange}, channel.exchanges)
	assert.Equal(t, []string{OrphanDeleteQueue}, channel.queues)
	assert.Equal(t, []string{MediaExchange + "->" + OrphanDeleteRoutingKey + "->" + OrphanDeleteQueue}, channel.bindings)
}

func TestInitProducePanicsOnDeclareFailure(t *testing.T) {
	channel := &fakeChannel{declareErr: errors.New("channel closed")}

	assert.Panics(t, func() { InitProduce(channel) })
}

func TestPublishOrphanObject(t *testing.T) {
	channel := &fakeChannel{}
	service := InitOrphanProduceService(channel)

	err := service.PublishOrphanObject(context.Background(), OrphanObjectMessage{
		BucketName: "media",
		ObjectPath: "docs/a.pdf",
		Reason:     "insert failed",
	})
	require.NoError(t, err)

	require.Len(t, channel.published, 1)
	sent := channel.published[0]
	assert.Equal(t, MediaExchange, sent.exchange)
	assert.Equal(t, OrphanDeleteRoutingKey, sent.key)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)
	assert.Equal(t, "application/json", sent.msg.ContentType)

	var body OrphanObjectMessage
	require.NoError(t, json.Unmarshal(sent.msg.Body, &body))
	assert.Equal(t, "media", body.BucketName)
	assert.Equal(t, "docs/a.pdf", body.ObjectPath)
	assert.NotZero(t, body.Timestamp)
}
