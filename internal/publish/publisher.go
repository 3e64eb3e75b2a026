package publish

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Config selects the broker and topic images are published to.
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
}

// Publisher sends encoded images to one topic.
type Publisher struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// Dial connects to the broker in cfg.
func Dial(cfg Config) (*Publisher, error) {
	opts := mqtt.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.SetKeepAlive(2 * time.Second)
	opts.SetPingTimeout(1 * time.Second)

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("publish: connect to %s: %w", cfg.Broker, token.Error())
	}
	return NewPublisher(c, cfg.Topic, cfg.QoS), nil
}

// NewPublisher publishes through an already connected client.
func NewPublisher(c mqtt.Client, topic string, qos byte) *Publisher {
	return &Publisher{client: c, topic: topic, qos: qos}
}

// Publish sends payload and waits for the broker to acknowledge it.
func (p *Publisher) Publish(payload []byte) error {
	token := p.client.Publish(p.topic, p.qos, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %s: %w", p.topic, err)
	}
	return nil
}

// Close disconnects from the broker, waiting up to 250ms for pending work.
func (p *Publisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
