package mqtt

import (
	"context"
	"fmt"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Message is one bus message: topic, stringified payload, retain flag.
type Message struct {
	Topic   string
	Payload string
	Retain  bool
}

// Options carries broker location and credentials. Credentials are supplied
// per publish call; the publisher holds no long-lived session.
type Options struct {
	Host     string
	Port     int
	ClientID string
	Username string
	Password string

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// Publisher connects to the broker for each call, publishes the given
// messages retained at QoS 1, and disconnects. One batch per poll cycle is
// the usage pattern, so a short-lived session per call is cheaper than
// keeping a connection alive across five-minute gaps.
type Publisher struct {
	opts Options
}

func NewPublisher(opts Options) *Publisher {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 10 * time.Second
	}
	return &Publisher{opts: opts}
}

// PublishBatch publishes all messages over a single connection. The first
// failed message aborts the batch and its error is returned, so a partial
// cycle shows up as one failure rather than silent partial publication.
func (p *Publisher) PublishBatch(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	client, err := p.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.publishOne(client, msg); err != nil {
			return err
		}
	}
	return nil
}

// PublishSingle publishes one message over its own connection.
func (p *Publisher) PublishSingle(ctx context.Context, msg Message) error {
	return p.PublishBatch(ctx, []Message{msg})
}

func (p *Publisher) connect(ctx context.Context) (MQTT.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := MQTT.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", p.opts.Host, p.opts.Port))
	// Random suffix so back-to-back short-lived sessions never collide on
	// the broker.
	opts.SetClientID(fmt.Sprintf("%s-%s", p.opts.ClientID, uuid.NewString()[:8]))
	opts.SetUsername(p.opts.Username)
	opts.SetPassword(p.opts.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectTimeout(p.opts.ConnectTimeout)

	client := MQTT.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(p.opts.ConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s:%d timed out", p.opts.Host, p.opts.Port)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s:%d: %w", p.opts.Host, p.opts.Port, err)
	}
	return client, nil
}

func (p *Publisher) publishOne(client MQTT.Client, msg Message) error {
	token := client.Publish(msg.Topic, 1, msg.Retain, msg.Payload)
	if !token.WaitTimeout(p.opts.PublishTimeout) {
		return fmt.Errorf("publish to %s timed out", msg.Topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Topic, err)
	}
	return nil
}
