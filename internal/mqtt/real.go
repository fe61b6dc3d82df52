package mqtt

import (
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// Options configures the broker connection.
type Options struct {
	Broker    string // e.g. "tcp://192.168.1.10:1883"
	ClientID  string
	Username  string
	Password  string
	Namespace string // topic namespace, DefaultNamespace if empty

	// MeterNames are published as retained discovery documents on every
	// (re)connect.
	MeterNames []string

	// OnCommand, if set, is subscribed to the command topic.
	OnCommand CommandHandler

	// ConnectTimeout bounds the initial connection attempt (per try).
	ConnectTimeout time.Duration

	// MaxConnectWait bounds the overall backoff for the initial connect.
	MaxConnectWait time.Duration
}

// RealClient publishes to an actual MQTT broker.
type RealClient struct {
	client    paho.Client
	namespace string
}

// NewRealClient connects to the broker, retrying with exponential backoff
// until MaxConnectWait elapses. On every successful (re)connection it
// publishes the retained discovery documents, a "connected" status, and
// subscribes to the command topic.
func NewRealClient(o Options) (*RealClient, error) {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.ClientID == "" {
		o.ClientID = DeviceName
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = 10 * time.Second
	}
	if o.MaxConnectWait == 0 {
		o.MaxConnectWait = 2 * time.Minute
	}

	c := &RealClient{namespace: o.Namespace}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(client paho.Client) {
			c.onConnect(client, o)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	c.client = paho.NewClient(opts)

	connect := func() error {
		token := c.client.Connect()
		if !token.WaitTimeout(o.ConnectTimeout) {
			return fmt.Errorf("connection timeout")
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect to broker: %w", err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = o.MaxConnectWait
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	return c, nil
}

func (c *RealClient) onConnect(client paho.Client, o Options) {
	log.Printf("mqtt: connected to broker")

	if err := c.PublishStatus("connected"); err != nil {
		log.Printf("mqtt: publish status: %v", err)
	}

	for _, name := range o.MeterNames {
		payload, err := FormatDiscoveryPayload(c.namespace, name)
		if err != nil {
			log.Printf("mqtt: discovery payload for %s: %v", name, err)
			continue
		}
		// Retained so Home Assistant picks the sensors up at any time.
		if err := c.publish(DiscoveryTopic(c.namespace, name), payload, 1, true); err != nil {
			log.Printf("mqtt: publish discovery for %s: %v", name, err)
		}
	}

	if o.OnCommand != nil {
		topic := CommandTopic(c.namespace)
		token := client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
			o.OnCommand(string(msg.Payload()))
		})
		if !token.WaitTimeout(5 * time.Second) {
			log.Printf("mqtt: subscribe %s: timeout", topic)
		} else if err := token.Error(); err != nil {
			log.Printf("mqtt: subscribe %s: %v", topic, err)
		}
	}
}

func (c *RealClient) publish(topic string, payload []byte, qos byte, retained bool) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// PublishCounter sends one counter value, QoS 1, not retained.
func (c *RealClient) PublishCounter(name string, value uint32) error {
	return c.publish(CounterTopic(c.namespace, name), []byte(FormatCounterPayload(value)), 1, false)
}

// PublishReply answers a read command on the reply topic.
func (c *RealClient) PublishReply(channel int, value uint32) error {
	return c.publish(ReplyTopic(c.namespace), []byte(FormatReplyPayload(channel, value)), 1, false)
}

// PublishStatus sends a lifecycle message on the status topic.
func (c *RealClient) PublishStatus(msg string) error {
	return c.publish(StatusTopic(c.namespace), []byte(msg), 1, false)
}

// IsConnected reports whether the broker connection is active.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
