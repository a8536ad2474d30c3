package mqtt

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/pet-feeder/internal/logger"
	"github.com/sweeney/pet-feeder/internal/logic"
)

// Default transport timing.
const (
	DefaultPublishTimeout = 2 * time.Second
	DefaultRetryInterval  = 5 * time.Second
	updatesDepth          = 4
)

// Options configures a RealTransport.
type Options struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	DeviceID       string
	PublishTimeout time.Duration
	RetryInterval  time.Duration
	Log            logger.Logger
}

// RealTransport talks to an actual MQTT broker.
type RealTransport struct {
	client  paho.Client
	topics  Topics
	timeout time.Duration
	updates chan []byte
	log     logger.Logger
}

// NewRealTransport starts connecting to the broker and returns immediately.
// paho keeps retrying in the background; IsConnected reports when the link is up.
// On every (re)connect the schedule topic is subscribed and ONLINE is published;
// the broker publishes OFFLINE as the will if the device drops off.
func NewRealTransport(opts Options) (*RealTransport, error) {
	if opts.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker address required")
	}
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("mqtt: device id required")
	}
	if opts.ClientID == "" {
		opts.ClientID = "pet-feeder-" + opts.DeviceID
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultPublishTimeout
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	t := &RealTransport{
		topics:  TopicsFor(opts.DeviceID),
		timeout: opts.PublishTimeout,
		updates: make(chan []byte, updatesDepth),
		log:     logger.OrNop(opts.Log),
	}

	po := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(opts.RetryInterval).
		SetMaxReconnectInterval(time.Minute).
		SetWill(t.topics.System, SystemOffline, 1, true).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			t.log.Warn(context.Background(), "connection lost", logger.Error(err))
		})
	if opts.Username != "" {
		po.SetUsername(opts.Username)
		po.SetPassword(opts.Password)
	}

	t.client = paho.NewClient(po)
	token := t.client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			t.log.Error(context.Background(), "connect failed", logger.Error(err))
		}
	}()
	return t, nil
}

func (t *RealTransport) onConnect(c paho.Client) {
	ctx := context.Background()
	t.log.Info(ctx, "connected", logger.String("schedule_topic", t.topics.Schedule))

	sub := c.Subscribe(t.topics.Schedule, 1, func(_ paho.Client, m paho.Message) {
		t.deliver(append([]byte(nil), m.Payload()...))
	})
	if !sub.WaitTimeout(t.timeout) {
		t.log.Warn(ctx, "subscribe timeout")
	} else if err := sub.Error(); err != nil {
		t.log.Error(ctx, "subscribe failed", logger.Error(err))
	}

	if err := t.Publish(KindSystem, []byte(SystemOnline)); err != nil {
		t.log.Warn(ctx, "publish online failed", logger.Error(err))
	}
}

// deliver queues a schedule payload. When the queue is full the oldest pending
// payload is discarded, since only the latest table matters.
func (t *RealTransport) deliver(payload []byte) {
	for {
		select {
		case t.updates <- payload:
			return
		default:
		}
		select {
		case <-t.updates:
		default:
		}
	}
}

// IsConnected reports whether the connection is currently open.
func (t *RealTransport) IsConnected() bool {
	return t.client.IsConnectionOpen()
}

// Publish sends payload on the topic for kind. System messages are retained.
func (t *RealTransport) Publish(kind Kind, payload []byte) error {
	topic, err := t.topics.Topic(kind)
	if err != nil {
		return err
	}
	if !t.IsConnected() {
		return ErrNotConnected
	}

	retained := kind == KindSystem
	token := t.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(t.timeout) {
		return fmt.Errorf("publish %s: timeout", kind)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", kind, err)
	}
	return nil
}

// PublishStatus formats and sends a status event.
func (t *RealTransport) PublishStatus(ev logic.StatusEvent) error {
	payload, err := FormatStatus(ev)
	if err != nil {
		return fmt.Errorf("format status: %w", err)
	}
	return t.Publish(KindStatus, payload)
}

// ScheduleUpdates delivers schedule_update payloads received from the broker.
func (t *RealTransport) ScheduleUpdates() <-chan []byte {
	return t.updates
}

// Close disconnects from the broker.
func (t *RealTransport) Close() error {
	t.client.Disconnect(250)
	return nil
}
