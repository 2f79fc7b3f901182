package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ottoq/ottoq/core/booking"
	"github.com/ottoq/ottoq/core/model"
	"github.com/ottoq/ottoq/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client and the
// depot topic layout.
type Config struct {
	Broker         string `json:"broker"`
	ClientID       string `json:"client_id"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	TelemetryTopic string `json:"telemetry_topic"`
	TaskTopic      string `json:"task_topic"`
	EventTopic     string `json:"event_topic"`
	OfferTopic     string `json:"offer_topic"`
	QoS            byte   `json:"qos"`
}

// SetDefaults fills unset topics.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "ottoq-engine"
	}
	if c.TelemetryTopic == "" {
		c.TelemetryTopic = "depot/telemetry/+"
	}
	if c.TaskTopic == "" {
		c.TaskTopic = "depot/tasks"
	}
	if c.EventTopic == "" {
		c.EventTopic = "depot/events"
	}
	if c.OfferTopic == "" {
		c.OfferTopic = "depot/offers"
	}
}

// TaskSignal is an explicit collaborator signal closing out a pipeline
// stage or toggling a stall.
type TaskSignal struct {
	VehicleID string `json:"vehicle_id,omitempty"`
	StallID   string `json:"stall_id,omitempty"`
	Action    string `json:"action"` // deploy_confirmed, cancel, stall_down, stall_up
}

// Connector bridges the engine to the depot MQTT broker.
type Connector struct {
	cli paho.Client
	cfg Config
	log logger.Logger
}

// NewConnector connects to the broker with automatic reconnection.
func NewConnector(cfg Config) (*Connector, error) {
	cfg.SetDefaults()
	log := logger.New("mqtt")
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) { log.Infof("MQTT connected") }
	opts.OnConnectionLost = func(_ paho.Client, err error) { log.Errorf("connection lost: %v", err) }
	opts.OnReconnecting = func(paho.Client, *paho.ClientOptions) { log.Warnf("reconnecting to MQTT broker") }

	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return &Connector{cli: cli, cfg: cfg, log: log}, nil
}

// SubscribeTelemetry delivers decoded telemetry pushes to the handler.
func (c *Connector) SubscribeTelemetry(handler func(model.Telemetry)) error {
	token := c.cli.Subscribe(c.cfg.TelemetryTopic, c.cfg.QoS, func(_ paho.Client, msg paho.Message) {
		var t model.Telemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			c.log.Errorf("telemetry decode: %v", err)
			return
		}
		if t.Time.IsZero() {
			t.Time = time.Now()
		}
		handler(t)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", c.cfg.TelemetryTopic, token.Error())
	}
	return nil
}

// SubscribeTasks delivers decoded task signals to the handler.
func (c *Connector) SubscribeTasks(handler func(TaskSignal)) error {
	token := c.cli.Subscribe(c.cfg.TaskTopic, c.cfg.QoS, func(_ paho.Client, msg paho.Message) {
		var s TaskSignal
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			c.log.Errorf("task decode: %v", err)
			return
		}
		handler(s)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", c.cfg.TaskTopic, token.Error())
	}
	return nil
}

// PublishTransition pushes one audit-feed entry.
func (c *Connector) PublishTransition(ev model.TransitionEvent) error {
	return c.publishJSON(c.cfg.EventTopic, ev)
}

// PublishOffer pushes a booking offer toward the member-facing layer.
// Connector satisfies booking.Notifier.
func (c *Connector) PublishOffer(o booking.Offer) error {
	return c.publishJSON(c.cfg.OfferTopic, o)
}

func (c *Connector) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("mqtt marshal: %w", err)
	}
	token := c.cli.Publish(topic, c.cfg.QoS, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (c *Connector) Close() {
	c.cli.Disconnect(250)
}

var _ booking.Notifier = (*Connector)(nil)
