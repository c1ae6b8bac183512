package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/roach88/muezzin/internal/control"
	"github.com/roach88/muezzin/internal/notify"
)

// Defaults.
const (
	DefaultPrefix         = "muezzin"
	DefaultQoS            = byte(1)
	DefaultPublishTimeout = 5 * time.Second
	disconnectQuiesceMS   = 250
)

// Client is the part of mqtt.Client the bridge uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// Options configure a broker connection.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Prefix   string
	QoS      byte
}

// Ack is published after each command on <prefix>/commands/ack.
type Ack struct {
	Action control.Action `json:"action"`
	OK     bool           `json:"ok"`
	Error  string         `json:"error,omitempty"`
}

// Bridge publishes intents to MQTT and executes commands received from it.
//
// Topics:
//
//	<prefix>/intents/<kind>   intents, JSON, one topic per kind
//	<prefix>/commands         control.Command, JSON
//	<prefix>/commands/ack     Ack, JSON
type Bridge struct {
	client  Client
	prefix  string
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// Connect dials the broker and returns a Bridge over the connection.
func Connect(opts Options, logger *slog.Logger) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "mqtt")

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.Broker)
	co.SetClientID(opts.ClientID)
	if opts.Username != "" {
		co.SetUsername(opts.Username)
		co.SetPassword(opts.Password)
	}
	co.SetAutoReconnect(true)
	co.OnConnect = func(mqtt.Client) {
		log.Info("connected to broker", "broker", opts.Broker)
	}
	co.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("connection lost", "error", err)
	}

	client := mqtt.NewClient(co)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", opts.Broker, token.Error())
	}
	b := New(client, opts.Prefix, logger)
	if opts.QoS <= 2 {
		b.qos = opts.QoS
	}
	return b, nil
}

// New wraps an existing client.
func New(client Client, prefix string, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Bridge{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		qos:     DefaultQoS,
		timeout: DefaultPublishTimeout,
		logger:  logger.With("component", "mqtt"),
	}
}

// IntentTopic is the topic intents of kind are published on.
func (b *Bridge) IntentTopic(kind notify.Kind) string {
	return b.prefix + "/intents/" + string(kind)
}

// CommandTopic is the topic commands are read from.
func (b *Bridge) CommandTopic() string {
	return b.prefix + "/commands"
}

// Emit implements notify.Sink.
func (b *Bridge) Emit(_ context.Context, in notify.Intent) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}
	return b.publish(b.IntentTopic(in.Kind), payload)
}

// Serve subscribes to the command topic and dispatches every valid command
// to ctrl. Invalid payloads are acknowledged with an error and dropped.
func (b *Bridge) Serve(ctx context.Context, ctrl control.Controller) error {
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		b.handle(ctx, ctrl, msg.Payload())
	}
	token := b.client.Subscribe(b.CommandTopic(), b.qos, handler)
	if !token.WaitTimeout(b.timeout) {
		return fmt.Errorf("subscribe %s: timed out", b.CommandTopic())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.CommandTopic(), err)
	}
	b.logger.Info("listening for commands", "topic", b.CommandTopic())
	return nil
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.client.Disconnect(disconnectQuiesceMS)
}

func (b *Bridge) handle(ctx context.Context, ctrl control.Controller, payload []byte) {
	cmd, err := control.ParseCommand(payload)
	ack := Ack{Action: cmd.Action, OK: err == nil}
	if err == nil {
		if err = ctrl.Dispatch(ctx, cmd); err != nil {
			ack.OK = false
		}
	}
	if err != nil {
		ack.Error = err.Error()
		b.logger.Warn("command failed", "action", string(cmd.Action), "error", err)
	} else {
		b.logger.Info("command executed", "action", string(cmd.Action))
	}

	data, _ := json.Marshal(ack)
	if err := b.publish(b.CommandTopic()+"/ack", data); err != nil {
		b.logger.Warn("failed to publish ack", "error", err)
	}
}

func (b *Bridge) publish(topic string, payload []byte) error {
	token := b.client.Publish(topic, b.qos, false, payload)
	if !token.WaitTimeout(b.timeout) {
		return fmt.Errorf("publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
