package media

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/galaxyplayer/galaxyd/internal/types"
)

const (
	mqttConnectTimeout = 10 * time.Second
	mqttPublishTimeout = 5 * time.Second
	mqttQuiesceMs      = 250
)

// MQTTConfig holds the broker settings
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
}

// publisher is the part of mqtt.Client the mirror uses
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// nowPlaying is the retained message body
type nowPlaying struct {
	Playing   bool   `json:"playing"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Left      int64  `json:"left"`
	UpdatedAt int64  `json:"updatedAt"`
}

// MQTTMirror publishes every status as a retained JSON message
type MQTTMirror struct {
	client publisher
	topic  string
	log    zerolog.Logger
	now    func() time.Time
}

// NewMQTT connects to the broker. The client reconnects on its own after a
// lost connection.
func NewMQTT(ctx context.Context, cfg MQTTConfig, log zerolog.Logger) (*MQTTMirror, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(mqttConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info().Str("broker", cfg.Broker).Msg("connected to mqtt broker")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(mqttConnectTimeout):
		return nil, errors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "mqtt connect")
	}

	return newMQTTMirror(client, cfg.Topic, log), nil
}

func newMQTTMirror(client publisher, topic string, log zerolog.Logger) *MQTTMirror {
	return &MQTTMirror{client: client, topic: topic, log: log, now: time.Now}
}

// Name implements Mirror
func (m *MQTTMirror) Name() string { return "mqtt" }

// Publish implements Mirror
func (m *MQTTMirror) Publish(ctx context.Context, status types.PresenceStatus) error {
	if !m.client.IsConnected() {
		return errors.New("not connected to mqtt broker")
	}

	payload, err := json.Marshal(nowPlaying{
		Playing:   status.Playing,
		Title:     status.Details,
		Artist:    status.State,
		Left:      status.Left,
		UpdatedAt: m.now().Unix(),
	})
	if err != nil {
		return errors.Wrap(err, "encode now playing")
	}

	token := m.client.Publish(m.topic, 0, true, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(mqttPublishTimeout):
		return errors.New("mqtt publish timeout")
	}
	return token.Error()
}

// Close disconnects from the broker
func (m *MQTTMirror) Close() error {
	m.client.Disconnect(mqttQuiesceMs)
	return nil
}
