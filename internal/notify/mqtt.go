// Package notify pushes playback events to terminals and downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/branchcast/internal/playback"
)

// mqttPublisher is the part of mqtt.Client used here.
type mqttPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Info().Msg("[mqtt] connected to broker")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Warn().Err(err).Msg("[mqtt] connection lost")
}

// ConnectMQTT opens a client against brokerURL that reconnects on its own.
func ConnectMQTT(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// Topic is where a branch's terminal listens for playback changes.
func Topic(code string) string {
	return fmt.Sprintf("branch/%s/playback", code)
}

// MQTT publishes each event retained on the branch topic so a terminal that
// reconnects sees the latest state.
type MQTT struct {
	client  mqttPublisher
	timeout time.Duration
}

func NewMQTT(client mqttPublisher) *MQTT {
	return &MQTT{client: client, timeout: 5 * time.Second}
}

func (m *MQTT) Notify(_ context.Context, ev playback.Event) error {
	if ev.BranchCode == "" {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	topic := Topic(ev.BranchCode)
	token := m.client.Publish(topic, 1, true, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	log.Debug().Str("topic", topic).Str("kind", string(ev.Kind)).Msg("[mqtt] event published")
	return nil
}
