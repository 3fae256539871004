// Package mqttpub publishes JSON messages under a fixed topic prefix
package mqttpub

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // ms
)

type Publisher struct {
	client mqtt.Client
	topic  string
}

// New connects to broker, e.g. "tcp://localhost:1883". The client
// reconnects on its own after the connection drops.
func New(broker, clientID, topic string) (*Publisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(publishTimeout)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		//ConnectRetry keeps trying in the background
		return NewWithClient(client, topic)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqttpub: connect %s: %w", broker, err)
	}
	return NewWithClient(client, topic)
}

func NewWithClient(client mqtt.Client, topic string) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("mqttpub: client is required")
	}
	topic = strings.TrimSuffix(topic, "/")
	if topic == "" {
		return nil, errors.New("mqttpub: topic is required")
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish sends payload as JSON to <topic>/<subtopic> at QoS 0
func (p *Publisher) Publish(subtopic string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mqttpub: marshal: %w", err)
	}
	topic := p.topic + "/" + subtopic
	token := p.client.Publish(topic, 0, false, b)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("mqttpub: publish %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqttpub: publish %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.client.Disconnect(disconnectQuiesce)
	return nil
}
