// Package mqttadapter feeds location samples from MQTT devices into capture sessions.
package mqttadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/samirrijal/geomeasure/internal/core/domain"
	"github.com/samirrijal/geomeasure/internal/pkg/logging"
)

// DefaultTopic matches one location topic per screen.
const DefaultTopic = "field/+/location"

// Feed implements ports.SensorFeed over an MQTT subscription.
type Feed struct {
	client mqtt.Client
	topic  string
	qos    byte
}

// Connect opens an MQTT client against broker.
func Connect(broker, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}
	return client, nil
}

// NewFeed wraps a connected client. An empty topic uses DefaultTopic.
func NewFeed(client mqtt.Client, topic string, qos byte) *Feed {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Feed{client: client, topic: topic, qos: qos}
}

// SubscribeSamples delivers each location message to handler.
func (f *Feed) SubscribeSamples(ctx context.Context, handler func(ctx context.Context, sample *domain.SensorSample) error) error {
	token := f.client.Subscribe(f.topic, f.qos, f.messageHandler(ctx, handler))
	token.Wait()
	return token.Error()
}

func (f *Feed) messageHandler(ctx context.Context, handler func(ctx context.Context, sample *domain.SensorSample) error) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		logger := logging.FromContext(ctx)
		sample, err := decodeMessage(f.topic, msg.Topic(), msg.Payload())
		if err != nil {
			logger.Warn("invalid location message", "topic", msg.Topic(), "error", err)
			return
		}
		if err := handler(ctx, sample); err != nil {
			logger.Warn("location message not handled", "topic", msg.Topic(), "error", err)
		}
	}
}

// Publish sends a sample to the topic of its screen.
func (f *Feed) Publish(ctx context.Context, sample *domain.SensorSample) error {
	data, err := json.Marshal(domain.NewSensorPayload(*sample))
	if err != nil {
		return err
	}
	token := f.client.Publish(TopicFor(f.topic, sample.ScreenID), f.qos, false, data)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects the client.
func (f *Feed) Close() {
	f.client.Disconnect(250)
}

// TopicFor fills the single-level wildcard of pattern with screen.
func TopicFor(pattern, screen string) string {
	return strings.Replace(pattern, "+", screen, 1)
}

func decodeMessage(pattern, topic string, payload []byte) (*domain.SensorSample, error) {
	var p domain.SensorPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if p.ScreenID == "" {
		p.ScreenID = screenFromTopic(pattern, topic)
	}
	if p.ScreenID == "" {
		return nil, fmt.Errorf("screen_id: required")
	}
	s := p.Sample()
	if err := s.Point.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// screenFromTopic returns the topic level matched by the pattern's '+' wildcard.
func screenFromTopic(pattern, topic string) string {
	pl := strings.Split(pattern, "/")
	tl := strings.Split(topic, "/")
	if len(pl) != len(tl) {
		return ""
	}
	for i, level := range pl {
		if level == "+" {
			return tl[i]
		}
	}
	return ""
}
