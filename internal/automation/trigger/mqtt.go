package trigger

import (
	"context"
	"fmt"
)

// MQTTPlatform fires on MQTT messages.
//
// Config:
//
//	platform: mqtt
//	topic: shellies/shelly1-kitchen/input_event/0   # required, wildcards allowed
//	payload: '{"event":"S"}'                        # optional exact match
//	qos: 1                                          # optional, default 0
type MQTTPlatform struct{}

// Validate implements Platform.
func (MQTTPlatform) Validate(cfg Config) error {
	if _, err := reqString(cfg, "topic"); err != nil {
		return err
	}
	if v, ok := cfg["payload"]; ok {
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: \"payload\" must be a string", ErrInvalidConfig)
		}
	}
	if v, ok := cfg["qos"]; ok {
		q, isNum := toFloat(v)
		if !isNum || q < 0 || q > 2 || q != float64(int(q)) {
			return fmt.Errorf("%w: \"qos\" must be 0, 1, or 2", ErrInvalidConfig)
		}
	}
	return nil
}

// Attach implements Platform.
func (p MQTTPlatform) Attach(_ context.Context, env Environment, cfg Config, fire Callback) (DetachFunc, error) {
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}
	if env.MQTT == nil {
		return nil, fmt.Errorf("%w: mqtt is not available", ErrInvalidConfig)
	}

	topic := optString(cfg, "topic")
	wantPayload, hasPayload := cfg["payload"].(string)
	qos := byte(0)
	if v, ok := cfg["qos"]; ok {
		f, _ := toFloat(v)
		qos = byte(f)
	}

	err := env.MQTT.Subscribe(topic, qos, func(msgTopic string, payload []byte) error {
		if hasPayload && string(payload) != wantPayload {
			return nil
		}
		fire(context.Background(), map[string]any{
			"platform":    "mqtt",
			"description": fmt.Sprintf("mqtt topic %s", topic),
			"topic":       msgTopic,
			"payload":     string(payload),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	return func() {
		// Best effort; the client may already be disconnected.
		env.MQTT.Unsubscribe(topic) //nolint:errcheck // Detach during shutdown
	}, nil
}
