package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/amberhub/amber-core/internal/infrastructure/config"
)

// MessageHandler is the callback signature for received messages.
//
// Handlers are invoked in separate goroutines by the paho library and
// should not block for extended periods. A returned error is logged but
// does not affect message acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// Logger is the minimal logging surface the client needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// subscription holds what is needed to re-subscribe after a reconnect.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client wraps paho.mqtt.golang with Amber Hub-specific behaviour:
// connection management, LWT status publishing, and automatic
// re-subscription after reconnects.
//
// All methods are safe for concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	mu            sync.RWMutex
	connected     bool
	subscriptions map[string]subscription
	onConnect     func()
	onDisconnect  func(err error)
	logger        Logger
}

// Connect establishes a connection to the MQTT broker.
//
// The client announces itself on amber/system/status: an "online"
// message on connect, a graceful "offline" on Close, and a broker-side
// LWT "offline" if the hub dies without disconnecting.
//
// Returns an error if the initial connection does not complete within
// the connect timeout.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(_ pahomqtt.Client) { c.handleConnect() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.handleDisconnect(err) })

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnectHandler runs asynchronously and may not have fired
	// yet, so mark connected here to make IsConnected() truthful
	// immediately after Connect returns.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

func (c *Client) handleConnect() {
	c.mu.Lock()
	c.connected = true
	subs := make(map[string]subscription, len(c.subscriptions))
	for topic, sub := range c.subscriptions {
		subs[topic] = sub
	}
	callback := c.onConnect
	c.mu.Unlock()

	// Restore subscriptions lost with the previous connection.
	// Errors are ignored here; paho retries the connection itself and
	// this handler runs again on the next successful connect.
	for topic, sub := range subs {
		c.client.Subscribe(topic, sub.qos, c.wrapHandler(sub.handler))
	}

	c.publishStatus(buildOnlinePayload(c.cfg.Broker.ClientID))

	if callback != nil {
		callback()
	}
}

func (c *Client) handleDisconnect(err error) {
	c.mu.Lock()
	c.connected = false
	callback := c.onDisconnect
	c.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

// publishStatus publishes a retained status message to amber/system/status.
func (c *Client) publishStatus(payload string) {
	c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, payload)
}

// Close gracefully disconnects from the MQTT broker.
//
// A graceful "offline" status is published first so subscribers can
// distinguish a clean shutdown from the LWT crash message.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(
			Topics{}.SystemStatus(),
			byte(c.cfg.QoS),
			true,
			buildOfflinePayload(c.cfg.Broker.ClientID),
		)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect sets a callback invoked on initial connect and every reconnect.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger sets a logger for handler errors and recovered panics.
// Without one, handler errors are silently dropped.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// wrapHandler adds panic recovery and error logging around a MessageHandler.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if logger := c.getLogger(); logger != nil {
					logger.Error("MQTT handler panic recovered",
						"topic", msg.Topic(),
						"panic", r,
					)
				}
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Warn("MQTT handler returned error",
					"topic", msg.Topic(),
					"error", err,
				)
			}
		}
	}
}
