// Package mqttclient publishes transcription progress events to an MQTT broker.
package mqttclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const (
	publishTimeout = 5 * time.Second
	statusOnline   = "online"
	statusOffline  = "offline"
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

type Client struct {
	conn      mqtt.Client
	prefix    string
	connected atomic.Bool
	log       zerolog.Logger
}

type Options struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	Log         zerolog.Logger
}

func Connect(opts Options) (*Client, error) {
	c := &Client{
		prefix: strings.Trim(opts.TopicPrefix, "/"),
		log:    opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true).
		SetWill(c.StatusTopic(), statusOffline, 1, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) onConnect(conn mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Str("prefix", c.prefix).Msg("mqtt connected")
	if err := c.announce(conn, statusOnline); err != nil {
		c.log.Warn().Err(err).Msg("mqtt status announce failed")
	}
}

// StatusTopic is the retained availability topic. The broker publishes
// "offline" there as the last will if the process disappears.
func (c *Client) StatusTopic() string {
	if c.prefix == "" {
		return "status"
	}
	return c.prefix + "/status"
}

func (c *Client) announce(conn mqtt.Client, status string) error {
	token := conn.Publish(c.StatusTopic(), 1, true, []byte(status))
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("announce %s: timed out", status)
	}
	return token.Error()
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// Topic returns {prefix}/{identity}/{event}.
func (c *Client) Topic(identity, event string) string {
	if c.prefix == "" {
		return identity + "/" + event
	}
	return c.prefix + "/" + identity + "/" + event
}

// Publish sends v as JSON to Topic(identity, event) at QoS 1.
func (c *Client) Publish(identity, event string, v any) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}

	topic := c.Topic(identity, event)
	token := c.conn.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out after %s", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	c.log.Debug().Str("topic", topic).Int("payload_size", len(payload)).Msg("mqtt event published")
	return nil
}

func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Close marks the client offline on the status topic and disconnects.
func (c *Client) Close() {
	if c.connected.Load() {
		if err := c.announce(c.conn, statusOffline); err != nil {
			c.log.Debug().Err(err).Msg("mqtt offline announce failed")
		}
	}
	c.log.Info().Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}
