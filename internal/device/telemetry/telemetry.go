package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"speaking-stone-golang/internal/data/msg"
	"speaking-stone-golang/internal/util"
	log "speaking-stone-golang/logger"
)

// Config points the publisher at the telemetry broker.
type Config struct {
	Broker   string `mapstructure:"broker"`
	Port     int    `mapstructure:"port"`
	Type     string `mapstructure:"type"`
	DeviceID string `mapstructure:"device_id"`
	Token    string `mapstructure:"token"`
}

// pendingCapacity bounds how many reports survive a broker outage.
const pendingCapacity = 64

type stateEvent struct {
	topic   string
	payload map[string]interface{}
}

// Publisher reports device state transitions and streaming stats to the
// per-device state topic. Reports made while the broker is unreachable
// are queued and flushed on (re)connect.
type Publisher struct {
	config  Config
	client  mqtt.Client
	pending *util.Queue[stateEvent]
}

func NewPublisher(config Config) *Publisher {
	if config.Type == "" {
		config.Type = "tcp"
	}
	return &Publisher{
		config:  config,
		pending: util.NewQueue[stateEvent](pendingCapacity),
	}
}

// Connect establishes the broker session. Publishing before Connect, or
// after a failed Connect, only queues, so telemetry never blocks the
// device.
func (p *Publisher) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", p.config.Type, p.config.Broker, p.config.Port))
	opts.SetClientID(p.config.DeviceID)
	opts.SetUsername(p.config.DeviceID)
	opts.SetPassword(p.config.Token)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warnf("telemetry connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Infof("telemetry connected, device: %s", p.config.DeviceID)
		p.flushPending()
	})

	// Assigned before dialing: the on-connect handler can fire before
	// Connect returns and needs the client for the pending flush.
	p.client = mqtt.NewClient(opts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("connect telemetry broker failed: %v", token.Error())
	}
	return nil
}

// PublishState reports one connectivity state transition.
func (p *Publisher) PublishState(state string, extra map[string]interface{}) {
	payload := map[string]interface{}{
		"state": state,
		"at":    time.Now().Format(time.RFC3339),
	}
	for k, v := range extra {
		payload[k] = v
	}
	p.publish(msg.DeviceStateTopic(p.config.DeviceID), payload)
}

func (p *Publisher) publish(topic string, payload map[string]interface{}) {
	if p.client == nil || !p.client.IsConnected() {
		if err := p.pending.Push(stateEvent{topic: topic, payload: payload}); err != nil {
			log.Warnf("queue telemetry failed: %v", err)
		}
		return
	}
	p.send(topic, payload)
}

// flushPending replays reports queued during an outage, oldest first.
func (p *Publisher) flushPending() {
	for {
		event, err := p.pending.Pop(context.Background(), -1)
		if err != nil {
			if !errors.Is(err, util.ErrQueueEmpty) && !errors.Is(err, util.ErrQueueClosed) {
				log.Warnf("drain telemetry queue failed: %v", err)
			}
			return
		}
		p.send(event.topic, event.payload)
	}
}

func (p *Publisher) send(topic string, payload map[string]interface{}) {
	data, err := msg.EncodeControlMessage("state", payload)
	if err != nil {
		log.Warnf("encode telemetry failed: %v", err)
		return
	}
	if token := p.client.Publish(topic, 0, false, data); token.Wait() && token.Error() != nil {
		log.Warnf("publish telemetry failed: %v", token.Error())
	}
}

func (p *Publisher) Close() {
	p.pending.Close()
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
