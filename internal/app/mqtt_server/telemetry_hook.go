package mqtt_server

import (
	"strings"
	"time"

	mqttServer "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/spf13/viper"

	"speaking-stone-golang/internal/data/msg"
	log "speaking-stone-golang/logger"
)

// TelemetryHook scopes devices to their own telemetry subtree and keeps
// the last reported state per device. The operator account is
// unrestricted.
type TelemetryHook struct {
	mqttServer.HookBase
	server *mqttServer.Server

	lastState cmap.ConcurrentMap[string, string]
}

func (h *TelemetryHook) ID() string {
	return "telemetry-hook"
}

func (h *TelemetryHook) Provides(b byte) bool {
	return b == mqttServer.OnACLCheck ||
		b == mqttServer.OnConnect ||
		b == mqttServer.OnDisconnect ||
		b == mqttServer.OnPublish
}

func (h *TelemetryHook) Init(config any) error {
	h.lastState = cmap.New[string]()
	return nil
}

// OnACLCheck confines a device to speaking-stone/device/<id>/...; the
// operator may publish and subscribe anywhere.
func (h *TelemetryHook) OnACLCheck(cl *mqttServer.Client, topic string, write bool) bool {
	if isOperator(cl) {
		return true
	}

	deviceID := string(cl.Properties.Username)
	if deviceID == "" {
		log.Warnf("client %s has no device id, denying %s", cl.ID, topic)
		return false
	}
	if strings.HasPrefix(topic, msg.DeviceTopicRoot(deviceID)) {
		return true
	}
	log.Warnf("device %s denied access to topic %s", deviceID, topic)
	return false
}

func (h *TelemetryHook) OnConnect(cl *mqttServer.Client, pk packets.Packet) error {
	if !isOperator(cl) {
		pk.Connect.Clean = true
	}
	return nil
}

func (h *TelemetryHook) OnDisconnect(cl *mqttServer.Client, err error, ok bool) {
	if isOperator(cl) {
		return
	}
	deviceID := string(cl.Properties.Username)
	log.Infof("telemetry client disconnected, device: %s, err: %v", deviceID, err)
}

// OnPublish records state transitions published on the per-device state
// topic.
func (h *TelemetryHook) OnPublish(cl *mqttServer.Client, pk packets.Packet) (packets.Packet, error) {
	topic := pk.TopicName
	if !strings.HasPrefix(topic, msg.TelemetryTopicPrefix) || !strings.HasSuffix(topic, msg.StateTopicSuffix) {
		return pk, nil
	}

	deviceID := strings.TrimSuffix(strings.TrimPrefix(topic, msg.TelemetryTopicPrefix), msg.StateTopicSuffix)
	control, err := msg.DecodeControlMessage(pk.Payload)
	if err != nil || !control.IsControl() {
		log.Warnf("unparseable state payload from device %s", deviceID)
		return pk, nil
	}

	state, _ := control.Payload["state"].(string)
	h.lastState.Set(deviceID, state)
	log.Infof("device state, device: %s, state: %s, at: %s", deviceID, state, time.Now().Format(time.RFC3339))
	return pk, nil
}

// LastState returns the most recent state a device reported.
func (h *TelemetryHook) LastState(deviceID string) (string, bool) {
	return h.lastState.Get(deviceID)
}

func isOperator(cl *mqttServer.Client) bool {
	adminUsername := viper.GetString("mqtt_server.username")
	return adminUsername != "" && string(cl.Properties.Username) == adminUsername
}
