package mqtt_server

import (
	"testing"

	mqttServer "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speaking-stone-golang/internal/data/msg"
)

func newTestClient(username string) *mqttServer.Client {
	cl := &mqttServer.Client{ID: "test-" + username}
	cl.Properties.Username = []byte(username)
	return cl
}

func connectPacket(username, password string) packets.Packet {
	var pk packets.Packet
	pk.Connect.Username = []byte(username)
	pk.Connect.Password = []byte(password)
	return pk
}

func TestAuthHookBypassWhenDisabled(t *testing.T) {
	viper.Set("mqtt_server.enable_auth", false)
	t.Cleanup(viper.Reset)

	hook := &AuthHook{}
	assert.True(t, hook.OnConnectAuthenticate(newTestClient("anyone"), connectPacket("anyone", "whatever")))
}

func TestAuthHookCredentials(t *testing.T) {
	viper.Set("mqtt_server.enable_auth", true)
	viper.Set("mqtt_server.username", "operator")
	viper.Set("mqtt_server.password", "op-secret")
	viper.Set("mqtt_server.device_tokens", []string{"token-a", "token-b"})
	t.Cleanup(viper.Reset)

	hook := &AuthHook{}

	tests := []struct {
		name     string
		username string
		password string
		want     bool
	}{
		{"operator", "operator", "op-secret", true},
		{"operator wrong password", "operator", "nope", false},
		{"device with valid token", "stone-01", "token-b", true},
		{"device with bad token", "stone-01", "token-c", false},
		{"device with empty password", "stone-01", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hook.OnConnectAuthenticate(newTestClient(tt.username), connectPacket(tt.username, tt.password))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTelemetryHookACL(t *testing.T) {
	viper.Set("mqtt_server.username", "operator")
	t.Cleanup(viper.Reset)

	hook := &TelemetryHook{}
	require.NoError(t, hook.Init(nil))

	tests := []struct {
		name     string
		username string
		topic    string
		want     bool
	}{
		{"device own subtree", "stone-01", "speaking-stone/device/stone-01/state", true},
		{"device foreign subtree", "stone-01", "speaking-stone/device/stone-02/state", false},
		{"device arbitrary topic", "stone-01", "some/other/topic", false},
		{"operator anywhere", "operator", "speaking-stone/device/stone-02/state", true},
		{"missing device id", "", "speaking-stone/device/stone-01/state", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hook.OnACLCheck(newTestClient(tt.username), tt.topic, true)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTelemetryHookRecordsLastState(t *testing.T) {
	hook := &TelemetryHook{}
	require.NoError(t, hook.Init(nil))

	payload, err := msg.EncodeControlMessage("state", map[string]interface{}{"state": "online"})
	require.NoError(t, err)

	pk := packets.Packet{TopicName: msg.DeviceStateTopic("stone-01"), Payload: payload}
	_, err = hook.OnPublish(newTestClient("stone-01"), pk)
	require.NoError(t, err)

	state, ok := hook.LastState("stone-01")
	require.True(t, ok)
	assert.Equal(t, "online", state)
}

func TestTelemetryHookIgnoresOtherTopics(t *testing.T) {
	hook := &TelemetryHook{}
	require.NoError(t, hook.Init(nil))

	pk := packets.Packet{TopicName: "unrelated/topic", Payload: []byte("not even json")}
	_, err := hook.OnPublish(newTestClient("stone-01"), pk)
	require.NoError(t, err)

	_, ok := hook.LastState("stone-01")
	assert.False(t, ok)
}

func TestTelemetryHookIgnoresMalformedState(t *testing.T) {
	hook := &TelemetryHook{}
	require.NoError(t, hook.Init(nil))

	pk := packets.Packet{TopicName: msg.DeviceStateTopic("stone-01"), Payload: []byte("{broken")}
	_, err := hook.OnPublish(newTestClient("stone-01"), pk)
	require.NoError(t, err)

	_, ok := hook.LastState("stone-01")
	assert.False(t, ok)
}
