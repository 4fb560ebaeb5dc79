package mqtt_server

import (
	mqttServer "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/spf13/viper"

	log "speaking-stone-golang/logger"
)

// AuthHook validates broker credentials. Two kinds of clients connect:
// the operator account (mqtt_server.username/password) and devices,
// which send their device id as username and a token from
// mqtt_server.device_tokens as password.
type AuthHook struct {
	mqttServer.HookBase
}

func (h *AuthHook) ID() string {
	return "telemetry-auth-hook"
}

func (h *AuthHook) Provides(b byte) bool {
	return b == mqttServer.OnConnectAuthenticate
}

func (h *AuthHook) OnConnectAuthenticate(cl *mqttServer.Client, pk packets.Packet) bool {
	if !viper.GetBool("mqtt_server.enable_auth") {
		return true
	}

	username := string(pk.Connect.Username)
	password := string(pk.Connect.Password)

	adminUsername := viper.GetString("mqtt_server.username")
	adminPassword := viper.GetString("mqtt_server.password")
	if adminUsername != "" && username == adminUsername && password == adminPassword {
		log.Infof("operator login: %s", username)
		return true
	}

	for _, token := range viper.GetStringSlice("mqtt_server.device_tokens") {
		if token != "" && password == token {
			log.Infof("device login, client: %s, device: %s", cl.ID, username)
			return true
		}
	}

	log.Warnf("rejected mqtt client %s: bad credentials", cl.ID)
	return false
}
