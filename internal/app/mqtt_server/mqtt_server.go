package mqtt_server

import (
	"crypto/tls"
	"errors"
	"fmt"

	mqttServer "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/spf13/viper"

	log "speaking-stone-golang/logger"
)

// StartMqttServer runs the embedded telemetry broker. Devices publish
// connectivity state and streaming stats here; operators subscribe with
// the admin credentials.
func StartMqttServer() error {
	server := mqttServer.New(&mqttServer.Options{
		InlineClient: true,
	})

	if err := server.AddHook(&AuthHook{}, nil); err != nil {
		log.Fatalf("add AuthHook failed: %v", err)
		return err
	}

	telemetryHook := &TelemetryHook{server: server}
	if err := server.AddHook(telemetryHook, nil); err != nil {
		log.Fatalf("add TelemetryHook failed: %v", err)
		return err
	}

	if viper.GetBool("mqtt_server.tls.enable") {
		pemFile := viper.GetString("mqtt_server.tls.pem")
		keyFile := viper.GetString("mqtt_server.tls.key")
		cert, err := tls.LoadX509KeyPair(pemFile, keyFile)
		if err != nil {
			log.Fatalf("load certificate failed: %v", err)
			return err
		}

		ssltcp := listeners.NewTCP(listeners.Config{
			ID:      "ssl",
			Address: fmt.Sprintf(":%d", viper.GetInt("mqtt_server.tls.port")),
			TLSConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
			},
		})
		if err := server.AddListener(ssltcp); err != nil {
			log.Fatal(err)
		}
	}

	host := viper.GetString("mqtt_server.listen_host")
	port := viper.GetInt("mqtt_server.listen_port")
	if port == 0 {
		log.Errorf("mqtt_server.listen_port is not configured")
		return errors.New("mqtt_server.listen_port is not configured")
	}

	address := fmt.Sprintf("%s:%d", host, port)
	tcp := listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		ID:      "t1",
		Address: address,
	})
	if err := server.AddListener(tcp); err != nil {
		log.Fatalf("add TCP listener failed: %v", err)
	}

	log.Infof("MQTT telemetry broker listening on %s", address)

	if err := server.Serve(); err != nil {
		log.Fatalf("MQTT telemetry broker failed: %v", err)
		return err
	}
	return nil
}
