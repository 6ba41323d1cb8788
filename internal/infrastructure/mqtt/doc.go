// Package mqtt provides MQTT client connectivity for mbus-bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored automatically on reconnect
//   - Last Will and Testament (LWT) on <base>/bridge/state
//   - Connection health monitoring
//
// # Topic layout
//
// All topics hang off a configurable base topic (default "mbus2mqtt"):
//
//	<base>/bridge/state                  retained "online"|"offline"
//	<base>/bridge/info                   retained JSON bridge counters
//	<base>/device/{id}/state             retained JSON reading
//	<base>/device/{id}/availability      retained "online"|"offline"
//	<base>/command/rescan                inbound
//	<base>/command/log_level             inbound
//	<base>/command/poll_interval         inbound
//
// Home Assistant discovery configs are published under a separate discovery
// prefix; see the homeassistant package.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics(cfg.MQTT.BaseTopic)
//	err = client.Subscribe(topics.CommandRescan(), 1,
//	    func(topic string, payload []byte) error {
//	        // queue rescan
//	        return nil
//	    })
package mqtt
