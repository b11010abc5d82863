// Package mqtt provides the broker transport for NEA Smart Core.
//
// This package manages:
//   - One WebSocket/TLS connection to the vendor cloud broker at a time
//   - Connection identity (shared app username, bearer token password)
//   - Auto-reconnect with a bounded backoff window (30s to 300s by default)
//   - Topic subscriptions and at-most-once publishing
//   - The vendor topic templates and their placeholder resolution
//
// # Architecture
//
// The broker is an AWS IoT endpoint fronted by a custom authorizer. Every
// user connects with the same application username and presents the
// current access token as the password:
//
//	Session ↔ Client (paho, wss) ↔ vendor broker ↔ NEA Smart base station
//
// The broker drops idle connections roughly every ten minutes. Reconnects
// are expected and handled by paho; the session counts them.
//
// # Topic templates
//
// Topics are templates with {id} and {email} placeholders. Resolve fills
// them for the current installation and user; MatchTemplate classifies an
// inbound concrete topic against a template.
//
// # Usage
//
//	client := mqtt.New(cfg.Broker)
//	err := client.Open(mqtt.Identity{
//	    ClientID: "app-" + uuid.NewString(),
//	    Username: cfg.Broker.BrokerUsername(),
//	    Password: token.AccessToken,
//	}, mqtt.Handlers{
//	    OnConnect: onConnect,
//	    OnMessage: onMessage,
//	})
//	defer client.Close()
//
//	topic, _ := mqtt.Resolve(mqtt.ClientInstallation, mqtt.Placeholders{Unique: unique})
//	client.Publish(topic, []byte(`{"11":"REQ_LIVE","12":{"DATA":"1"}}`))
package mqtt
