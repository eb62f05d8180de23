// Package mqtt provides the broker transport for HomeKit live sync.
//
// The manager publishes desired-state payloads retained on the homekit
// desired topic and its own availability on the system status topic; the
// HomeKit bridge reports back on its status topic. The client wraps
// paho.mqtt.golang with bounded publish timeouts, automatic reconnection
// with subscription restoration, and a Last Will so subscribers can tell
// a crash from a clean shutdown.
//
// All operations that wait on the broker use WaitTimeout rather than
// blocking indefinitely; a commit must never hang on a dead broker.
package mqtt
